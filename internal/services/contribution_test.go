package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/core"
)

func (f *fixture) createGoal(t *testing.T, target string) core.Goal {
	t.Helper()
	g, err := f.goals.Create(context.Background(), core.Goal{
		OwnerID:      owner,
		Name:         "emergency fund",
		TargetAmount: core.MustAmount(target),
	})
	require.NoError(t, err)
	return g
}

func (f *fixture) setStarting(t *testing.T, amount string) {
	t.Helper()
	_, err := f.accounts.SetStartingBalance(context.Background(), owner, core.MustAmount(amount), "baseline")
	require.NoError(t, err)
}

func TestContribution_Progression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "50000")
	goal := f.createGoal(t, "25000")
	may := core.NewMonth(2025, 5)

	for i := 0; i < 3; i++ {
		_, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("1000"), may, "")
		require.NoError(t, err)
	}
	got, err := f.goals.Get(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(core.MustAmount("3000")))
	assert.False(t, got.IsCompleted)

	res, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("22000"), may, "bonus")
	require.NoError(t, err)
	assert.True(t, res.Goal.CurrentAmount.Equal(core.MustAmount("25000")))
	assert.True(t, res.Goal.IsCompleted)

	contributions, err := f.goals.Contributions(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.Len(t, contributions, 4)

	bal, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, bal.Committed.Equal(core.MustAmount("25000")))
	assert.True(t, bal.Available.Equal(core.MustAmount("25000")))
	assert.True(t, bal.Reconciled.Equal(core.MustAmount("50000")), "contributions do not touch the ledger")
}

func TestContribution_BalanceEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goal := f.createGoal(t, "10000")

	res, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("1200"), core.NewMonth(2025, 4), "april")
	require.NoError(t, err)

	e := res.BalanceEntry
	assert.Equal(t, core.GoalContribution, e.EntryType)
	assert.True(t, e.PreviousAmount.Equal(core.MustAmount("5000")))
	assert.True(t, e.ChangeAmount.Equal(core.MustAmount("1200").Neg()))
	assert.True(t, e.Amount.Equal(core.MustAmount("3800")))

	acct, err := f.store.GetAccount(ctx, owner)
	require.NoError(t, err)
	assert.True(t, acct.CurrentBalance.Equal(core.MustAmount("3800")))

	history, err := f.accounts.History(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.GoalContribution, history[0].EntryType)
	assert.Equal(t, core.ManualUpdate, history[1].EntryType)

	// The next entry starts from the available balance: reconciled 5000
	// minus the 1200 already committed.
	res, err = f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("300"), core.NewMonth(2025, 5), "")
	require.NoError(t, err)
	assert.True(t, res.BalanceEntry.PreviousAmount.Equal(core.MustAmount("3800")))
	assert.True(t, res.BalanceEntry.Amount.Equal(core.MustAmount("3500")))
}

func TestContribution_Rejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goal := f.createGoal(t, "25000")

	_, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("5500"), core.NewMonth(2025, 5), "")
	var ib *core.InsufficientBalanceError
	require.ErrorAs(t, err, &ib)
	assert.True(t, ib.Shortfall().Equal(core.MustAmount("500")), "shortfall %s", ib.Shortfall())
	assert.Equal(t, core.CodeInsufficientBalance, core.ErrorCode(err))

	got, err := f.goals.Get(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.IsZero())
	history, err := f.accounts.History(ctx, owner, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestContribution_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goal := f.createGoal(t, "1000")

	tests := []struct {
		name   string
		goalID string
		amount string
		month  core.Month
		check  func(t *testing.T, err error)
	}{
		{
			name:   "zero amount",
			goalID: goal.ID,
			amount: "0",
			month:  core.NewMonth(2025, 5),
			check: func(t *testing.T, err error) {
				var ve *core.ValidationError
				assert.ErrorAs(t, err, &ve)
			},
		},
		{
			name:   "future month",
			goalID: goal.ID,
			amount: "10",
			month:  core.NewMonth(2025, 6),
			check: func(t *testing.T, err error) {
				var ve *core.ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "month", ve.Field)
			},
		},
		{
			name:   "unknown goal",
			goalID: "missing",
			amount: "10",
			month:  core.NewMonth(2025, 5),
			check: func(t *testing.T, err error) {
				var nf *core.NotFoundError
				assert.ErrorAs(t, err, &nf)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tx.Contribute(ctx, owner, tt.goalID, core.MustAmount(tt.amount), tt.month, "")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestContribution_AtomicOnFailure(t *testing.T) {
	ops := []string{"InsertContribution", "UpdateGoalProgress", "SaveAccount", "AppendBalanceEntry"}

	for _, op := range ops {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			f.setStarting(t, "5000")
			goal := f.createGoal(t, "1000")

			f.store.FailNext(op, errors.New("write failed"))
			_, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("100"), core.NewMonth(2025, 5), "")
			var tf *core.TransactionFailure
			require.ErrorAs(t, err, &tf)
			assert.Equal(t, "contribute", tf.Op)

			got, err := f.goals.Get(ctx, owner, goal.ID)
			require.NoError(t, err)
			assert.True(t, got.CurrentAmount.IsZero())

			contributions, err := f.goals.Contributions(ctx, owner, goal.ID)
			require.NoError(t, err)
			assert.Empty(t, contributions)

			acct, err := f.store.GetAccount(ctx, owner)
			require.NoError(t, err)
			assert.True(t, acct.CurrentBalance.Equal(core.MustAmount("5000")))

			history, err := f.accounts.History(ctx, owner, 0)
			require.NoError(t, err)
			assert.Len(t, history, 1)
		})
	}
}

func TestContribution_ReverseIsSymmetric(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goal := f.createGoal(t, "1000")
	may := core.NewMonth(2025, 5)

	_, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("400"), may, "")
	require.NoError(t, err)
	before, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	acctBefore, err := f.store.GetAccount(ctx, owner)
	require.NoError(t, err)

	res, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("600"), may, "")
	require.NoError(t, err)
	require.True(t, res.Goal.IsCompleted)

	rev, err := f.tx.Reverse(ctx, owner, res.Contribution.ID)
	require.NoError(t, err)
	assert.True(t, rev.Goal.CurrentAmount.Equal(core.MustAmount("400")))
	assert.False(t, rev.Goal.IsCompleted)
	assert.True(t, rev.BalanceEntry.ChangeAmount.Equal(core.MustAmount("600")))
	assert.True(t, rev.BalanceEntry.PreviousAmount.Equal(core.MustAmount("4000")))

	after, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, after.Available.Equal(before.Available))
	assert.True(t, after.Committed.Equal(before.Committed))

	acctAfter, err := f.store.GetAccount(ctx, owner)
	require.NoError(t, err)
	assert.True(t, acctAfter.CurrentBalance.Equal(acctBefore.CurrentBalance))

	contributions, err := f.goals.Contributions(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.Len(t, contributions, 1)

	_, err = f.tx.Reverse(ctx, owner, res.Contribution.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestContribution_ReverseRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goal := f.createGoal(t, "1000")

	res, err := f.tx.Contribute(ctx, owner, goal.ID, core.MustAmount("300"), core.NewMonth(2025, 5), "")
	require.NoError(t, err)

	f.store.FailNext("AppendBalanceEntry", errors.New("write failed"))
	_, err = f.tx.Reverse(ctx, owner, res.Contribution.ID)
	var tf *core.TransactionFailure
	require.ErrorAs(t, err, &tf)

	got, err := f.goals.Get(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentAmount.Equal(core.MustAmount("300")))
	contributions, err := f.goals.Contributions(ctx, owner, goal.ID)
	require.NoError(t, err)
	assert.Len(t, contributions, 1)
}

func TestContribution_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.setStarting(t, "5000")
	goalA := f.createGoal(t, "100000")
	goalB := f.createGoal(t, "100000")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		goalID := goalA.ID
		if i%2 == 1 {
			goalID = goalB.ID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tx.Contribute(ctx, owner, goalID, core.MustAmount("1000"), core.NewMonth(2025, 5), "")
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	bal, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, bal.Available.IsZero(), "available %s", bal.Available)
}
