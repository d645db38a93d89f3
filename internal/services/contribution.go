package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// ContributionResult carries every record a contribution or its reversal
// wrote.
type ContributionResult struct {
	Contribution core.Contribution
	Goal         core.Goal
	BalanceEntry core.BalanceEntry
}

// ContributionTransactor moves money between the available balance and
// savings goals. Each call is one transaction: the contribution row, the goal
// progress, the cached balance and its audit entry are written together or
// not at all.
type ContributionTransactor struct {
	store store.Store
	locks *keyedMutex
	now   func() time.Time
	newID func() string
}

func NewContributionTransactor(st store.Store) *ContributionTransactor {
	return &ContributionTransactor{
		store: st,
		locks: newKeyedMutex(),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Contribute allocates amount from the owner's available balance to a goal.
// The month may not be in the future, and amount may not exceed the
// available balance.
func (t *ContributionTransactor) Contribute(ctx context.Context, ownerID, goalID string, amount core.Money, month core.Month, notes string) (ContributionResult, error) {
	if !amount.IsPositive() {
		return ContributionResult{}, &core.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	now := t.now()
	if month.After(core.MonthOf(now)) {
		return ContributionResult{}, &core.ValidationError{Field: "month", Reason: "must not be in the future"}
	}

	// The balance is owner-wide, so contributions of one owner are serialized
	// even across goals.
	unlock := t.locks.Lock(ownerID)
	defer unlock()

	var res ContributionResult
	err := t.store.InTx(ctx, func(q store.Queries) error {
		goal, err := q.GetGoal(ctx, ownerID, goalID)
		if err != nil {
			return err
		}
		before, err := Reconcile(ctx, q, ownerID)
		if err != nil {
			return err
		}
		if before.Available.LessThan(amount) {
			return &core.InsufficientBalanceError{Requested: amount, Available: before.Available}
		}

		stamp := now.UTC()
		c := core.Contribution{
			ID:        t.newID(),
			GoalID:    goal.ID,
			Amount:    amount,
			Month:     month,
			Notes:     notes,
			CreatedAt: stamp,
		}
		if err := q.InsertContribution(ctx, c); err != nil {
			return fmt.Errorf("insert contribution: %w", err)
		}

		goal.CurrentAmount = goal.CurrentAmount.Add(amount)
		goal.IsCompleted = core.GoalReached(goal.CurrentAmount, goal.TargetAmount)
		goal.UpdatedAt = stamp
		if err := q.UpdateGoalProgress(ctx, goal); err != nil {
			return fmt.Errorf("update goal progress: %w", err)
		}

		entry, err := t.recordBalance(ctx, q, ownerID, before.Available, amount.Neg(), notes, stamp)
		if err != nil {
			return err
		}

		res = ContributionResult{Contribution: c, Goal: goal, BalanceEntry: entry}
		return nil
	})
	if err != nil {
		return ContributionResult{}, transactionError("contribute", err)
	}
	return res, nil
}

// Reverse undoes a contribution: the row is removed, the goal gives the
// amount back and its completion is recomputed, and the available balance
// grows by the same amount.
func (t *ContributionTransactor) Reverse(ctx context.Context, ownerID, contributionID string) (ContributionResult, error) {
	unlock := t.locks.Lock(ownerID)
	defer unlock()

	var res ContributionResult
	err := t.store.InTx(ctx, func(q store.Queries) error {
		c, err := q.GetContribution(ctx, ownerID, contributionID)
		if err != nil {
			return err
		}
		goal, err := q.GetGoal(ctx, ownerID, c.GoalID)
		if err != nil {
			return err
		}
		before, err := Reconcile(ctx, q, ownerID)
		if err != nil {
			return err
		}

		if err := q.DeleteContribution(ctx, c.ID); err != nil {
			return fmt.Errorf("delete contribution: %w", err)
		}

		stamp := t.now().UTC()
		goal.CurrentAmount = goal.CurrentAmount.Sub(c.Amount)
		goal.IsCompleted = core.GoalReached(goal.CurrentAmount, goal.TargetAmount)
		goal.UpdatedAt = stamp
		if err := q.UpdateGoalProgress(ctx, goal); err != nil {
			return fmt.Errorf("update goal progress: %w", err)
		}

		notes := fmt.Sprintf("reversal of contribution %s", c.ID)
		entry, err := t.recordBalance(ctx, q, ownerID, before.Available, c.Amount, notes, stamp)
		if err != nil {
			return err
		}

		res = ContributionResult{Contribution: c, Goal: goal, BalanceEntry: entry}
		return nil
	})
	if err != nil {
		return ContributionResult{}, transactionError("reverse contribution", err)
	}
	return res, nil
}

// recordBalance refreshes the cached balance to previous+change and appends
// the matching audit entry. Callers pass the available balance (reconciled
// minus committed goal funds) as previous, not the bare reconciled balance,
// so the cache and the audit trail show what is still free to allocate.
func (t *ContributionTransactor) recordBalance(ctx context.Context, q store.Queries, ownerID string, previous, change core.Money, notes string, stamp time.Time) (core.BalanceEntry, error) {
	acct, err := q.GetAccount(ctx, ownerID)
	if err != nil {
		return core.BalanceEntry{}, fmt.Errorf("get account: %w", err)
	}
	acct.OwnerID = ownerID
	acct.CurrentBalance = previous.Add(change)
	acct.BalanceUpdatedAt = stamp
	if err := q.SaveAccount(ctx, acct); err != nil {
		return core.BalanceEntry{}, fmt.Errorf("save account: %w", err)
	}

	entry := core.BalanceEntry{
		ID:             t.newID(),
		OwnerID:        ownerID,
		Amount:         acct.CurrentBalance,
		PreviousAmount: previous,
		ChangeAmount:   change,
		EntryType:      core.GoalContribution,
		Notes:          notes,
		CreatedAt:      stamp,
	}
	if err := q.AppendBalanceEntry(ctx, entry); err != nil {
		return core.BalanceEntry{}, fmt.Errorf("append balance entry: %w", err)
	}
	return entry, nil
}

// transactionError passes domain rejections through unchanged and wraps
// everything else in a TransactionFailure.
func transactionError(op string, err error) error {
	var (
		ve *core.ValidationError
		nf *core.NotFoundError
		ib *core.InsufficientBalanceError
	)
	if errors.As(err, &ve) || errors.As(err, &nf) || errors.As(err, &ib) {
		return err
	}
	return &core.TransactionFailure{Op: op, Err: err}
}
