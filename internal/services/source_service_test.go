package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salvadanaio/internal/core"
)

func TestSourceService_CreateValidates(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.sources.Create(context.Background(), core.RecurringSource{
		OwnerID:        owner,
		Kind:           core.Income,
		DeclaredAmount: core.MustAmount("10"),
		Frequency:      core.Frequency("daily"),
		AnchorDate:     date(2025, 1, 1),
		Active:         true,
	})
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "frequency", ve.Field)

	sources, err := f.sources.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSourceService_CreateRollsBackOnGenerationFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext("InsertEntryIfAbsent", errors.New("disk full"))

	_, _, err := f.sources.Create(context.Background(), core.RecurringSource{
		OwnerID:        owner,
		Kind:           core.Income,
		DeclaredAmount: core.MustAmount("10"),
		Frequency:      core.Monthly,
		AnchorDate:     date(2025, 1, 1),
		Active:         true,
	})
	var tf *core.TransactionFailure
	require.ErrorAs(t, err, &tf)
	assert.Equal(t, core.CodeTransactionFailed, core.ErrorCode(err))

	sources, err := f.sources.List(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSourceService_AnchorChange(t *testing.T) {
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 1, 1))
	require.Len(t, f.entries(t, src.ID), 5)

	src.AnchorDate = date(2025, 4, 12)
	res, err := f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeAnchor, res.Change)
	assert.Nil(t, res.Warning)

	assert.Equal(t, []string{"2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)))
}

func TestSourceService_EndDateChange(t *testing.T) {
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 1, 1))

	src.EndDate = ptr(date(2025, 3, 20))
	res, err := f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeEndDate, res.Change)
	assert.Equal(t, int64(2), res.Affected)
	assert.Equal(t, []string{"2025-01-01", "2025-02-01", "2025-03-01"}, months(f.entries(t, src.ID)))

	// Extending the end date does not generate on its own.
	src.EndDate = ptr(date(2025, 12, 31))
	res, err = f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeEndDate, res.Change)
	assert.Len(t, f.entries(t, src.ID), 3)
}

func TestSourceService_AmountChange(t *testing.T) {
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 3, 1))

	src.DeclaredAmount = core.MustAmount("250")
	res, err := f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeAmount, res.Change)
	assert.Equal(t, int64(1), res.Affected)

	entries := f.entries(t, src.ID)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Amount.Equal(core.MustAmount("100")))
	assert.True(t, entries[1].Amount.Equal(core.MustAmount("100")))
	assert.True(t, entries[2].Amount.Equal(core.MustAmount("250")))
}

func TestSourceService_NoChange(t *testing.T) {
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 3, 1))

	src.Name = "renamed"
	res, err := f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, res.Change)
	assert.Equal(t, "renamed", res.Source.Name)
	assert.Len(t, f.entries(t, src.ID), 3)
}

func TestSourceService_DeactivateAndReactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 3, 1))

	// An entry beyond the current month, as if written by a future end date.
	_, err := f.store.InsertEntryIfAbsent(ctx, core.LedgerEntry{
		ID: "future", SourceID: src.ID, Amount: core.MustAmount("100"), Month: core.NewMonth(2025, 6),
	})
	require.NoError(t, err)

	src.Active = false
	res, err := f.sources.Update(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, ChangeDeactivated, res.Change)
	require.NotNil(t, res.Source.DeactivatedAt)
	assert.Equal(t, "2025-05-01", res.Source.DeactivatedAt.String())
	assert.Equal(t, []string{"2025-03-01", "2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)))

	// Historical entries keep counting while the source is inactive.
	bal, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, bal.Expenses.Equal(core.MustAmount("300")), "expenses %s", bal.Expenses)

	stored, err := f.sources.Get(ctx, owner, src.ID)
	require.NoError(t, err)
	stored.Active = true
	res, err = f.sources.Update(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, ChangeReactivated, res.Change)
	assert.Nil(t, res.Source.DeactivatedAt)
}

func TestSourceService_FrequencyIntoAndOutOfOneTime(t *testing.T) {
	f := newFixture(t)
	src := f.createSource(t, core.Income, "3000", core.Monthly, date(2025, 3, 1))
	require.Len(t, f.entries(t, src.ID), 3)

	src.Frequency = core.OneTime
	res, err := f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeAnchor, res.Change)
	assert.Equal(t, []string{"2025-03-01"}, months(f.entries(t, src.ID)))

	src.Frequency = core.Monthly
	res, err = f.sources.Update(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ChangeAnchor, res.Change)
	assert.Equal(t, []string{"2025-03-01", "2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)))
}

func TestSourceService_DeactivateWithAnchorMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Income, "3000", core.Monthly, date(2025, 1, 1))

	src.Active = false
	src.AnchorDate = date(2025, 4, 1)
	res, err := f.sources.Update(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeAnchor, ChangeDeactivated}, res.Changes)
	assert.Equal(t, ChangeDeactivated, res.Change)
	assert.Equal(t, []string{"2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)))

	bal, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, bal.Income.Equal(core.MustAmount("6000")), "income %s", bal.Income)
}

func TestSourceService_ReactivateWithAnchorMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Income, "3000", core.Monthly, date(2025, 1, 1))

	src.Active = false
	_, err := f.sources.Update(ctx, src)
	require.NoError(t, err)

	src.Active = true
	src.AnchorDate = date(2025, 4, 1)
	res, err := f.sources.Update(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeAnchor, ChangeReactivated}, res.Changes)
	assert.Equal(t, []string{"2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)))
}

func TestSourceService_AnchorMoveWhileInactive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Income, "100", core.Monthly, date(2025, 1, 1))

	src.Active = false
	_, err := f.sources.Update(ctx, src)
	require.NoError(t, err)

	src.AnchorDate = date(2025, 3, 1)
	res, err := f.sources.Update(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, []ChangeKind{ChangeAnchor}, res.Changes)
	assert.Equal(t, []string{"2025-03-01", "2025-04-01", "2025-05-01"}, months(f.entries(t, src.ID)),
		"history is rebuilt up to the deactivation month")
}

func TestSourceService_CreateWithoutAnchor(t *testing.T) {
	f := newFixture(t)
	src, created, err := f.sources.Create(context.Background(), core.RecurringSource{
		OwnerID:        owner,
		Kind:           core.Expense,
		Name:           "Gym",
		DeclaredAmount: core.MustAmount("40"),
		Frequency:      core.Monthly,
		Active:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, date(2025, 5, 15), src.AnchorDate)
	assert.Equal(t, []string{"2025-05-01"}, months(f.entries(t, src.ID)))
}

func TestSourceService_DatesKeepTheirCalendarMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rome := time.FixedZone("CET", 3600)
	anchor := time.Date(2025, 3, 1, 0, 30, 0, 0, rome)

	src := f.createSource(t, core.Income, "100", core.Monthly, anchor)
	assert.Equal(t, date(2025, 3, 1), src.AnchorDate)

	stored, err := f.sources.Get(ctx, owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", core.MonthOf(stored.AnchorDate.UTC()).String())

	stored.Name = "renamed"
	res, err := f.sources.Update(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, res.Change)
	assert.Len(t, f.entries(t, src.ID), 3)
}

func TestSourceService_BestEffortSyncFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 1, 1))

	f.store.FailNext("DeleteEntriesAfter", errors.New("database is locked"))
	src.EndDate = ptr(date(2025, 2, 1))
	res, err := f.sources.Update(ctx, src)
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, src.ID, res.Warning.SourceID)
	assert.Equal(t, core.CodeSyncWarning, res.Warning.Code())

	// The edit is committed, the entries are not realigned yet.
	stored, err := f.sources.Get(ctx, owner, src.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EndDate)
	assert.Len(t, f.entries(t, src.ID), 5)

	require.Len(t, f.repairs.requests, 1)
	assert.Equal(t, repairRequest{owner, src.ID, string(ChangeEndDate)}, f.repairs.requests[0])

	n, err := f.sync.Repair(ctx, owner, src.ID, ChangeEndDate)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, []string{"2025-01-01", "2025-02-01"}, months(f.entries(t, src.ID)))

	// Repairs are idempotent.
	n, err = f.sync.Repair(ctx, owner, src.ID, ChangeEndDate)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSourceService_StrictSyncFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithSyncMode(SyncStrict))
	src := f.createSource(t, core.Expense, "100", core.Monthly, date(2025, 1, 1))

	f.store.FailNext("UpdateEntryAmountsFrom", errors.New("database is locked"))
	edited := src
	edited.DeclaredAmount = core.MustAmount("999")
	_, err := f.sources.Update(ctx, edited)
	var tf *core.TransactionFailure
	require.ErrorAs(t, err, &tf)

	stored, err := f.sources.Get(ctx, owner, src.ID)
	require.NoError(t, err)
	assert.True(t, stored.DeclaredAmount.Equal(core.MustAmount("100")))
	for _, e := range f.entries(t, src.ID) {
		assert.True(t, e.Amount.Equal(core.MustAmount("100")))
	}
	assert.Empty(t, f.repairs.requests)
}

func TestSourceService_OwnerScoping(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Income, "10", core.Monthly, date(2025, 5, 1))

	_, err := f.sources.Get(ctx, "someone-else", src.ID)
	var nf *core.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = f.sources.ListEntries(ctx, "someone-else", src.ID)
	assert.ErrorAs(t, err, &nf)

	edited := src
	edited.OwnerID = "someone-else"
	_, err = f.sources.Update(ctx, edited)
	assert.ErrorAs(t, err, &nf)

	assert.ErrorAs(t, f.sources.Delete(ctx, "someone-else", src.ID), &nf)
}

func TestSourceService_DeleteRemovesEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	src := f.createSource(t, core.Income, "10", core.Monthly, date(2025, 1, 1))

	require.NoError(t, f.sources.Delete(ctx, owner, src.ID))
	assert.Empty(t, f.entries(t, src.ID))

	bal, err := f.accounts.Balance(ctx, owner)
	require.NoError(t, err)
	assert.True(t, bal.Income.IsZero())
}

func TestParseSyncMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SyncMode
		wantErr bool
	}{
		{"", SyncBestEffort, false},
		{"best_effort", SyncBestEffort, false},
		{"STRICT", SyncStrict, false},
		{"eventual", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSyncMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
