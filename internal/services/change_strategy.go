package services

// Each kind of source change has its own handler that knows how to realign
// the source's ledger entries. An edit needs at most one timeline change and
// at most one activation toggle.

import (
	"context"
	"fmt"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// ChangeKind names a source change that requires entry synchronization.
type ChangeKind string

const (
	ChangeNone        ChangeKind = ""
	ChangeAnchor      ChangeKind = "anchor_changed"
	ChangeEndDate     ChangeKind = "end_date_changed"
	ChangeAmount      ChangeKind = "amount_changed"
	ChangeDeactivated ChangeKind = "deactivated"
	ChangeReactivated ChangeKind = "reactivated"
)

func ParseChangeKind(s string) (ChangeKind, error) {
	switch k := ChangeKind(s); k {
	case ChangeAnchor, ChangeEndDate, ChangeAmount, ChangeDeactivated, ChangeReactivated:
		return k, nil
	}
	return ChangeNone, fmt.Errorf("unknown change kind: %q", s)
}

// DetectChanges lists the changes an edit needs, in the order they must be
// applied: the timeline change first, then the activation toggle.
func DetectChanges(before, after core.RecurringSource) []ChangeKind {
	var kinds []ChangeKind
	if k := DetectChange(before, after); k != ChangeNone {
		kinds = append(kinds, k)
	}
	if k := detectToggle(before, after); k != ChangeNone {
		kinds = append(kinds, k)
	}
	return kinds
}

// DetectChange returns the timeline change between the stored source and its
// edited version: anchor, then end date, then amount. Moving into or out of
// one-time changes which months hold an entry, so it counts as an anchor
// change.
func DetectChange(before, after core.RecurringSource) ChangeKind {
	switch {
	case !core.MonthOf(before.AnchorDate).Equal(core.MonthOf(after.AnchorDate)):
		return ChangeAnchor
	case (before.Frequency == core.OneTime) != (after.Frequency == core.OneTime):
		return ChangeAnchor
	case !sameEndMonth(before.EndDate, after.EndDate):
		return ChangeEndDate
	case !before.MonthlyAmount().Equal(after.MonthlyAmount()):
		return ChangeAmount
	}
	return ChangeNone
}

func detectToggle(before, after core.RecurringSource) ChangeKind {
	switch {
	case before.Active && !after.Active:
		return ChangeDeactivated
	case !before.Active && after.Active:
		return ChangeReactivated
	}
	return ChangeNone
}

func sameEndMonth(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return core.MonthOf(*a).Equal(core.MonthOf(*b))
}

// ChangeHandler realigns the entries of src after a change of one kind and
// returns the number of entries it touched. Handlers only read src, so
// applying one twice leaves the same entries.
type ChangeHandler interface {
	Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error)
}

// AnchorHandler drops every entry and regenerates from the new anchor. A
// deactivated source is rebuilt only up to its deactivation month.
type AnchorHandler struct{ Generator *EntryGenerator }

func (h AnchorHandler) Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error) {
	deleted, err := q.DeleteEntries(ctx, src.ID)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	created, err := h.Generator.Generate(ctx, q, historyOf(src), now)
	if err != nil {
		return deleted, err
	}
	return deleted + int64(created), nil
}

// historyOf returns the view of src whose entries still count: src itself
// while active, or src ending at its deactivation month.
func historyOf(src core.RecurringSource) core.RecurringSource {
	if src.Active || src.DeactivatedAt == nil {
		return src
	}
	h := src
	h.Active = true
	if h.EndDate == nil || core.MonthOf(*h.EndDate).After(*src.DeactivatedAt) {
		end := src.DeactivatedAt.Time
		h.EndDate = &end
	}
	return h
}

// EndDateHandler prunes entries past the new effective end. It never
// generates; months added by a later end date are filled by the generation
// job.
type EndDateHandler struct{}

func (EndDateHandler) Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error) {
	n, err := q.DeleteEntriesAfter(ctx, src.ID, src.EffectiveEnd(now))
	if err != nil {
		return 0, fmt.Errorf("delete entries after end: %w", err)
	}
	return n, nil
}

// AmountHandler rewrites the amount of entries from the current month on.
// Past months keep the amount they were recorded with.
type AmountHandler struct{}

func (AmountHandler) Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error) {
	n, err := q.UpdateEntryAmountsFrom(ctx, src.ID, core.MonthOf(now), src.MonthlyAmount())
	if err != nil {
		return 0, fmt.Errorf("update entry amounts: %w", err)
	}
	return n, nil
}

// DeactivationHandler prunes entries after the deactivation month. Entries up
// to it stay and keep counting toward the balance.
type DeactivationHandler struct{}

func (DeactivationHandler) Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error) {
	cutoff := core.MonthOf(now)
	if src.DeactivatedAt != nil {
		cutoff = *src.DeactivatedAt
	}
	n, err := q.DeleteEntriesAfter(ctx, src.ID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete entries after deactivation: %w", err)
	}
	return n, nil
}

// ReactivationHandler fills the months missed while the source was inactive.
type ReactivationHandler struct{ Generator *EntryGenerator }

func (h ReactivationHandler) Apply(ctx context.Context, q store.Queries, src core.RecurringSource, now time.Time) (int64, error) {
	created, err := h.Generator.Generate(ctx, q, src, now)
	return int64(created), err
}

func defaultChangeHandlers(gen *EntryGenerator) map[ChangeKind]ChangeHandler {
	return map[ChangeKind]ChangeHandler{
		ChangeAnchor:      AnchorHandler{Generator: gen},
		ChangeEndDate:     EndDateHandler{},
		ChangeAmount:      AmountHandler{},
		ChangeDeactivated: DeactivationHandler{},
		ChangeReactivated: ReactivationHandler{Generator: gen},
	}
}
