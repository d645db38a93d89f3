package memory

import (
	"context"

	"salvadanaio/internal/core"
)

// Non-transactional entry points: each call locks the store and runs against
// the live state.

func (s *Store) CreateSource(ctx context.Context, src core.RecurringSource) error {
	return s.do(func(v *view) error { return v.CreateSource(ctx, src) })
}

func (s *Store) GetSource(ctx context.Context, ownerID, id string) (core.RecurringSource, error) {
	var out core.RecurringSource
	err := s.do(func(v *view) (err error) {
		out, err = v.GetSource(ctx, ownerID, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateSource(ctx context.Context, src core.RecurringSource) error {
	return s.do(func(v *view) error { return v.UpdateSource(ctx, src) })
}

func (s *Store) DeleteSource(ctx context.Context, ownerID, id string) error {
	return s.do(func(v *view) error { return v.DeleteSource(ctx, ownerID, id) })
}

func (s *Store) ListSources(ctx context.Context, ownerID string) ([]core.RecurringSource, error) {
	var out []core.RecurringSource
	err := s.do(func(v *view) (err error) {
		out, err = v.ListSources(ctx, ownerID)
		return err
	})
	return out, err
}

func (s *Store) ListActiveSources(ctx context.Context) ([]core.RecurringSource, error) {
	var out []core.RecurringSource
	err := s.do(func(v *view) (err error) {
		out, err = v.ListActiveSources(ctx)
		return err
	})
	return out, err
}

func (s *Store) InsertEntryIfAbsent(ctx context.Context, e core.LedgerEntry) (bool, error) {
	var out bool
	err := s.do(func(v *view) (err error) {
		out, err = v.InsertEntryIfAbsent(ctx, e)
		return err
	})
	return out, err
}

func (s *Store) ListEntries(ctx context.Context, sourceID string) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	err := s.do(func(v *view) (err error) {
		out, err = v.ListEntries(ctx, sourceID)
		return err
	})
	return out, err
}

func (s *Store) DeleteEntries(ctx context.Context, sourceID string) (int64, error) {
	var out int64
	err := s.do(func(v *view) (err error) {
		out, err = v.DeleteEntries(ctx, sourceID)
		return err
	})
	return out, err
}

func (s *Store) DeleteEntriesAfter(ctx context.Context, sourceID string, m core.Month) (int64, error) {
	var out int64
	err := s.do(func(v *view) (err error) {
		out, err = v.DeleteEntriesAfter(ctx, sourceID, m)
		return err
	})
	return out, err
}

func (s *Store) UpdateEntryAmountsFrom(ctx context.Context, sourceID string, m core.Month, amount core.Money) (int64, error) {
	var out int64
	err := s.do(func(v *view) (err error) {
		out, err = v.UpdateEntryAmountsFrom(ctx, sourceID, m, amount)
		return err
	})
	return out, err
}

func (s *Store) ListCountedEntries(ctx context.Context, ownerID string) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	err := s.do(func(v *view) (err error) {
		out, err = v.ListCountedEntries(ctx, ownerID)
		return err
	})
	return out, err
}

func (s *Store) GetAccount(ctx context.Context, ownerID string) (core.Account, error) {
	var out core.Account
	err := s.do(func(v *view) (err error) {
		out, err = v.GetAccount(ctx, ownerID)
		return err
	})
	return out, err
}

func (s *Store) SaveAccount(ctx context.Context, a core.Account) error {
	return s.do(func(v *view) error { return v.SaveAccount(ctx, a) })
}

func (s *Store) AppendBalanceEntry(ctx context.Context, e core.BalanceEntry) error {
	return s.do(func(v *view) error { return v.AppendBalanceEntry(ctx, e) })
}

func (s *Store) ListBalanceEntries(ctx context.Context, ownerID string, limit int) ([]core.BalanceEntry, error) {
	var out []core.BalanceEntry
	err := s.do(func(v *view) (err error) {
		out, err = v.ListBalanceEntries(ctx, ownerID, limit)
		return err
	})
	return out, err
}

func (s *Store) CreateGoal(ctx context.Context, g core.Goal) error {
	return s.do(func(v *view) error { return v.CreateGoal(ctx, g) })
}

func (s *Store) GetGoal(ctx context.Context, ownerID, id string) (core.Goal, error) {
	var out core.Goal
	err := s.do(func(v *view) (err error) {
		out, err = v.GetGoal(ctx, ownerID, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateGoalProgress(ctx context.Context, g core.Goal) error {
	return s.do(func(v *view) error { return v.UpdateGoalProgress(ctx, g) })
}

func (s *Store) ListGoals(ctx context.Context, ownerID string) ([]core.Goal, error) {
	var out []core.Goal
	err := s.do(func(v *view) (err error) {
		out, err = v.ListGoals(ctx, ownerID)
		return err
	})
	return out, err
}

func (s *Store) InsertContribution(ctx context.Context, c core.Contribution) error {
	return s.do(func(v *view) error { return v.InsertContribution(ctx, c) })
}

func (s *Store) GetContribution(ctx context.Context, ownerID, id string) (core.Contribution, error) {
	var out core.Contribution
	err := s.do(func(v *view) (err error) {
		out, err = v.GetContribution(ctx, ownerID, id)
		return err
	})
	return out, err
}

func (s *Store) DeleteContribution(ctx context.Context, id string) error {
	return s.do(func(v *view) error { return v.DeleteContribution(ctx, id) })
}

func (s *Store) ListContributions(ctx context.Context, goalID string) ([]core.Contribution, error) {
	var out []core.Contribution
	err := s.do(func(v *view) (err error) {
		out, err = v.ListContributions(ctx, goalID)
		return err
	})
	return out, err
}
