// Package memory is an in-process store.Store. Transactions run against a
// copy of the state that replaces the live state only on success, so a failed
// transaction leaves nothing behind.
package memory

import (
	"context"
	"sort"
	"sync"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

type state struct {
	sources       map[string]core.RecurringSource
	entries       map[string]map[string]core.LedgerEntry // source id -> month -> entry
	accounts      map[string]core.Account
	balance       []core.BalanceEntry
	goals         map[string]core.Goal
	contributions map[string]core.Contribution
}

func newState() *state {
	return &state{
		sources:       map[string]core.RecurringSource{},
		entries:       map[string]map[string]core.LedgerEntry{},
		accounts:      map[string]core.Account{},
		goals:         map[string]core.Goal{},
		contributions: map[string]core.Contribution{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.sources {
		c.sources[k] = v
	}
	for src, byMonth := range s.entries {
		m := make(map[string]core.LedgerEntry, len(byMonth))
		for k, v := range byMonth {
			m[k] = v
		}
		c.entries[src] = m
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	c.balance = append([]core.BalanceEntry(nil), s.balance...)
	for k, v := range s.goals {
		c.goals[k] = v
	}
	for k, v := range s.contributions {
		c.contributions[k] = v
	}
	return c
}

type Store struct {
	mu       sync.Mutex
	st       *state
	failures map[string]error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState(), failures: map[string]error{}}
}

// FailNext makes the next call of the named operation (e.g. "AppendBalanceEntry")
// return err. Used to exercise rollback paths.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// InTx implements store.Store. Transactions are serialized by the store lock.
func (s *Store) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.st.clone()
	if err := fn(&view{st: draft, owner: s}); err != nil {
		return err
	}
	s.st = draft
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) do(fn func(v *view) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&view{st: s.st, owner: s})
}

// view implements store.Queries over one state. The caller holds the lock.
type view struct {
	st    *state
	owner *Store
}

func (v *view) fail(op string) error {
	if err, ok := v.owner.failures[op]; ok {
		delete(v.owner.failures, op)
		return err
	}
	return nil
}

func (v *view) CreateSource(_ context.Context, src core.RecurringSource) error {
	if err := v.fail("CreateSource"); err != nil {
		return err
	}
	v.st.sources[src.ID] = src
	return nil
}

func (v *view) GetSource(_ context.Context, ownerID, id string) (core.RecurringSource, error) {
	src, ok := v.st.sources[id]
	if !ok || src.OwnerID != ownerID {
		return core.RecurringSource{}, &core.NotFoundError{Resource: "source", ID: id}
	}
	return src, nil
}

func (v *view) UpdateSource(_ context.Context, src core.RecurringSource) error {
	if err := v.fail("UpdateSource"); err != nil {
		return err
	}
	cur, ok := v.st.sources[src.ID]
	if !ok || cur.OwnerID != src.OwnerID {
		return &core.NotFoundError{Resource: "source", ID: src.ID}
	}
	src.CreatedAt = cur.CreatedAt
	v.st.sources[src.ID] = src
	return nil
}

func (v *view) DeleteSource(_ context.Context, ownerID, id string) error {
	src, ok := v.st.sources[id]
	if !ok || src.OwnerID != ownerID {
		return &core.NotFoundError{Resource: "source", ID: id}
	}
	delete(v.st.sources, id)
	delete(v.st.entries, id)
	return nil
}

func (v *view) ListSources(_ context.Context, ownerID string) ([]core.RecurringSource, error) {
	return v.filterSources(func(s core.RecurringSource) bool { return s.OwnerID == ownerID }), nil
}

func (v *view) ListActiveSources(_ context.Context) ([]core.RecurringSource, error) {
	return v.filterSources(func(s core.RecurringSource) bool { return s.Active }), nil
}

func (v *view) filterSources(keep func(core.RecurringSource) bool) []core.RecurringSource {
	var out []core.RecurringSource
	for _, s := range v.st.sources {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) InsertEntryIfAbsent(_ context.Context, e core.LedgerEntry) (bool, error) {
	if err := v.fail("InsertEntryIfAbsent"); err != nil {
		return false, err
	}
	byMonth, ok := v.st.entries[e.SourceID]
	if !ok {
		byMonth = map[string]core.LedgerEntry{}
		v.st.entries[e.SourceID] = byMonth
	}
	key := e.Month.String()
	if _, exists := byMonth[key]; exists {
		return false, nil
	}
	byMonth[key] = e
	return true, nil
}

func (v *view) ListEntries(_ context.Context, sourceID string) ([]core.LedgerEntry, error) {
	return v.entriesOf(sourceID, nil), nil
}

// entriesOf returns entries ordered by month, with Kind filled from the
// source, optionally filtered by keep.
func (v *view) entriesOf(sourceID string, keep func(core.LedgerEntry) bool) []core.LedgerEntry {
	kind := v.st.sources[sourceID].Kind
	var out []core.LedgerEntry
	for _, e := range v.st.entries[sourceID] {
		e.Kind = kind
		if keep == nil || keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

func (v *view) DeleteEntries(_ context.Context, sourceID string) (int64, error) {
	if err := v.fail("DeleteEntries"); err != nil {
		return 0, err
	}
	n := int64(len(v.st.entries[sourceID]))
	delete(v.st.entries, sourceID)
	return n, nil
}

func (v *view) DeleteEntriesAfter(_ context.Context, sourceID string, m core.Month) (int64, error) {
	if err := v.fail("DeleteEntriesAfter"); err != nil {
		return 0, err
	}
	var n int64
	for k, e := range v.st.entries[sourceID] {
		if e.Month.After(m) {
			delete(v.st.entries[sourceID], k)
			n++
		}
	}
	return n, nil
}

func (v *view) UpdateEntryAmountsFrom(_ context.Context, sourceID string, m core.Month, amount core.Money) (int64, error) {
	if err := v.fail("UpdateEntryAmountsFrom"); err != nil {
		return 0, err
	}
	var n int64
	for k, e := range v.st.entries[sourceID] {
		if !e.Month.Before(m) {
			e.Amount = amount
			v.st.entries[sourceID][k] = e
			n++
		}
	}
	return n, nil
}

func (v *view) ListCountedEntries(_ context.Context, ownerID string) ([]core.LedgerEntry, error) {
	var out []core.LedgerEntry
	for id, src := range v.st.sources {
		if src.OwnerID != ownerID {
			continue
		}
		switch {
		case src.Active:
			out = append(out, v.entriesOf(id, nil)...)
		case src.DeactivatedAt != nil:
			until := *src.DeactivatedAt
			out = append(out, v.entriesOf(id, func(e core.LedgerEntry) bool { return !e.Month.After(until) })...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out, nil
}

func (v *view) GetAccount(_ context.Context, ownerID string) (core.Account, error) {
	if a, ok := v.st.accounts[ownerID]; ok {
		return a, nil
	}
	return core.Account{OwnerID: ownerID, CurrentBalance: core.Zero}, nil
}

func (v *view) SaveAccount(_ context.Context, a core.Account) error {
	if err := v.fail("SaveAccount"); err != nil {
		return err
	}
	v.st.accounts[a.OwnerID] = a
	return nil
}

func (v *view) AppendBalanceEntry(_ context.Context, e core.BalanceEntry) error {
	if err := v.fail("AppendBalanceEntry"); err != nil {
		return err
	}
	v.st.balance = append(v.st.balance, e)
	return nil
}

func (v *view) ListBalanceEntries(_ context.Context, ownerID string, limit int) ([]core.BalanceEntry, error) {
	var out []core.BalanceEntry
	for i := len(v.st.balance) - 1; i >= 0; i-- {
		if v.st.balance[i].OwnerID != ownerID {
			continue
		}
		out = append(out, v.st.balance[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (v *view) CreateGoal(_ context.Context, g core.Goal) error {
	if err := v.fail("CreateGoal"); err != nil {
		return err
	}
	v.st.goals[g.ID] = g
	return nil
}

func (v *view) GetGoal(_ context.Context, ownerID, id string) (core.Goal, error) {
	g, ok := v.st.goals[id]
	if !ok || g.OwnerID != ownerID {
		return core.Goal{}, &core.NotFoundError{Resource: "goal", ID: id}
	}
	return g, nil
}

func (v *view) UpdateGoalProgress(_ context.Context, g core.Goal) error {
	if err := v.fail("UpdateGoalProgress"); err != nil {
		return err
	}
	cur, ok := v.st.goals[g.ID]
	if !ok || cur.OwnerID != g.OwnerID {
		return &core.NotFoundError{Resource: "goal", ID: g.ID}
	}
	cur.CurrentAmount = g.CurrentAmount
	cur.IsCompleted = g.IsCompleted
	cur.UpdatedAt = g.UpdatedAt
	v.st.goals[g.ID] = cur
	return nil
}

func (v *view) ListGoals(_ context.Context, ownerID string) ([]core.Goal, error) {
	var out []core.Goal
	for _, g := range v.st.goals {
		if g.OwnerID == ownerID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *view) InsertContribution(_ context.Context, c core.Contribution) error {
	if err := v.fail("InsertContribution"); err != nil {
		return err
	}
	v.st.contributions[c.ID] = c
	return nil
}

func (v *view) GetContribution(_ context.Context, ownerID, id string) (core.Contribution, error) {
	c, ok := v.st.contributions[id]
	if !ok || v.st.goals[c.GoalID].OwnerID != ownerID {
		return core.Contribution{}, &core.NotFoundError{Resource: "contribution", ID: id}
	}
	return c, nil
}

func (v *view) DeleteContribution(_ context.Context, id string) error {
	if err := v.fail("DeleteContribution"); err != nil {
		return err
	}
	if _, ok := v.st.contributions[id]; !ok {
		return &core.NotFoundError{Resource: "contribution", ID: id}
	}
	delete(v.st.contributions, id)
	return nil
}

func (v *view) ListContributions(_ context.Context, goalID string) ([]core.Contribution, error) {
	var out []core.Contribution
	for _, c := range v.st.contributions {
		if c.GoalID == goalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Month.Equal(out[j].Month) {
			return out[i].Month.Before(out[j].Month)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
