package services

import (
	"context"
	"fmt"
	"time"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// EntrySynchronizer keeps a source's ledger entries consistent with the
// source after it is edited.
type EntrySynchronizer struct {
	store    store.Store
	handlers map[ChangeKind]ChangeHandler
	locks    *keyedMutex
	now      func() time.Time
}

func NewEntrySynchronizer(st store.Store, gen *EntryGenerator) *EntrySynchronizer {
	return &EntrySynchronizer{
		store:    st,
		handlers: defaultChangeHandlers(gen),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Handler returns the handler registered for kind.
func (s *EntrySynchronizer) Handler(kind ChangeKind) (ChangeHandler, error) {
	h, ok := s.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("no handler for change kind %q", kind)
	}
	return h, nil
}

// RegisterHandler replaces the handler for kind.
func (s *EntrySynchronizer) RegisterHandler(kind ChangeKind, h ChangeHandler) {
	s.handlers[kind] = h
}

// LockSource serializes work on one source's entries within the process.
// The returned function releases the lock.
func (s *EntrySynchronizer) LockSource(sourceID string) func() {
	return s.locks.Lock(sourceID)
}

// Apply realigns the entries of src for a change of the given kind, using q
// so the caller decides the transaction boundary. ChangeNone is a no-op.
func (s *EntrySynchronizer) Apply(ctx context.Context, q store.Queries, kind ChangeKind, src core.RecurringSource, now time.Time) (int64, error) {
	if kind == ChangeNone {
		return 0, nil
	}
	h, err := s.Handler(kind)
	if err != nil {
		return 0, err
	}
	return h.Apply(ctx, q, src, now)
}

// ApplyAll applies kinds in order within q and returns the total number of
// entries touched.
func (s *EntrySynchronizer) ApplyAll(ctx context.Context, q store.Queries, kinds []ChangeKind, src core.RecurringSource, now time.Time) (int64, error) {
	var total int64
	for _, kind := range kinds {
		n, err := s.Apply(ctx, q, kind, src, now)
		if err != nil {
			return total, fmt.Errorf("%s: %w", kind, err)
		}
		total += n
	}
	return total, nil
}

// Repair re-applies a change against the source as currently stored, in its
// own transaction. It is used to recover from a synchronization that failed
// after the source edit was committed.
func (s *EntrySynchronizer) Repair(ctx context.Context, ownerID, sourceID string, kind ChangeKind) (int64, error) {
	unlock := s.LockSource(sourceID)
	defer unlock()

	var affected int64
	err := s.store.InTx(ctx, func(q store.Queries) error {
		src, err := q.GetSource(ctx, ownerID, sourceID)
		if err != nil {
			return err
		}
		affected, err = s.Apply(ctx, q, kind, src, s.now())
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("repair source %s (%s): %w", sourceID, kind, err)
	}
	return affected, nil
}
