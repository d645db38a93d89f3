package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
	"salvadanaio/internal/store"
)

// SyncMode controls what happens when entries cannot be realigned after a
// source edit.
type SyncMode string

const (
	// SyncBestEffort commits the edit first. A failed synchronization is
	// reported as a warning and queued for repair.
	SyncBestEffort SyncMode = "best_effort"
	// SyncStrict runs the edit and the synchronization in one transaction.
	SyncStrict SyncMode = "strict"
)

func ParseSyncMode(s string) (SyncMode, error) {
	switch m := SyncMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SyncBestEffort, SyncStrict:
		return m, nil
	case "":
		return SyncBestEffort, nil
	}
	return "", fmt.Errorf("unknown sync mode: %q", s)
}

// RepairPublisher queues an out-of-band synchronization of a source.
type RepairPublisher interface {
	PublishSyncRepair(ctx context.Context, ownerID, sourceID, change string) error
}

// UpdateResult describes a committed source edit. Changes lists every change
// applied, in order; Change is the last of them, so an activation toggle wins
// over the timeline change it came with. Warning is set when the edit was
// saved but its entries could not be realigned.
type UpdateResult struct {
	Source   core.RecurringSource
	Change   ChangeKind
	Changes  []ChangeKind
	Affected int64
	Warning  *core.SynchronizationWarning
}

// SourceService orchestrates recurring source operations and keeps their
// ledger entries in step.
type SourceService struct {
	store   store.Store
	gen     *EntryGenerator
	sync    *EntrySynchronizer
	mode    SyncMode
	repairs RepairPublisher
	logger  *log.StructuredLogger
	now     func() time.Time
	newID   func() string
}

type SourceServiceOption func(*SourceService)

func WithSyncMode(mode SyncMode) SourceServiceOption {
	return func(s *SourceService) { s.mode = mode }
}

func WithRepairPublisher(p RepairPublisher) SourceServiceOption {
	return func(s *SourceService) { s.repairs = p }
}

func WithSourceLogger(l *log.Logger) SourceServiceOption {
	return func(s *SourceService) { s.logger = log.NewStructuredLogger(l) }
}

func NewSourceService(st store.Store, gen *EntryGenerator, sync *EntrySynchronizer, opts ...SourceServiceOption) *SourceService {
	s := &SourceService{
		store:  st,
		gen:    gen,
		sync:   sync,
		mode:   SyncBestEffort,
		logger: log.NewStructuredLogger(log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentSources})),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new source, then generates its entries up to
// now in the same transaction. A source without an anchor date is anchored at
// its creation. It returns the stored source and how many entries were
// created.
func (s *SourceService) Create(ctx context.Context, src core.RecurringSource) (core.RecurringSource, int, error) {
	now := s.now()
	if src.AnchorDate.IsZero() {
		src.AnchorDate = now
	}
	src = src.WithCalendarDates()
	if err := src.Validate(); err != nil {
		return core.RecurringSource{}, 0, err
	}

	src.ID = s.newID()
	src.CreatedAt = now.UTC()
	src.UpdatedAt = now.UTC()
	src.DeactivatedAt = nil

	unlock := s.sync.LockSource(src.ID)
	defer unlock()

	var created int
	err := s.store.InTx(ctx, func(q store.Queries) error {
		if err := q.CreateSource(ctx, src); err != nil {
			return fmt.Errorf("create source: %w", err)
		}
		var err error
		created, err = s.gen.Generate(ctx, q, src, now)
		return err
	})
	if err != nil {
		return core.RecurringSource{}, 0, transactionError("create source", err)
	}
	return src, created, nil
}

// Update replaces the editable fields of a stored source and synchronizes its
// entries with the change.
func (s *SourceService) Update(ctx context.Context, src core.RecurringSource) (UpdateResult, error) {
	unlock := s.sync.LockSource(src.ID)
	defer unlock()

	now := s.now()
	var res UpdateResult

	persist := func(q store.Queries) error {
		before, err := q.GetSource(ctx, src.OwnerID, src.ID)
		if err != nil {
			return err
		}
		after := prepareUpdate(before, src, now)
		if err := after.Validate(); err != nil {
			return err
		}
		if err := q.UpdateSource(ctx, after); err != nil {
			return fmt.Errorf("update source: %w", err)
		}
		res.Source = after
		res.Changes = DetectChanges(before, after)
		if n := len(res.Changes); n > 0 {
			res.Change = res.Changes[n-1]
		}
		return nil
	}

	if s.mode == SyncStrict {
		err := s.store.InTx(ctx, func(q store.Queries) error {
			if err := persist(q); err != nil {
				return err
			}
			n, err := s.sync.ApplyAll(ctx, q, res.Changes, res.Source, now)
			if err != nil {
				return fmt.Errorf("synchronize entries: %w", err)
			}
			res.Affected = n
			return nil
		})
		if err != nil {
			return UpdateResult{}, transactionError("update source", err)
		}
		return res, nil
	}

	if err := s.store.InTx(ctx, persist); err != nil {
		return UpdateResult{}, transactionError("update source", err)
	}
	if res.Change == ChangeNone {
		return res, nil
	}

	err := s.store.InTx(ctx, func(q store.Queries) error {
		n, err := s.sync.ApplyAll(ctx, q, res.Changes, res.Source, now)
		res.Affected = n
		return err
	})
	if err != nil {
		res.Affected = 0
		res.Warning = &core.SynchronizationWarning{SourceID: src.ID, Change: joinChanges(res.Changes), Err: err}
		s.logger.LogSyncWarning(ctx, src.OwnerID, res.Warning)
		for _, kind := range res.Changes {
			s.requestRepair(ctx, src.OwnerID, src.ID, kind)
		}
	}
	return res, nil
}

// prepareUpdate merges an edit into the stored source. Identity and creation
// time come from the stored record, as does the anchor when the edit leaves it
// out; deactivation stamps the current month.
func prepareUpdate(before, edit core.RecurringSource, now time.Time) core.RecurringSource {
	if edit.AnchorDate.IsZero() {
		edit.AnchorDate = before.AnchorDate
	}
	after := edit.WithCalendarDates()
	after.ID = before.ID
	after.OwnerID = before.OwnerID
	after.CreatedAt = before.CreatedAt
	after.UpdatedAt = now.UTC()

	switch {
	case after.Active:
		after.DeactivatedAt = nil
	case before.Active:
		m := core.MonthOf(now)
		after.DeactivatedAt = &m
	default:
		after.DeactivatedAt = before.DeactivatedAt
	}
	return after
}

func joinChanges(kinds []ChangeKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ",")
}

func (s *SourceService) requestRepair(ctx context.Context, ownerID, sourceID string, kind ChangeKind) {
	if s.repairs == nil {
		slog.WarnContext(ctx, "Repair publisher not available, skipping repair request",
			log.FieldSourceID, sourceID)
		return
	}
	if err := s.repairs.PublishSyncRepair(ctx, ownerID, sourceID, string(kind)); err != nil {
		s.logger.LogError(ctx, "Failed to publish repair request", err, log.ComponentAMQP, log.OpRepair,
			log.NewFields().WithSource(ownerID, sourceID))
	}
}

// Delete removes a source and all of its entries.
func (s *SourceService) Delete(ctx context.Context, ownerID, id string) error {
	unlock := s.sync.LockSource(id)
	defer unlock()

	err := s.store.InTx(ctx, func(q store.Queries) error {
		return q.DeleteSource(ctx, ownerID, id)
	})
	if err != nil {
		return transactionError("delete source", err)
	}
	return nil
}

func (s *SourceService) Get(ctx context.Context, ownerID, id string) (core.RecurringSource, error) {
	return s.store.GetSource(ctx, ownerID, id)
}

func (s *SourceService) List(ctx context.Context, ownerID string) ([]core.RecurringSource, error) {
	return s.store.ListSources(ctx, ownerID)
}

// ListEntries returns the entries of a source the owner holds, by month.
func (s *SourceService) ListEntries(ctx context.Context, ownerID, id string) ([]core.LedgerEntry, error) {
	if _, err := s.store.GetSource(ctx, ownerID, id); err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}
