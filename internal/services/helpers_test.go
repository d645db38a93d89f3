package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store/memory"
)

const owner = "owner-1"

// today is the clock every service under test reads.
var today = time.Date(2025, 5, 15, 10, 0, 0, 0, time.UTC)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store    *memory.Store
	gen      *EntryGenerator
	sync     *EntrySynchronizer
	sources  *SourceService
	accounts *AccountService
	goals    *GoalService
	tx       *ContributionTransactor
	repairs  *recordingPublisher
}

func newFixture(t *testing.T, opts ...SourceServiceOption) *fixture {
	t.Helper()
	clock := func() time.Time { return today }

	st := memory.New()
	gen := NewEntryGenerator()
	sync := NewEntrySynchronizer(st, gen)
	sync.now = clock

	repairs := &recordingPublisher{}
	sources := NewSourceService(st, gen, sync, append([]SourceServiceOption{WithRepairPublisher(repairs)}, opts...)...)
	sources.now = clock

	accounts := NewAccountService(st)
	accounts.now = clock

	goals := NewGoalService(st)
	goals.now = clock

	tx := NewContributionTransactor(st)
	tx.now = clock

	return &fixture{
		store:    st,
		gen:      gen,
		sync:     sync,
		sources:  sources,
		accounts: accounts,
		goals:    goals,
		tx:       tx,
		repairs:  repairs,
	}
}

func (f *fixture) createSource(t *testing.T, kind core.Kind, amount string, freq core.Frequency, anchor time.Time) core.RecurringSource {
	t.Helper()
	src, _, err := f.sources.Create(context.Background(), core.RecurringSource{
		OwnerID:        owner,
		Kind:           kind,
		Name:           string(kind) + " " + amount,
		DeclaredAmount: core.MustAmount(amount),
		Frequency:      freq,
		AnchorDate:     anchor,
		Active:         true,
	})
	require.NoError(t, err)
	return src
}

func (f *fixture) entries(t *testing.T, sourceID string) []core.LedgerEntry {
	t.Helper()
	entries, err := f.store.ListEntries(context.Background(), sourceID)
	require.NoError(t, err)
	return entries
}

func months(entries []core.LedgerEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Month.String())
	}
	return out
}

type repairRequest struct {
	ownerID, sourceID, change string
}

type recordingPublisher struct {
	requests []repairRequest
	err      error
}

func (p *recordingPublisher) PublishSyncRepair(_ context.Context, ownerID, sourceID, change string) error {
	p.requests = append(p.requests, repairRequest{ownerID, sourceID, change})
	return p.err
}
