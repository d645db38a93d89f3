package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

func TestDetectChange(t *testing.T) {
	base := core.RecurringSource{
		DeclaredAmount: core.MustAmount("100"),
		Frequency:      core.Monthly,
		AnchorDate:     date(2025, 1, 10),
		Active:         true,
	}
	with := func(edit func(*core.RecurringSource)) core.RecurringSource {
		s := base
		edit(&s)
		return s
	}

	tests := []struct {
		name  string
		after core.RecurringSource
		want  ChangeKind
	}{
		{"no change", base, ChangeNone},
		{"name only", with(func(s *core.RecurringSource) { s.Name = "rent" }), ChangeNone},
		{"anchor day within same month", with(func(s *core.RecurringSource) { s.AnchorDate = date(2025, 1, 25) }), ChangeNone},
		{"anchor month", with(func(s *core.RecurringSource) { s.AnchorDate = date(2025, 2, 1) }), ChangeAnchor},
		{"end date set", with(func(s *core.RecurringSource) { s.EndDate = ptr(date(2025, 3, 1)) }), ChangeEndDate},
		{"amount", with(func(s *core.RecurringSource) { s.DeclaredAmount = core.MustAmount("120") }), ChangeAmount},
		{"frequency", with(func(s *core.RecurringSource) { s.Frequency = core.Weekly }), ChangeAmount},
		{"monthly to one-time at the same amount", with(func(s *core.RecurringSource) { s.Frequency = core.OneTime }), ChangeAnchor},
		{"one-time beats end date", with(func(s *core.RecurringSource) {
			s.Frequency = core.OneTime
			s.EndDate = ptr(date(2025, 3, 1))
		}), ChangeAnchor},
		{
			name: "anchor beats end date and amount",
			after: with(func(s *core.RecurringSource) {
				s.AnchorDate = date(2024, 12, 1)
				s.EndDate = ptr(date(2025, 3, 1))
				s.DeclaredAmount = core.MustAmount("1")
			}),
			want: ChangeAnchor,
		},
		{
			name: "end date beats amount",
			after: with(func(s *core.RecurringSource) {
				s.EndDate = ptr(date(2025, 3, 1))
				s.DeclaredAmount = core.MustAmount("1")
			}),
			want: ChangeEndDate,
		},
		{"activation is not a timeline change", with(func(s *core.RecurringSource) { s.Active = false }), ChangeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectChange(base, tt.after))
		})
	}

	oneTime := with(func(s *core.RecurringSource) { s.Frequency = core.OneTime })
	assert.Equal(t, ChangeAnchor, DetectChange(oneTime, base), "one-time to monthly")
}

func TestDetectChanges(t *testing.T) {
	active := core.RecurringSource{
		DeclaredAmount: core.MustAmount("100"),
		Frequency:      core.Monthly,
		AnchorDate:     date(2025, 1, 1),
		Active:         true,
	}
	inactive := active
	inactive.Active = false
	moved := func(s core.RecurringSource) core.RecurringSource {
		s.AnchorDate = date(2025, 4, 1)
		return s
	}

	assert.Empty(t, DetectChanges(active, active))
	assert.Equal(t, []ChangeKind{ChangeDeactivated}, DetectChanges(active, inactive))
	assert.Equal(t, []ChangeKind{ChangeReactivated}, DetectChanges(inactive, active))
	assert.Equal(t, []ChangeKind{ChangeAnchor, ChangeDeactivated}, DetectChanges(active, moved(inactive)))
	assert.Equal(t, []ChangeKind{ChangeAnchor, ChangeReactivated}, DetectChanges(inactive, moved(active)))
	assert.Equal(t, []ChangeKind{ChangeAnchor}, DetectChanges(inactive, moved(inactive)))
}

func TestHistoryOf(t *testing.T) {
	active := core.RecurringSource{Frequency: core.Monthly, AnchorDate: date(2025, 1, 1), Active: true}
	assert.Equal(t, active, historyOf(active))

	d := core.NewMonth(2025, 3)
	stopped := active
	stopped.Active = false
	stopped.DeactivatedAt = &d
	h := historyOf(stopped)
	assert.True(t, h.Active)
	if assert.NotNil(t, h.EndDate) {
		assert.True(t, core.MonthOf(*h.EndDate).Equal(d))
	}

	stopped.EndDate = ptr(date(2025, 2, 10))
	h = historyOf(stopped)
	assert.True(t, core.MonthOf(*h.EndDate).Equal(core.NewMonth(2025, 2)), "an earlier end date is kept")
}

func TestSameEndMonth(t *testing.T) {
	a := date(2025, 3, 1)
	b := date(2025, 3, 31)
	c := date(2025, 4, 1)

	assert.True(t, sameEndMonth(nil, nil))
	assert.False(t, sameEndMonth(&a, nil))
	assert.False(t, sameEndMonth(nil, &a))
	assert.True(t, sameEndMonth(&a, &b))
	assert.False(t, sameEndMonth(&b, &c))
}

func TestParseChangeKind(t *testing.T) {
	for _, k := range []ChangeKind{ChangeAnchor, ChangeEndDate, ChangeAmount, ChangeDeactivated, ChangeReactivated} {
		got, err := ParseChangeKind(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseChangeKind("biweekly")
	assert.Error(t, err)
	_, err = ParseChangeKind("")
	assert.Error(t, err)
}

type countingHandler struct{ calls int }

func (h *countingHandler) Apply(_ context.Context, _ store.Queries, _ core.RecurringSource, _ time.Time) (int64, error) {
	h.calls++
	return 7, nil
}

func TestEntrySynchronizer_Handlers(t *testing.T) {
	f := newFixture(t)

	for _, k := range []ChangeKind{ChangeAnchor, ChangeEndDate, ChangeAmount, ChangeDeactivated, ChangeReactivated} {
		h, err := f.sync.Handler(k)
		assert.NoError(t, err, k)
		assert.NotNil(t, h, k)
	}

	_, err := f.sync.Handler(ChangeKind("paused"))
	assert.Error(t, err)

	custom := &countingHandler{}
	f.sync.RegisterHandler(ChangeAmount, custom)
	n, err := f.sync.Apply(context.Background(), f.store, ChangeAmount, core.RecurringSource{}, today)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, 1, custom.calls)

	n, err = f.sync.Apply(context.Background(), f.store, ChangeNone, core.RecurringSource{}, today)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, custom.calls)
}
