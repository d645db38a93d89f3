// Package services holds the ledger engine: entry generation and
// synchronization, balance reconciliation, goal contributions, and the
// orchestration services the API and workers call into.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"salvadanaio/internal/core"
	"salvadanaio/internal/store"
)

// EntryGenerator projects a recurring source into one ledger entry per
// calendar month, from its anchor month through its effective end.
type EntryGenerator struct {
	newID func() string
}

func NewEntryGenerator() *EntryGenerator {
	return &EntryGenerator{newID: uuid.NewString}
}

// Months returns the months src should have an entry for, given now.
func (g *EntryGenerator) Months(src core.RecurringSource, now time.Time) []core.Month {
	if !src.Active {
		return nil
	}
	months := core.MonthsBetween(core.MonthOf(src.AnchorDate), src.EffectiveEnd(now))
	if src.Frequency == core.OneTime && len(months) > 1 {
		months = months[:1]
	}
	return months
}

// Generate inserts the entries src is missing and returns how many were
// created. Months that already hold an entry are left untouched, so running it
// twice creates nothing the second time.
func (g *EntryGenerator) Generate(ctx context.Context, q store.EntryStore, src core.RecurringSource, now time.Time) (int, error) {
	months := g.Months(src, now)
	if len(months) == 0 {
		return 0, nil
	}

	amount := src.MonthlyAmount()
	stamp := now.UTC()
	created := 0
	for _, m := range months {
		inserted, err := q.InsertEntryIfAbsent(ctx, core.LedgerEntry{
			ID:        g.newID(),
			SourceID:  src.ID,
			Kind:      src.Kind,
			Amount:    amount,
			Month:     m,
			CreatedAt: stamp,
			UpdatedAt: stamp,
		})
		if err != nil {
			return created, fmt.Errorf("insert entry %s for source %s: %w", m, src.ID, err)
		}
		if inserted {
			created++
		}
	}
	return created, nil
}
