package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"salvadanaio/internal/log"
	"salvadanaio/internal/store"
)

// GenerationJob extends every active source with the entries of the months
// that have started since it last ran.
type GenerationJob struct {
	store store.Store
	gen   *EntryGenerator
	sync  *EntrySynchronizer
}

func NewGenerationJob(st store.Store, gen *EntryGenerator, sync *EntrySynchronizer) *GenerationJob {
	return &GenerationJob{store: st, gen: gen, sync: sync}
}

// GenerateUpcoming runs the generator for every active source of every owner
// and returns the number of entries created. A failing source is logged and
// skipped so one bad record cannot stall the rest.
func (j *GenerationJob) GenerateUpcoming(ctx context.Context, now time.Time) (int, error) {
	if j.store == nil || j.gen == nil || j.sync == nil {
		return 0, fmt.Errorf("generation job not properly initialized")
	}

	sources, err := j.store.ListActiveSources(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sources: %w", err)
	}

	slog.InfoContext(ctx, "Generating ledger entries",
		log.FieldComponent, log.ComponentGeneration,
		"total_active", len(sources),
		log.FieldMonth, now.Format("2006-01"))

	total := 0
	for _, src := range sources {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		var created int
		unlock := j.sync.LockSource(src.ID)
		err := j.store.InTx(ctx, func(q store.Queries) error {
			// Reload inside the transaction; the source may have been edited
			// or deactivated since the listing.
			cur, err := q.GetSource(ctx, src.OwnerID, src.ID)
			if err != nil {
				return err
			}
			created, err = j.gen.Generate(ctx, q, cur, now)
			return err
		})
		unlock()

		if err != nil {
			slog.ErrorContext(ctx, "Failed to generate entries for source",
				log.FieldComponent, log.ComponentGeneration,
				log.FieldSourceID, src.ID,
				log.FieldOwnerID, src.OwnerID,
				log.FieldError, err)
			continue
		}
		if created > 0 {
			slog.DebugContext(ctx, "Generated entries for source",
				log.FieldSourceID, src.ID,
				log.FieldAffected, created)
		}
		total += created
	}

	slog.InfoContext(ctx, "Ledger entry generation complete",
		log.FieldComponent, log.ComponentGeneration,
		"created", total,
		"total_checked", len(sources))

	return total, nil
}
