// Package worker consumes out-of-band ledger repair requests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"salvadanaio/internal/amqp"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/core"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
)

// Repairer re-applies a change to a source's entries.
type Repairer interface {
	Repair(ctx context.Context, ownerID, sourceID string, kind services.ChangeKind) (int64, error)
}

// RepairWorker handles SyncRepairMessages. Repairs read the source as it is
// stored, so a message older than the last completed repair of the same
// source and change has nothing left to do and is skipped.
type RepairWorker struct {
	repairer Repairer
	recent   *cache.LRUCache[time.Time]
	now      func() time.Time
}

const defaultRecentSize = 1024

func NewRepairWorker(repairer Repairer, dedupeTTL time.Duration) *RepairWorker {
	return &RepairWorker{
		repairer: repairer,
		recent:   cache.NewLRUCache[time.Time](defaultRecentSize, dedupeTTL),
		now:      time.Now,
	}
}

// Recent exposes the de-duplication cache so it can be swept.
func (w *RepairWorker) Recent() cache.Cleaner {
	return w.recent
}

// HandleRepairMessage processes one message. Returning an error requeues
// it; messages that can never succeed are logged and dropped.
func (w *RepairWorker) HandleRepairMessage(ctx context.Context, msg *amqp.SyncRepairMessage) error {
	kind, err := services.ParseChangeKind(msg.Change)
	if err != nil {
		slog.ErrorContext(ctx, "Dropping repair message with unknown change",
			log.FieldComponent, log.ComponentWorker,
			log.FieldSourceID, msg.SourceID,
			log.FieldChange, msg.Change)
		return nil
	}

	if last, ok := w.recent.Get(msg.Key()); ok && !msg.Timestamp.After(last) {
		slog.DebugContext(ctx, "Skipping repair already covered",
			log.FieldSourceID, msg.SourceID,
			log.FieldChange, msg.Change)
		return nil
	}

	started := w.now()
	affected, err := w.repairer.Repair(ctx, msg.OwnerID, msg.SourceID, kind)
	if err != nil {
		var nf *core.NotFoundError
		if errors.As(err, &nf) {
			slog.WarnContext(ctx, "Dropping repair for missing source",
				log.FieldComponent, log.ComponentWorker,
				log.FieldSourceID, msg.SourceID)
			return nil
		}
		return fmt.Errorf("repair source %s: %w", msg.SourceID, err)
	}
	w.recent.Set(msg.Key(), started)

	slog.InfoContext(ctx, "Repaired ledger entries",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpRepair,
		log.FieldSourceID, msg.SourceID,
		log.FieldChange, msg.Change,
		log.FieldAffected, affected)
	return nil
}
