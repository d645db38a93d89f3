// Package cache provides in-process caches with expiry.
package cache

import (
	"context"
	"log/slog"
	"time"

	"salvadanaio/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop their expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps expired entries from registered caches.
type Janitor struct {
	caches   []Cleaner
	interval time.Duration
}

func NewJanitor(interval time.Duration, caches ...Cleaner) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{caches: caches, interval: interval}
}

// Sweep cleans every cache once and returns how many entries were removed.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				slog.DebugContext(ctx, "Expired cache entries removed",
					log.FieldComponent, log.ComponentCache,
					"removed", n)
			}
		}
	}
}
