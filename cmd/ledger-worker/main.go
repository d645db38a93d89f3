package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"salvadanaio/internal/backend"
	"salvadanaio/internal/cache"
	"salvadanaio/internal/cli"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
	"salvadanaio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != string(backend.SQLiteBackend) {
		logger.Warn("The worker shares no state with the server unless both use the sqlite backend",
			"backend", cfg.DataBackend)
	}

	// Generation runs without a broker, but a configured one must be reachable.
	var opts []backend.FactoryOption
	if cfg.AMQPURL != "" {
		opts = append(opts, backend.RequireQueue())
	}
	b := cli.OpenBackend(logger, cfg, opts...)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	}()

	gen := services.NewEntryGenerator()
	sync := services.NewEntrySynchronizer(b.Store, gen)

	scheduler := services.NewScheduler(services.NewGenerationJob(b.Store, gen, sync), services.SchedulerConfig{
		Interval:   cfg.GenerationInterval,
		RunOnStart: true,
	})
	repairs := worker.NewRepairWorker(sync, cfg.RepairDedupeTTL)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		return cache.NewJanitor(time.Minute, repairs.Recent()).Run(gctx)
	})
	if b.Queue != nil {
		g.Go(func() error {
			err := b.Queue.ConsumeSyncRepair(gctx, repairs.HandleRepairMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping repair consumption - no AMQP client available")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("ledger-worker stopped")
}
