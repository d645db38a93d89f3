package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"salvadanaio/internal/cache"
	"salvadanaio/internal/cli"
	apphttp "salvadanaio/internal/http"
	"salvadanaio/internal/log"
	"salvadanaio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	mode, err := services.ParseSyncMode(cfg.SyncMode)
	if err != nil {
		logger.Error("Invalid ledger sync mode", log.FieldError, err.Error())
		os.Exit(1)
	}

	b := cli.OpenBackend(logger, cfg)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err.Error())
		}
	}()

	gen := services.NewEntryGenerator()
	sync := services.NewEntrySynchronizer(b.Store, gen)
	sourceOpts := []services.SourceServiceOption{
		services.WithSyncMode(mode),
		services.WithSourceLogger(logger),
	}
	if b.Queue != nil {
		sourceOpts = append(sourceOpts, services.WithRepairPublisher(b.Queue))
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Sources:       services.NewSourceService(b.Store, gen, sync, sourceOpts...),
		Accounts:      services.NewAccountService(b.Store),
		Goals:         services.NewGoalService(b.Store),
		Contributions: services.NewContributionTransactor(b.Store),
		Ready:         b.Store,
	}, apphttp.WithLogger(logger), apphttp.WithRateLimit(cfg.RateLimit))
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting salvadanaio server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"sync_mode", string(mode),
			"repair_queue", b.Queue != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return cache.NewJanitor(5*time.Minute, srv.Limiter()).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
