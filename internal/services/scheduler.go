package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"salvadanaio/internal/log"
)

// SchedulerConfig holds configuration for the generation scheduler
type SchedulerConfig struct {
	// Interval is how often GenerateUpcoming runs (default: 1h)
	Interval time.Duration

	// RunOnStart runs a generation pass immediately on start (default: true)
	RunOnStart bool
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// Generator is the work a Scheduler runs on each tick.
type Generator interface {
	GenerateUpcoming(ctx context.Context, now time.Time) (int, error)
}

// Scheduler runs a Generator on a fixed interval.
type Scheduler struct {
	job    Generator
	config SchedulerConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(job Generator, config SchedulerConfig) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultSchedulerConfig().Interval
	}
	return &Scheduler{
		job:    job,
		config: config,
		now:    time.Now,
	}
}

// Run blocks, generating on every tick, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Start begins the generation loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Generation scheduler started",
		log.FieldComponent, log.ComponentGeneration,
		"interval", s.config.Interval)
	return nil
}

// Stop signals the loop and waits for the pass in flight to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Generation scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Generation scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context) {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()
	defer close(doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.job.GenerateUpcoming(ctx, s.now()); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Generation pass failed",
			log.FieldComponent, log.ComponentGeneration,
			log.FieldError, err)
	}
}
