package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/seismic-sentinel/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Runner executes one complete run.
type Runner interface {
	RunOnce(ctx context.Context) (Result, error)
}

// Scheduler repeats runs on a fixed interval until its context is cancelled.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewScheduler creates a Scheduler. A nil clock uses the real clock.
func NewScheduler(r Runner, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:   r,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run performs a run immediately and then once per interval. A failed run is
// logged and the next tick proceeds. Run returns nil when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval)
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}
