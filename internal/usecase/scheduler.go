package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

// Scheduler drives daily pipeline passes from a ticking driver.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	location *time.Location
	logger   *slog.Logger

	running atomic.Bool
	runs    atomic.Int64
}

// NewScheduler binds the pipeline to a driver; trigger times are converted to location.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, location *time.Location, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	return &Scheduler{driver: driver, pipeline: pipeline, location: location, logger: logging.OrDiscard(logger)}
}

// Start hands the pass to the driver. A trigger that fires while a pass is
// still running is dropped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.runOnce(ctx, trigger) })
}

func (s *Scheduler) runOnce(ctx context.Context, trigger time.Time) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, trigger dropped", "trigger", trigger)
		return
	}
	defer s.running.Store(false)

	day := trigger.In(s.location)
	summary, err := s.pipeline.ProcessDay(ctx, day)
	s.runs.Add(1)
	if err != nil {
		s.logger.Error("scheduled run failed", "run_id", summary.RunID, "day", day.Format("2006-01-02"), "error", err)
		return
	}
	s.logger.Info("scheduled run done", "run_id", summary.RunID, "published", summary.Published, "skipped", summary.Skipped)
}

// Runs is the number of passes that have completed.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Stop halts the driver, waiting for an in-flight pass as long as ctx allows.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
