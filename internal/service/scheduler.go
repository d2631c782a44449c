// Package service provides the business logic for the jobtrawl application
// pipeline: the dedup engine, run orchestration, scheduling, and retention.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// RunExecutor triggers one orchestrated run. Implemented by RunService.
type RunExecutor interface {
	Execute(ctx context.Context) (*model.RunSummary, error)
}

// SchedulerServiceOptions groups dependencies for SchedulerService.
type SchedulerServiceOptions struct {
	Runner RunExecutor            // Required: executes a run per tick
	Config config.SchedulerConfig // Required: cron spec and timezone
	Logger *slog.Logger           // Optional: structured logger
}

// SchedulerService fires runs on a cron schedule. Ticks that land while a
// run is still going are skipped rather than stacked; the same goes for
// ticks that lose the run lock to another instance.
type SchedulerService struct {
	runner   RunExecutor
	spec     string
	location *time.Location
	logger   *slog.Logger
}

// NewSchedulerService constructs a new SchedulerService. The cron spec and
// timezone are validated here so a bad schedule fails startup, not the
// first tick.
func NewSchedulerService(opts SchedulerServiceOptions) (*SchedulerService, error) {
	if opts.Runner == nil {
		return nil, errors.New("RunExecutor is required")
	}
	if _, err := cron.ParseStandard(opts.Config.CronSpec); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", opts.Config.CronSpec, err)
	}
	location, err := time.LoadLocation(opts.Config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", opts.Config.Timezone, err)
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "scheduler_service")
		logger.Debug("SchedulerService initialized",
			"cron_spec", opts.Config.CronSpec,
			"timezone", opts.Config.Timezone,
		)
	}

	return &SchedulerService{
		runner:   opts.Runner,
		spec:     opts.Config.CronSpec,
		location: location,
		logger:   logger,
	}, nil
}

// MustNewSchedulerService constructs a new SchedulerService and panics on error.
func MustNewSchedulerService(opts SchedulerServiceOptions) *SchedulerService {
	svc, err := NewSchedulerService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Run starts the cron loop and blocks until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *SchedulerService) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule runs: %w", err)
	}

	c.Start()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "scheduler started",
			"cron_spec", s.spec,
			"timezone", s.location.String(),
		)
	}

	<-ctx.Done()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "scheduler stopping", "reason", ctx.Err())
	}

	// Wait for an in-flight run to wind down before returning.
	<-c.Stop().Done()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (s *SchedulerService) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := s.runner.Execute(ctx)
	switch {
	case errors.Is(err, core.ErrLockHeld):
		if s.logger != nil {
			s.logger.InfoContext(ctx, "skipping scheduled run: lock held elsewhere")
		}
	case isContextCancellation(err):
		if s.logger != nil {
			s.logger.DebugContext(ctx, "scheduled run cancelled", "error", err)
		}
	case err != nil:
		attrs := []any{"error", err}
		if summary != nil {
			attrs = append(attrs, "run_id", summary.RunID)
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "scheduled run failed", attrs...)
		}
	default:
		if s.logger != nil {
			s.logger.InfoContext(ctx, "scheduled run complete",
				"run_id", summary.RunID,
				"discovered", summary.Discovered,
				"applied", summary.Applied,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
			)
		}
	}
}
