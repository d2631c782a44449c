package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/observability/metrics"
	"github.com/jobtrawl/jobtrawl/internal/observability/notify"
	"github.com/jobtrawl/jobtrawl/internal/observability/statsd"
	"github.com/jobtrawl/jobtrawl/internal/service/failurenotifier"
)

// DefaultBatchSize caps applications per run when no batch size is
// configured.
const DefaultBatchSize = 10

// RunOptions contains configuration for creating a RunService. Parameter
// count would exceed 3 otherwise.
type RunOptions struct {
	Engine          *Engine                  // Required: dedup and state engine
	Producer        core.SearchProducer      // Required: posting source for one platform
	Store           core.RecordStore         // Required: durable record store
	Locker          core.RunLocker           // Required: single-writer run lock
	Criteria        []model.SearchCriteria   // Required: at least one search
	BatchSize       int                      // Optional: max applications per run (default 10)
	PaceMin         time.Duration            // Optional: minimum delay between records
	PaceMax         time.Duration            // Optional: maximum delay between records
	DryRun          bool                     // Optional: discover and queue, never submit
	Clock           core.Clock               // Optional: time source
	Logger          *slog.Logger             // Optional: structured logger
	Metrics         statsd.Sink              // Optional: metrics sink
	FailureNotifier *failurenotifier.Service // Optional: failure notification fan-out
}

// RunService orchestrates one full run: lock, login, reconcile, search,
// apply, flush. Per-record failures never abort a run; lock contention,
// login failures, and store corruption do.
type RunService struct {
	engine    *Engine
	producer  core.SearchProducer
	store     core.RecordStore
	locker    core.RunLocker
	criteria  []model.SearchCriteria
	batchSize int
	paceMin   time.Duration
	paceMax   time.Duration
	dryRun    bool
	clock     core.Clock
	logger    *slog.Logger
	metrics   statsd.Sink
	notifier  *failurenotifier.Service
}

// NewRunService creates a RunService with the given options.
func NewRunService(opts RunOptions) (*RunService, error) {
	if opts.Engine == nil {
		return nil, errors.New("Engine is required")
	}
	if opts.Producer == nil {
		return nil, errors.New("SearchProducer is required")
	}
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	if opts.Locker == nil {
		return nil, errors.New("RunLocker is required")
	}
	if len(opts.Criteria) == 0 {
		return nil, errors.New("at least one search criteria is required")
	}
	for i := range opts.Criteria {
		if err := opts.Criteria[i].Validate(); err != nil {
			return nil, fmt.Errorf("criteria %d: %w", i, err)
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	paceMin := opts.PaceMin
	if paceMin < 0 {
		paceMin = 0
	}
	paceMax := opts.PaceMax
	if paceMax < paceMin {
		paceMax = paceMin
	}

	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "run_service", "platform", opts.Producer.Platform())
		logger.Debug("RunService initialized",
			"criteria", len(opts.Criteria),
			"batch_size", batchSize,
			"dry_run", opts.DryRun,
		)
	}

	return &RunService{
		engine:    opts.Engine,
		producer:  opts.Producer,
		store:     opts.Store,
		locker:    opts.Locker,
		criteria:  opts.Criteria,
		batchSize: batchSize,
		paceMin:   paceMin,
		paceMax:   paceMax,
		dryRun:    opts.DryRun,
		clock:     clock,
		logger:    logger,
		metrics:   opts.Metrics,
		notifier:  opts.FailureNotifier,
	}, nil
}

// MustNewRunService creates a RunService and panics on invalid options.
func MustNewRunService(opts RunOptions) *RunService {
	svc, err := NewRunService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// Execute performs one run end to end and returns its summary. When the run
// lock is held elsewhere the returned error wraps core.ErrLockHeld and no
// summary is produced.
func (s *RunService) Execute(ctx context.Context) (*model.RunSummary, error) {
	runID := uuid.NewString()
	logger := s.logger
	if logger != nil {
		logger = logger.With("run_id", runID)
	}

	summary := &model.RunSummary{
		RunID:     runID,
		Platform:  s.producer.Platform(),
		StartedAt: s.clock.Now(),
	}

	if err := s.locker.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		// The lock must come off even when the run was cancelled.
		if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil && logger != nil {
			logger.Warn("release run lock", "error", err)
		}
	}()

	if logger != nil {
		logger.Info("run started", "dry_run", s.dryRun)
	}

	if err := s.producer.Login(ctx); err != nil {
		return s.abort(ctx, logger, summary, "session", fmt.Errorf("login to %s: %w", summary.Platform, err))
	}
	defer func() {
		if err := s.producer.Close(context.WithoutCancel(ctx)); err != nil && logger != nil {
			logger.Warn("close platform session", "error", err)
		}
	}()

	// Back up the store before any writes so a corrupting run can be
	// rolled back by hand.
	if err := s.store.SnapshotAndBackup(ctx); err != nil {
		return s.abort(ctx, logger, summary, "store", fmt.Errorf("snapshot store: %w", err))
	}

	reconciled, err := s.engine.Reconcile(ctx)
	if err != nil {
		return s.abort(ctx, logger, summary, "reconcile", fmt.Errorf("reconcile interrupted applications: %w", err))
	}
	summary.Reconciled = reconciled

	index, err := BuildAppliedIndex(ctx, s.store)
	if err != nil {
		if isFatalRunError(err) {
			return s.abort(ctx, logger, summary, "store", err)
		}
		// Suppression is best effort; a run without the index only
		// risks queueing a posting that would be caught at review.
		if logger != nil {
			logger.Warn("applied-elsewhere index unavailable", "error", err)
		}
		index = nil
	}

	if err := s.searchPhase(ctx, logger, summary, index); err != nil {
		if isFatalRunError(err) {
			return s.abort(ctx, logger, summary, "search", err)
		}
		summary.SearchError = err.Error()
		s.notifyRunFailure(ctx, summary, "search", notify.SeverityWarning, err)
		if logger != nil {
			logger.Warn("search completed with errors", "error", err)
		}
	}

	if s.dryRun {
		if logger != nil {
			logger.Info("dry run: leaving queued records for a live run")
		}
	} else if err := s.applyPhase(ctx, logger, summary); err != nil {
		return s.abort(ctx, logger, summary, "apply", err)
	}

	if err := s.store.Flush(ctx); err != nil {
		return s.abort(ctx, logger, summary, "store", fmt.Errorf("flush store: %w", err))
	}

	s.finish(summary, nil)
	if logger != nil {
		logger.Info("run complete",
			"duration", summary.Duration,
			"discovered", summary.Discovered,
			"new", summary.New,
			"requeued", summary.Requeued,
			"applied", summary.Applied,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"reconciled", summary.Reconciled,
		)
	}
	return summary, nil
}

// abort finalizes a run that cannot continue. The failure is notified,
// stamped into the metrics, and returned along with the partial summary.
func (s *RunService) abort(
	ctx context.Context,
	logger *slog.Logger,
	summary *model.RunSummary,
	stage string,
	err error,
) (*model.RunSummary, error) {
	s.notifyRunFailure(ctx, summary, stage, notify.SeverityCritical, err)
	s.finish(summary, err)
	if logger != nil {
		logger.Error("run aborted", "stage", stage, "error", err)
	}
	return summary, err
}

// searchPhase runs every configured search and ingests the results. A
// failing search is recorded and the remaining searches still run; only
// store corruption or cancellation aborts the phase.
func (s *RunService) searchPhase(
	ctx context.Context,
	logger *slog.Logger,
	summary *model.RunSummary,
	index AppliedIndex,
) error {
	var searchErr error
	for _, criteria := range s.criteria {
		if err := ctx.Err(); err != nil {
			return err
		}

		flt, err := NewFilter(FilterOptions{Criteria: criteria, Applied: index})
		if err != nil {
			searchErr = firstError(searchErr, err)
			if logger != nil {
				logger.Error("skipping search with invalid criteria",
					"keywords", criteria.Keywords,
					"error", err,
				)
			}
			continue
		}

		if err := s.ingestStream(ctx, logger, summary, criteria, flt); err != nil {
			if isFatalRunError(err) {
				return err
			}
			searchErr = firstError(searchErr, err)
			if logger != nil {
				logger.Warn("search failed, moving to next",
					"keywords", criteria.Keywords,
					"error", err,
				)
			}
		}
	}
	return searchErr
}

func (s *RunService) ingestStream(
	ctx context.Context,
	logger *slog.Logger,
	summary *model.RunSummary,
	criteria model.SearchCriteria,
	flt *Filter,
) error {
	iter, err := s.producer.Search(ctx, criteria)
	if err != nil {
		return fmt.Errorf("start search: %w", err)
	}
	defer func() {
		if err := iter.Close(); err != nil && logger != nil {
			logger.Warn("close search results", "error", err)
		}
	}()

	for {
		rec, err := iter.Next(ctx)
		if errors.Is(err, core.ErrEndOfResults) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read search results: %w", err)
		}

		summary.Discovered++
		outcome, err := s.engine.Ingest(ctx, rec, flt)
		switch {
		case apperr.IsValidation(err):
			if logger != nil {
				logger.Warn("dropping invalid posting", "error", err)
			}
		case isFatalRunError(err):
			return err
		case err != nil:
			if logger != nil {
				logger.Error("ingest failed", "record_id", rec.ID, "error", err)
			}
		default:
			countOutcome(summary, outcome)
		}

		if err := s.pace(ctx); err != nil {
			return err
		}
	}
}

func countOutcome(summary *model.RunSummary, outcome IngestOutcome) {
	switch outcome {
	case OutcomeQueued:
		summary.New++
	case OutcomeRequeued:
		summary.Requeued++
	case OutcomeSkipped:
		summary.Skipped++
	}
}

// applyPhase dispatches up to batchSize queued records, oldest first.
// Per-record failures are absorbed into record state; only store corruption
// or cancellation aborts the phase.
func (s *RunService) applyPhase(ctx context.Context, logger *slog.Logger, summary *model.RunSummary) error {
	queued, err := s.store.Query(ctx, model.RecordQuery{
		States:   []model.LifecycleState{model.StateQueued},
		Platform: summary.Platform,
		Limit:    s.batchSize,
	})
	if err != nil {
		return fmt.Errorf("list queued records: %w", err)
	}
	if len(queued) == 0 {
		if logger != nil {
			logger.Info("no queued records to apply to")
		}
		return nil
	}

	for i, rec := range queued {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if err := s.pace(ctx); err != nil {
				return err
			}
		}

		res, err := s.engine.Dispatch(ctx, rec)
		if err != nil {
			if isFatalRunError(err) {
				return err
			}
			if logger != nil {
				logger.Error("dispatch failed", "record_id", rec.ID, "error", err)
			}
			continue
		}

		switch res.State {
		case model.StateApplied:
			summary.Applied++
		case model.StateFailed:
			summary.Failed++
			// Routine retries stay quiet; the record going out of
			// retries is worth a notification.
			if rec.Attempts >= s.engine.RetryLimit() {
				s.notifyRecordFailure(ctx, summary, rec, res.ApplyErr)
			}
		case model.StateSkipped:
			summary.Skipped++
			s.notifyRecordFailure(ctx, summary, rec, res.ApplyErr)
		}
	}
	return nil
}

// finish stamps the summary and emits run metrics.
func (s *RunService) finish(summary *model.RunSummary, runErr error) {
	summary.FinishedAt = s.clock.Now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	result := metrics.ResultSuccess
	switch {
	case runErr != nil:
		result = metrics.ResultError
	case summary.Discovered == 0 && summary.Applied == 0:
		result = metrics.ResultNoop
	}

	metrics.EmitRunOutcome(s.metrics, metrics.RunMetric{
		Platform: summary.Platform,
		Result:   result,
		Duration: summary.Duration,
		Err:      runErr,
		Records: map[string]int{
			"discovered": summary.Discovered,
			"new":        summary.New,
			"requeued":   summary.Requeued,
			"applied":    summary.Applied,
			"failed":     summary.Failed,
			"skipped":    summary.Skipped,
			"reconciled": summary.Reconciled,
		},
	})
}

func (s *RunService) notifyRunFailure(
	ctx context.Context,
	summary *model.RunSummary,
	stage string,
	severity string,
	err error,
) {
	if s.notifier == nil || !s.notifier.Enabled() || isContextCancellation(err) {
		return
	}
	s.notifier.NotifyFailure(context.WithoutCancel(ctx), notify.FailurePayload{
		RunID:      summary.RunID,
		Platform:   summary.Platform,
		Stage:      stage,
		DryRun:     s.dryRun,
		Error:      err.Error(),
		ErrorClass: apperr.Classify(err),
		Severity:   severity,
		OccurredAt: s.clock.Now(),
	})
}

func (s *RunService) notifyRecordFailure(
	ctx context.Context,
	summary *model.RunSummary,
	rec *model.JobRecord,
	applyErr error,
) {
	if s.notifier == nil || !s.notifier.Enabled() || applyErr == nil {
		return
	}
	s.notifier.NotifyFailure(context.WithoutCancel(ctx), notify.FailurePayload{
		RunID:      summary.RunID,
		Platform:   summary.Platform,
		Stage:      "apply",
		RecordID:   rec.ID,
		JobTitle:   rec.Title,
		Company:    rec.Company,
		PostingURL: rec.ApplyURL,
		Attempts:   rec.Attempts,
		DryRun:     s.dryRun,
		Error:      applyErr.Error(),
		ErrorClass: apperr.Classify(applyErr),
		Severity:   notify.SeverityWarning,
		OccurredAt: s.clock.Now(),
	})
}

// isFatalRunError reports whether an error should abort the whole run
// rather than the current record or search.
func isFatalRunError(err error) bool {
	return apperr.IsStoreCorrupt(err) || isContextCancellation(err)
}

// pace sleeps a jittered delay between records so traffic against the
// platform keeps a human rhythm. Returns early on cancellation.
func (s *RunService) pace(ctx context.Context) error {
	delay := jitteredDelay(s.paceMin, s.paceMax)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jitteredDelay draws a uniform delay from [min, max]. Falls back to min
// when randomness is unavailable.
func jitteredDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := uint64(max-min) + 1
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return min
	}
	n := binary.BigEndian.Uint64(buf[:]) % span
	return min + time.Duration(int64(n)) // #nosec G115 - bounded by span which fits in int64
}
