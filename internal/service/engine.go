package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/observability/metrics"
	"github.com/jobtrawl/jobtrawl/internal/observability/statsd"
)

// DefaultRetryLimit caps application attempts per record when no limit is
// configured.
const DefaultRetryLimit = 3

// interruptedApplyMessage is recorded on records reconciled out of the
// applying state after a crash. The attempt still counts: the driver may
// have fired before the process died, and double-applying is worse than
// under-counting.
const interruptedApplyMessage = "apply interrupted: no completion recorded"

// IngestOutcome describes what Ingest decided for one discovered posting.
type IngestOutcome string

const (
	// OutcomeQueued means a new record was created and queued.
	OutcomeQueued IngestOutcome = "queued"
	// OutcomeRequeued means a failed record below the retry limit was
	// queued for another attempt.
	OutcomeRequeued IngestOutcome = "requeued"
	// OutcomeSkipped means the record was persisted but filtered out.
	OutcomeSkipped IngestOutcome = "skipped"
	// OutcomeSeen means a known record only had its freshness refreshed.
	OutcomeSeen IngestOutcome = "seen"
	// OutcomeExhausted means a failed record sits at the retry limit and
	// stays failed for manual review.
	OutcomeExhausted IngestOutcome = "exhausted"
)

// DispatchResult reports how one application attempt settled.
type DispatchResult struct {
	// State is the record's lifecycle state after the attempt.
	State model.LifecycleState

	// ApplyErr is the driver's error, nil when the application went
	// through. Engine-level failures are returned separately.
	ApplyErr error
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Store      core.RecordStore       // Required: durable record store
	Driver     core.ApplicationDriver // Required: submits applications
	Profile    *model.PersonalProfile // Required: applicant profile sent with applications
	Platform   string                 // Required: platform tag scoping queries and metrics
	RetryLimit int                    // Optional: attempts before a record stays failed (default 3)
	Clock      core.Clock             // Optional: time source
	Logger     *slog.Logger           // Optional: structured logger
	Metrics    statsd.Sink            // Optional: metrics sink
}

// Engine is the dedup and state engine. It owns every record state change:
// ingesting discovered postings, reconciling interrupted applications, and
// dispatching queued records through the application driver.
type Engine struct {
	store      core.RecordStore
	driver     core.ApplicationDriver
	profile    *model.PersonalProfile
	platform   string
	retryLimit int
	clock      core.Clock
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	if opts.Driver == nil {
		return nil, errors.New("ApplicationDriver is required")
	}
	if opts.Profile == nil {
		return nil, errors.New("PersonalProfile is required")
	}
	if opts.Platform == "" {
		return nil, errors.New("Platform is required")
	}

	retryLimit := opts.RetryLimit
	if retryLimit <= 0 {
		retryLimit = DefaultRetryLimit
	}

	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "engine", "platform", opts.Platform)
		logger.Debug("Engine initialized",
			"retry_limit", retryLimit,
		)
	}

	return &Engine{
		store:      opts.Store,
		driver:     opts.Driver,
		profile:    opts.Profile,
		platform:   opts.Platform,
		retryLimit: retryLimit,
		clock:      clock,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// MustNewEngine creates an Engine and panics on invalid options.
func MustNewEngine(opts EngineOptions) *Engine {
	engine, err := NewEngine(opts)
	if err != nil {
		panic(err)
	}
	return engine
}

// RetryLimit returns the configured attempt cap.
func (e *Engine) RetryLimit() int {
	return e.retryLimit
}

// Ingest runs one discovered posting through the dedup rules. New postings
// are persisted as discovered first and only then evaluated, so a crash
// between the two writes leaves a record the next run can finish. Known
// postings get their last-seen timestamp refreshed; failed ones below the
// retry limit are queued again.
//
// A validation error means the posting was dropped and never persisted.
func (e *Engine) Ingest(ctx context.Context, rec *model.JobRecord, flt *Filter) (IngestOutcome, error) {
	if rec == nil {
		return "", apperr.Validation("nil record")
	}
	if err := validateIdentity(rec); err != nil {
		return "", err
	}
	if rec.ID == "" {
		rec.ID = model.RecordID(rec.Platform, rec.PostingID)
	}

	now := e.clock.Now()
	existing, err := e.store.Get(ctx, rec.ID)
	switch {
	case apperr.IsNotFound(err):
		return e.ingestNew(ctx, rec, flt, now)
	case err != nil:
		return "", fmt.Errorf("look up record %s: %w", rec.ID, err)
	}
	return e.ingestKnown(ctx, existing, rec, flt, now)
}

func validateIdentity(rec *model.JobRecord) error {
	switch {
	case rec.Platform == "":
		return apperr.ValidationField("platform", "is required")
	case rec.PostingID == "":
		return apperr.ValidationField("posting_id", "is required")
	case rec.Title == "":
		return apperr.ValidationField("title", "is required")
	case rec.Company == "":
		return apperr.ValidationField("company", "is required")
	}
	return nil
}

func (e *Engine) ingestNew(ctx context.Context, rec *model.JobRecord, flt *Filter, now time.Time) (IngestOutcome, error) {
	rec.State = model.StateDiscovered
	if rec.DiscoveredAt.IsZero() {
		rec.DiscoveredAt = now
	}
	rec.LastSeenAt = now

	if err := e.store.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("persist discovered record %s: %w", rec.ID, err)
	}
	e.emitTransition(model.StateDiscovered, metrics.ResultSuccess, nil)

	return e.evaluateDiscovered(ctx, rec, flt, now)
}

// evaluateDiscovered moves a discovered record to queued or skipped based on
// the filter's decision.
func (e *Engine) evaluateDiscovered(ctx context.Context, rec *model.JobRecord, flt *Filter, now time.Time) (IngestOutcome, error) {
	decision := flt.Evaluate(rec)
	if decision.Queue {
		if err := rec.TransitionTo(model.StateQueued, now); err != nil {
			return "", apperr.Wrapf(err, apperr.CodeInternal, "queue record %s", rec.ID)
		}
		if err := e.store.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("persist queued record %s: %w", rec.ID, err)
		}
		e.emitTransition(model.StateQueued, metrics.ResultSuccess, nil)
		if e.logger != nil {
			e.logger.Debug("record queued",
				"record_id", rec.ID,
				"title", rec.Title,
				"company", rec.Company,
			)
		}
		return OutcomeQueued, nil
	}

	if err := rec.MarkSkipped(now, decision.Reason); err != nil {
		return "", apperr.Wrapf(err, apperr.CodeInternal, "skip record %s", rec.ID)
	}
	if err := e.store.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("persist skipped record %s: %w", rec.ID, err)
	}
	e.emitTransition(model.StateSkipped, metrics.ResultSuccess, nil)
	if e.logger != nil {
		e.logger.Debug("record skipped",
			"record_id", rec.ID,
			"reason", decision.Reason,
		)
	}
	return OutcomeSkipped, nil
}

func (e *Engine) ingestKnown(ctx context.Context, rec, sighting *model.JobRecord, flt *Filter, now time.Time) (IngestOutcome, error) {
	rec.Seen(now)
	rec.RefreshObservation(sighting)

	switch rec.State {
	case model.StateApplied, model.StateSkipped:
		if err := e.store.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("refresh record %s: %w", rec.ID, err)
		}
		return OutcomeSeen, nil

	case model.StateFailed:
		if !rec.RetryEligible(e.retryLimit) {
			if err := e.store.Upsert(ctx, rec); err != nil {
				return "", fmt.Errorf("refresh record %s: %w", rec.ID, err)
			}
			if e.logger != nil {
				e.logger.Debug("record at retry limit, leaving failed",
					"record_id", rec.ID,
					"attempts", rec.Attempts,
				)
			}
			return OutcomeExhausted, nil
		}
		if err := rec.TransitionTo(model.StateQueued, now); err != nil {
			return "", apperr.Wrapf(err, apperr.CodeInternal, "requeue record %s", rec.ID)
		}
		if err := e.store.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("persist requeued record %s: %w", rec.ID, err)
		}
		e.emitTransition(model.StateQueued, metrics.ResultSuccess, nil)
		if e.logger != nil {
			e.logger.Debug("failed record queued for retry",
				"record_id", rec.ID,
				"attempts", rec.Attempts,
			)
		}
		return OutcomeRequeued, nil

	case model.StateDiscovered:
		// A record parked in discovered means an earlier run stopped
		// between persisting and evaluating it. Finish the job now.
		return e.evaluateDiscovered(ctx, rec, flt, now)

	default:
		// queued or applying: nothing to decide, just refresh.
		if err := e.store.Upsert(ctx, rec); err != nil {
			return "", fmt.Errorf("refresh record %s: %w", rec.ID, err)
		}
		return OutcomeSeen, nil
	}
}

// Reconcile fails every record stuck in applying. A record in applying at
// run start means a previous process died mid-apply; since the driver may
// have fired before the crash, the interrupted attempt is counted exactly
// once.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	stuck, err := e.store.Query(ctx, model.RecordQuery{
		States:   []model.LifecycleState{model.StateApplying},
		Platform: e.platform,
	})
	if err != nil {
		return 0, fmt.Errorf("list applying records: %w", err)
	}

	count := 0
	now := e.clock.Now()
	for _, rec := range stuck {
		if err := rec.MarkFailed(now, interruptedApplyMessage); err != nil {
			return count, apperr.Wrapf(err, apperr.CodeInternal, "reconcile record %s", rec.ID)
		}
		if err := e.store.Upsert(ctx, rec); err != nil {
			return count, fmt.Errorf("persist reconciled record %s: %w", rec.ID, err)
		}
		count++
		e.emitTransition(model.StateFailed, metrics.ResultError, apperr.ApplyRecoverable(interruptedApplyMessage))
		if e.logger != nil {
			e.logger.Warn("interrupted application marked failed",
				"record_id", rec.ID,
				"attempts", rec.Attempts,
			)
		}
	}
	return count, nil
}

// Dispatch submits one queued record through the application driver. The
// applying state is persisted before the driver fires so a crash mid-apply
// leaves evidence for Reconcile. Non-queued records are a no-op.
//
// The returned error covers engine-level failures only; driver errors are
// absorbed into the record state and reported via DispatchResult.ApplyErr.
func (e *Engine) Dispatch(ctx context.Context, rec *model.JobRecord) (DispatchResult, error) {
	if rec == nil {
		return DispatchResult{}, apperr.Validation("nil record")
	}
	if rec.State != model.StateQueued {
		if e.logger != nil {
			e.logger.Debug("skipping dispatch for non-queued record",
				"record_id", rec.ID,
				"state", rec.State,
			)
		}
		return DispatchResult{State: rec.State}, nil
	}

	now := e.clock.Now()
	if err := rec.TransitionTo(model.StateApplying, now); err != nil {
		return DispatchResult{State: rec.State}, apperr.Wrapf(err, apperr.CodeInternal, "start apply for record %s", rec.ID)
	}
	if err := e.store.Upsert(ctx, rec); err != nil {
		return DispatchResult{State: rec.State}, fmt.Errorf("persist applying record %s: %w", rec.ID, err)
	}

	start := time.Now()
	result, applyErr := e.driver.Apply(ctx, rec, e.profile)
	elapsed := time.Since(start)

	return e.settle(ctx, rec, result, applyErr, elapsed)
}

// settle records the outcome of a driver call: applied on success, skipped
// on permanent rejection, failed otherwise.
func (e *Engine) settle(
	ctx context.Context,
	rec *model.JobRecord,
	result *model.ApplyResult,
	applyErr error,
	elapsed time.Duration,
) (DispatchResult, error) {
	now := e.clock.Now()

	switch {
	case applyErr == nil:
		version := ""
		if result != nil {
			version = result.ResumeVersion
		}
		if version == "" {
			version = e.profile.ResumeVersion()
		}
		if err := rec.MarkApplied(now, version); err != nil {
			return DispatchResult{State: rec.State}, apperr.Wrapf(err, apperr.CodeInternal, "mark record %s applied", rec.ID)
		}
		e.emit(model.StateApplied, metrics.ResultSuccess, nil, elapsed)
		if e.logger != nil {
			e.logger.Info("application submitted",
				"record_id", rec.ID,
				"title", rec.Title,
				"company", rec.Company,
				"resume_version", version,
			)
		}

	case apperr.IsApplyPermanent(applyErr):
		if err := rec.MarkSkipped(now, applyErr.Error()); err != nil {
			return DispatchResult{State: rec.State, ApplyErr: applyErr}, apperr.Wrapf(err, apperr.CodeInternal, "mark record %s skipped", rec.ID)
		}
		e.emit(model.StateSkipped, metrics.ResultError, applyErr, elapsed)
		if e.logger != nil {
			e.logger.Warn("posting not applicable, skipping",
				"record_id", rec.ID,
				"error", applyErr,
			)
		}

	default:
		if err := rec.MarkFailed(now, applyErr.Error()); err != nil {
			return DispatchResult{State: rec.State, ApplyErr: applyErr}, apperr.Wrapf(err, apperr.CodeInternal, "mark record %s failed", rec.ID)
		}
		e.emit(model.StateFailed, metrics.ResultError, applyErr, elapsed)
		if e.logger != nil {
			e.logger.Warn("application attempt failed",
				"record_id", rec.ID,
				"attempts", rec.Attempts,
				"error", applyErr,
			)
		}
	}

	// A failed upsert here leaves the store showing applying; the next
	// run's Reconcile turns that into exactly one counted attempt, so the
	// outcome is never double-counted.
	if err := e.store.Upsert(ctx, rec); err != nil {
		return DispatchResult{State: rec.State, ApplyErr: applyErr}, fmt.Errorf("persist %s record %s: %w", rec.State, rec.ID, err)
	}
	return DispatchResult{State: rec.State, ApplyErr: applyErr}, nil
}

func (e *Engine) emitTransition(state model.LifecycleState, result string, err error) {
	e.emit(state, result, err, 0)
}

func (e *Engine) emit(state model.LifecycleState, result string, err error, elapsed time.Duration) {
	metrics.EmitRecordLifecycle(e.metrics, metrics.RecordMetric{
		Platform:   e.platform,
		Transition: string(state),
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	})
}
