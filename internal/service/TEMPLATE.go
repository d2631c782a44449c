// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExamplePort, etc.) that don't exist.
// Use this as a reference when creating new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// This file demonstrates the standard pattern for all services in the service
// layer. Use it as a reference when adding a new pipeline stage or background
// service.
//
// KEY PRINCIPLES:
// 1. All services use an Options struct for dependency injection
// 2. Services depend on port interfaces from internal/core, never on
//    concrete stores, producers, or drivers
// 3. Constructors validate required dependencies and return an error;
//    a MustNewXService wrapper panics for wiring code that cannot recover
// 4. Optional dependencies (logger, metrics, notifier) are checked for nil
//    before use
// 5. All methods accept context.Context as the first parameter
// 6. Errors are wrapped with context: fmt.Errorf("operation: %w", err).
//    Domain failures carry an apperr code so callers can classify them
// 7. Per-record failures are contained inside the loop that hit them;
//    session-level failures (lock, login, store corruption) abort the run
// 8. Time comes from an injected core.Clock so tests can freeze it
// 9. Services never import internal/data, internal/adapters, or cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/observability/statsd"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// ExampleServiceOptions groups dependencies for ExampleService.
//
// RULES:
// - Required dependencies are port interfaces from internal/core
// - Optional dependencies are clearly marked and may be nil
// - Tunables carry their default in the comment
// - Clock is always optional and defaults to core.SystemClock
type ExampleServiceOptions struct {
	Store     core.RecordStore // Required: durable record store
	Port      core.ExamplePort // Required: the port this service drives
	BatchSize int              // Optional: records per pass (default 10)
	Clock     core.Clock       // Optional: time source
	Logger    *slog.Logger     // Optional: structured logger
	Metrics   statsd.Sink      // Optional: metrics sink
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Port Interfaces
// ═══════════════════════════════════════════════════════════════════════════

// Ports live in internal/core next to the other store and producer
// interfaces, with a go:generate directive in internal/mocks/generate.go so
// a gomock mock exists before the first test is written:
//
//	// ExamplePort does one narrowly-scoped thing for the example service.
//	type ExamplePort interface {
//		Process(ctx context.Context, rec *model.JobRecord) error
//	}
//
// Accept interfaces, return structs: the service consumes core.ExamplePort
// but NewExampleService returns *ExampleService.

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Service Struct (private fields)
// ═══════════════════════════════════════════════════════════════════════════

// ExampleService runs one pass of example processing per Execute call.
//
// RESPONSIBILITIES:
// - Orchestrating ports into one unit of work
// - Containing per-record failures so one bad posting never kills a pass
// - Emitting metrics and structured logs for each outcome
//
// DOES NOT:
// - Talk to the file system, the database, or the network directly
// - Decide scheduling (the scheduler service owns cron semantics)
// - Hold state between passes beyond what the store persists
type ExampleService struct {
	store     core.RecordStore
	port      core.ExamplePort
	batchSize int
	clock     core.Clock
	logger    *slog.Logger
	metrics   statsd.Sink
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Constructor with Validation + Must Wrapper
// ═══════════════════════════════════════════════════════════════════════════

// NewExampleService creates an ExampleService with the given options.
func NewExampleService(opts ExampleServiceOptions) (*ExampleService, error) {
	if opts.Store == nil {
		return nil, errors.New("RecordStore is required")
	}
	if opts.Port == nil {
		return nil, errors.New("ExamplePort is required")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}

	return &ExampleService{
		store:     opts.Store,
		port:      opts.Port,
		batchSize: batchSize,
		clock:     clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewExampleService creates an ExampleService and panics on invalid
// options. For wiring code (bootstrap, tests) where a nil dependency is a
// programming error, not a runtime condition.
func MustNewExampleService(opts ExampleServiceOptions) *ExampleService {
	svc, err := NewExampleService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: Session Shape (acquire, work, teardown)
// ═══════════════════════════════════════════════════════════════════════════

// Execute runs one pass. Session-level failures return an error; per-record
// failures are recorded on the record and the pass continues.
func (s *ExampleService) Execute(ctx context.Context) error {
	// Teardown must run even when ctx is already canceled, so defers use a
	// detached context. Defers run LIFO: release the lock last.
	cleanupCtx := context.WithoutCancel(ctx)

	if err := s.acquire(ctx); err != nil {
		return fmt.Errorf("acquire example lease: %w", err)
	}
	defer s.release(cleanupCtx)

	if err := s.processBatch(ctx); err != nil {
		return err
	}

	// Flush once per pass, not once per record.
	if err := s.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 6: Batch Loop with Per-Record Containment
// ═══════════════════════════════════════════════════════════════════════════

func (s *ExampleService) processBatch(ctx context.Context) error {
	records, err := s.store.Query(ctx, model.RecordQuery{
		States: []model.LifecycleState{model.StateQueued},
		Limit:  s.batchSize,
	})
	if err != nil {
		return fmt.Errorf("query queued records: %w", err)
	}

	for _, rec := range records {
		// Context cancellation stops the loop; a record failure does not.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.processOne(ctx, rec); err != nil {
			s.logError(ctx, "record processing failed", err, "record_id", rec.ID)
			continue
		}
	}
	return nil
}

func (s *ExampleService) processOne(ctx context.Context, rec *model.JobRecord) error {
	err := s.port.Process(ctx, rec)
	switch {
	case err == nil:
		s.count("example.processed", 1)
		return s.store.Upsert(ctx, rec)
	case apperr.IsApplyPermanent(err):
		// Permanent failures skip the record so it is never retried.
		if markErr := rec.MarkSkipped(s.clock.Now(), err.Error()); markErr != nil {
			return markErr
		}
		return s.store.Upsert(ctx, rec)
	default:
		// Recoverable failures count an attempt and stay eligible for retry.
		if markErr := rec.MarkFailed(s.clock.Now(), err.Error()); markErr != nil {
			return markErr
		}
		return s.store.Upsert(ctx, rec)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 7: Optional Observability Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// Nil-checked helpers keep the happy path free of conditionals.

func (s *ExampleService) logError(ctx context.Context, msg string, err error, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.ErrorContext(ctx, msg, append([]any{"error", err}, args...)...)
}

func (s *ExampleService) count(name string, value int64) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count(name, value, nil)
}

// ═══════════════════════════════════════════════════════════════════════════
// NOTES FOR ADDING A NEW SERVICE
// ═══════════════════════════════════════════════════════════════════════════
//
// 1. Define any new port in internal/core/interfaces.go
// 2. Add a mockgen directive for it in internal/mocks/generate.go and check
//    in the generated mock
// 3. Implement the service here following the patterns above
// 4. Wire it in internal/bootstrap/services.go behind its config flag
// 5. Unit-test with the counting fakes; pin call order with a gomock
//    contract test (see contract_test.go)
// 6. Add config defaults to config/services.go and document them
