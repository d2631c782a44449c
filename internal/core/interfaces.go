package core

import (
	"context"
	"errors"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// This file contains the ports between the engine and its collaborators.
// Service implementations should depend on these interfaces, not concrete
// implementations.

// ErrEndOfResults is returned by RecordIterator.Next when a search stream is
// exhausted. End of stream is always explicit, never silent truncation.
var ErrEndOfResults = errors.New("end of search results")

// ErrLockHeld is returned when the per-account run lock is already held by
// another process.
var ErrLockHeld = errors.New("run lock already held")

// RecordStore defines the interface for durable job record persistence.
// Implementations must make Upsert durable before returning.
type RecordStore interface {
	// Load reads the full snapshot. A store that cannot be parsed returns a
	// store-corruption error rather than silently starting fresh.
	Load(ctx context.Context) (*model.Snapshot, error)

	// Get retrieves one record by its canonical ID.
	Get(ctx context.Context, id string) (*model.JobRecord, error)

	// Upsert inserts or replaces a record by ID. Idempotent.
	Upsert(ctx context.Context, rec *model.JobRecord) error

	// Query lists records matching the filters, ordered by DiscoveredAt then ID.
	Query(ctx context.Context, q model.RecordQuery) ([]*model.JobRecord, error)

	// SnapshotAndBackup copies the current good state aside before a batch of
	// writes. A crash mid-write must never lose the pre-write snapshot.
	SnapshotAndBackup(ctx context.Context) error

	// Flush commits buffered writes and performs retention housekeeping.
	Flush(ctx context.Context) error

	Close() error
}

// RecordIterator is a pull-based stream of discovered postings.
type RecordIterator interface {
	// Next returns the next discovered posting, ErrEndOfResults at the end of
	// the stream, or a search error. Identity fields (platform, posting ID,
	// title, company) are populated before a record is yielded.
	Next(ctx context.Context) (*model.JobRecord, error)

	Close() error
}

// SearchProducer discovers postings on an external platform.
type SearchProducer interface {
	// Platform returns the source tag stamped on produced records.
	Platform() string

	// Login establishes an authenticated session. Called once per run before
	// any search; a failure aborts the run.
	Login(ctx context.Context) error

	// Search starts a posting stream for the given criteria.
	Search(ctx context.Context, criteria model.SearchCriteria) (RecordIterator, error)

	// Close releases the session. Called on every run exit path.
	Close(ctx context.Context) error
}

// ApplicationDriver submits one application. Implementations classify
// failures as recoverable or permanent through the apperr taxonomy and are
// called at most once per applying transition.
type ApplicationDriver interface {
	Apply(ctx context.Context, rec *model.JobRecord, profile *model.PersonalProfile) (*model.ApplyResult, error)
}

// RunLocker provides the single-writer rule for one platform/account pair.
type RunLocker interface {
	// Acquire takes the lock or returns ErrLockHeld.
	Acquire(ctx context.Context) error

	// Release frees the lock. Safe to call when the lock is not held.
	Release(ctx context.Context) error
}

// ReaperStore defines the retention operations the reaper service needs.
type ReaperStore interface {
	// FailStaleApplying marks applying records older than maxAge as failed,
	// counting one attempt each. Returns the number of records failed.
	FailStaleApplying(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldRecords removes terminal records older than maxAge. Processes
	// up to batchSize records per call. Returns the number deleted.
	DeleteOldRecords(ctx context.Context, params DeleteOldRecordsParams) (int64, error)
}

// DeleteOldRecordsParams groups parameters for DeleteOldRecords to keep param count ≤3.
type DeleteOldRecordsParams struct {
	State     model.LifecycleState
	MaxAge    time.Duration
	BatchSize int
}
