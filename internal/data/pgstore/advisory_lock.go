package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// advisoryLockRunMajor namespaces run locks within pg_locks so they cannot
// collide with other advisory lock users on the same database.
const advisoryLockRunMajor = int32(7401)

// AdvisoryLockOptions groups dependencies for AdvisoryLock.
type AdvisoryLockOptions struct {
	DB       *sql.DB // Required: open database handle
	Platform string  // Required: platform tag of the run
	Account  string  // Optional: account identifier of the run
	Logger   *slog.Logger
}

// AdvisoryLock implements the single-writer run lock with a PostgreSQL
// session advisory lock. Session locks belong to one connection, so the lock
// pins a connection from Acquire until Release. A crashed process drops its
// connection and the lock with it, which keeps restart reconciliation from
// ever being blocked by a dead holder.
type AdvisoryLock struct {
	db       *sql.DB
	minorKey int32
	logger   *slog.Logger

	mu   sync.Mutex
	conn *sql.Conn
}

// NewAdvisoryLock constructs a run lock keyed by platform and account.
func NewAdvisoryLock(opts AdvisoryLockOptions) (*AdvisoryLock, error) {
	if opts.DB == nil {
		return nil, errors.New("database handle is required")
	}
	if opts.Platform == "" {
		return nil, errors.New("platform is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "run_lock", "platform", opts.Platform)
	}

	return &AdvisoryLock{
		db:       opts.DB,
		minorKey: fnv32a(model.RecordID(opts.Platform, opts.Account)),
		logger:   logger,
	}, nil
}

// Acquire takes the lock or returns core.ErrLockHeld without waiting.
func (l *AdvisoryLock) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock($1, $2)",
		advisoryLockRunMajor, l.minorKey,
	).Scan(&acquired)
	if err != nil {
		conn.Close()
		return fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return core.ErrLockHeld
	}

	l.conn = conn
	if l.logger != nil {
		l.logger.Debug("run lock acquired", "key", l.minorKey)
	}
	return nil
}

// Release frees the lock and its connection. Safe to call when not held.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	var released bool
	err := l.conn.QueryRowContext(ctx,
		"SELECT pg_advisory_unlock($1, $2)",
		advisoryLockRunMajor, l.minorKey,
	).Scan(&released)
	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("close lock connection: %w", closeErr)
	}
	if l.logger != nil {
		l.logger.Debug("run lock released", "key", l.minorKey)
	}
	return nil
}

// fnv32a hashes a key into the minor half of an advisory lock key pair.
func fnv32a(s string) int32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int32(h.Sum32()) // #nosec G115 - any 32-bit pattern is a valid lock key
}
