// Package filestore implements the durable record store as a single JSON
// document per platform/account pair, with timestamped backup copies and a
// lock file providing the single-writer rule.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// StoreOptions groups dependencies for Store.
type StoreOptions struct {
	Dir        string     // Required: data directory, created on demand
	Platform   string     // Required: platform tag, names the document
	Account    string     // Optional: account identifier recorded in the document
	MaxBackups int        // Optional: backup copies kept per platform (default 5)
	Clock      core.Clock // Optional: time source (defaults to system clock)
	Logger     *slog.Logger
}

// DefaultMaxBackups is the number of backup copies kept when none is configured.
const DefaultMaxBackups = 5

// Store persists one snapshot document at <dir>/<platform>.json. All writes
// go through a temp file followed by a rename, so the main document is never
// observed half-written.
type Store struct {
	mu         sync.Mutex
	dir        string
	platform   string
	account    string
	maxBackups int
	clock      core.Clock
	logger     *slog.Logger

	snap   *model.Snapshot
	loaded bool
}

// NewStore constructs a file-backed record store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.New("data directory is required")
	}
	if opts.Platform == "" {
		return nil, errors.New("platform is required")
	}

	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "filestore", "platform", opts.Platform)
	}

	return &Store{
		dir:        opts.Dir,
		platform:   opts.Platform,
		account:    opts.Account,
		maxBackups: maxBackups,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Path returns the location of the snapshot document.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.platform+".json")
}

// Load reads the snapshot document from disk. A missing document yields a
// fresh snapshot; an unparseable one yields a store-corruption error so the
// caller can decide to restore from backup.
func (s *Store) Load(_ context.Context) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.snap, nil
}

func (s *Store) loadLocked() error {
	if s.loaded {
		return nil
	}

	snap, err := readSnapshot(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.logger != nil {
				s.logger.Info("no store document found, starting fresh", "path", s.Path())
			}
			s.snap = model.NewSnapshot(s.platform, s.account)
			s.loaded = true
			return nil
		}
		return err
	}

	s.snap = snap
	s.loaded = true
	if s.logger != nil {
		stats := snap.Stats()
		s.logger.Info("store document loaded",
			"path", s.Path(),
			"records", stats.Total(),
			"queued", stats.Queued,
			"applied", stats.Applied,
			"failed", stats.Failed,
		)
	}
	return nil
}

// readSnapshot decodes and validates one snapshot document.
func readSnapshot(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from configured data dir
	if err != nil {
		return nil, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperr.Wrapf(err, apperr.CodeStoreCorrupt, "store document %s is not valid JSON", path)
	}
	if snap.SchemaVersion != model.SchemaVersion {
		return nil, apperr.StoreCorruptf(
			"store document %s has schema version %d, want %d",
			path, snap.SchemaVersion, model.SchemaVersion,
		)
	}
	if snap.Records == nil {
		snap.Records = make(map[string]*model.JobRecord)
	}
	for id, rec := range snap.Records {
		if rec == nil || rec.ID != id || !rec.State.Valid() {
			return nil, apperr.StoreCorruptf("store document %s has a malformed record %q", path, id)
		}
	}
	return &snap, nil
}

// Get retrieves one record by ID.
func (s *Store) Get(_ context.Context, id string) (*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	rec, ok := s.snap.Records[id]
	if !ok {
		return nil, apperr.NotFoundf("record %s not found", id)
	}
	return rec, nil
}

// Upsert inserts or replaces a record and writes the document through to
// disk before returning.
func (s *Store) Upsert(_ context.Context, rec *model.JobRecord) error {
	if rec == nil || rec.ID == "" {
		return apperr.Validation("record with an id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	s.snap.Records[rec.ID] = rec
	return s.writeLocked()
}

// Query lists records matching the filters in discovery order.
func (s *Store) Query(_ context.Context, q model.RecordQuery) ([]*model.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}

	var out []*model.JobRecord
	for _, rec := range s.snap.Sorted() {
		if !q.Matches(rec) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}

// Flush writes the document and rotates old backups.
func (s *Store) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return nil
	}
	if err := s.writeLocked(); err != nil {
		return err
	}
	return s.rotateBackupsLocked()
}

// Close flushes any pending state.
func (s *Store) Close() error {
	return s.Flush(context.Background())
}

// writeLocked marshals the snapshot and atomically replaces the document.
func (s *Store) writeLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	s.snap.UpdatedAt = s.clock.Now()
	data, err := json.MarshalIndent(s.snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store document: %w", err)
	}

	path := s.Path()
	tmp, err := os.CreateTemp(s.dir, s.platform+".json.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store document: %w", err)
	}
	return nil
}
