package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// backupTimeLayout names backup copies so lexical order is chronological.
const backupTimeLayout = "20060102T150405"

// backupDir returns the directory backup copies live in.
func (s *Store) backupDir() string {
	return filepath.Join(s.dir, "backups")
}

// SnapshotAndBackup copies the current on-disk document into the backup
// directory before a batch of writes. When no document exists yet there is
// nothing to protect and the call is a no-op.
func (s *Store) SnapshotAndBackup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path()) // #nosec G304 - path is built from configured data dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read store document for backup: %w", err)
	}

	if err := os.MkdirAll(s.backupDir(), 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	now := s.clock.Now()
	// A short random suffix keeps same-second backups from colliding.
	name := fmt.Sprintf("%s_%s_%s.json", s.platform, now.Format(backupTimeLayout), uuid.NewString()[:4])
	dest := filepath.Join(s.backupDir(), name)
	if err := os.WriteFile(dest, data, 0o644); err != nil { // #nosec G306 - backup of non-secret data
		return fmt.Errorf("write backup %s: %w", name, err)
	}

	if s.loaded {
		t := now
		s.snap.LastBackupAt = &t
	}
	if s.logger != nil {
		s.logger.Info("store backup written", "backup", name)
	}
	return s.rotateBackupsLocked()
}

// ListBackups returns the backup file names for this platform, newest first.
func (s *Store) ListBackups() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listBackupsLocked()
}

func (s *Store) listBackupsLocked() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var names []string
	prefix := s.platform + "_"
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	// Names embed the timestamp, so lexical descending is newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// rotateBackupsLocked removes the oldest backups beyond the configured maximum.
func (s *Store) rotateBackupsLocked() error {
	names, err := s.listBackupsLocked()
	if err != nil {
		return err
	}
	if len(names) <= s.maxBackups {
		return nil
	}

	for _, name := range names[s.maxBackups:] {
		if err := os.Remove(filepath.Join(s.backupDir(), name)); err != nil {
			return fmt.Errorf("remove old backup %s: %w", name, err)
		}
		if s.logger != nil {
			s.logger.Debug("old backup removed", "backup", name)
		}
	}
	return nil
}

// RestoreLatestBackup replaces a corrupt or missing document with the newest
// backup that still parses, then reloads. Returns a not-found error when no
// usable backup exists.
func (s *Store) RestoreLatestBackup(_ context.Context) (*model.SnapshotRestore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.listBackupsLocked()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, apperr.NotFoundf("no backups found for platform %s", s.platform)
	}

	for _, name := range names {
		src := filepath.Join(s.backupDir(), name)
		snap, err := readSnapshot(src)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("skipping unusable backup", "backup", name, "error", err)
			}
			continue
		}

		data, err := os.ReadFile(src) // #nosec G304 - path is under the backup dir
		if err != nil {
			return nil, fmt.Errorf("read backup %s: %w", name, err)
		}
		if err := os.WriteFile(s.Path(), data, 0o644); err != nil { // #nosec G306 - non-secret data
			return nil, fmt.Errorf("restore backup %s: %w", name, err)
		}

		s.snap = snap
		s.loaded = true
		stats := snap.Stats()
		if s.logger != nil {
			s.logger.Info("store restored from backup",
				"backup", name,
				"records", stats.Total(),
			)
		}
		return &model.SnapshotRestore{Backup: name, Records: stats.Total()}, nil
	}

	return nil, apperr.StoreCorruptf("all %d backups for platform %s are unusable", len(names), s.platform)
}
