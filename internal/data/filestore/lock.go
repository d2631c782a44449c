package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jobtrawl/jobtrawl/internal/core"
)

// FileLock implements the per-account single-writer rule with a lock file
// created O_EXCL. The file holds the owning pid; a lock left behind by a dead
// process is taken over so crash recovery is not blocked.
type FileLock struct {
	path   string
	logger *slog.Logger
	held   bool
}

// NewFileLock creates a lock for the platform document in dir.
func NewFileLock(dir, platform string, logger *slog.Logger) (*FileLock, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	if platform == "" {
		return nil, errors.New("platform is required")
	}
	if logger != nil {
		logger = logger.With("component", "filelock", "platform", platform)
	}
	return &FileLock{
		path:   filepath.Join(dir, platform+".lock"),
		logger: logger,
	}, nil
}

// Acquire takes the lock or returns core.ErrLockHeld when a live process
// owns it.
func (l *FileLock) Acquire(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) // #nosec G304 - path built from configured dir
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(l.path)
				return fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			l.held = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("create lock file: %w", err)
		}

		pid, perr := l.holderPid()
		if perr == nil && pid > 0 && pidAlive(pid) {
			return fmt.Errorf("%w by pid %d (%s)", core.ErrLockHeld, pid, l.path)
		}

		// Holder is gone; remove the stale lock and retry once.
		if l.logger != nil {
			l.logger.Warn("removing stale lock file", "path", l.path, "holder_pid", pid)
		}
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock file: %w", rerr)
		}
	}

	return fmt.Errorf("%w (%s)", core.ErrLockHeld, l.path)
}

// Release frees the lock. Safe to call when the lock is not held.
func (l *FileLock) Release(_ context.Context) error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// holderPid reads the pid recorded in the lock file.
func (l *FileLock) holderPid() (int, error) {
	data, err := os.ReadFile(l.path) // #nosec G304 - path built from configured dir
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("lock file %s holds no pid: %w", l.path, err)
	}
	return pid, nil
}

// pidAlive reports whether a process with the given pid exists. EPERM means
// the process exists but belongs to another user.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
