package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/adapters/redislock"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/data/filestore"
	"github.com/jobtrawl/jobtrawl/internal/data/pgstore"
)

// Stores groups the storage-side collaborators of one process: the record
// store, its retention operations, and the single-writer run lock. Both store
// backends serve all three, so one instance is built and shared.
type Stores struct {
	Records core.RecordStore
	Reaper  core.ReaperStore
	Locker  core.RunLocker
}

// StoreDeps groups dependencies for store construction.
type StoreDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB               // Required for the postgres store backend
	RedisClient redis.UniversalClient // Required for the redis lock backend
	Logger      *slog.Logger
}

// BuildStores constructs the configured store backend and run lock.
func BuildStores(deps StoreDeps) (*Stores, error) {
	stores, err := BuildRecordStores(deps)
	if err != nil {
		return nil, err
	}

	locker, err := buildRunLocker(deps)
	if err != nil {
		return nil, err
	}
	stores.Locker = locker

	return stores, nil
}

// BuildRecordStores constructs the record store and its retention operations
// without the run lock. The admin CLI inspects and restores through this so
// it never contends for the single-writer lease.
func BuildRecordStores(deps StoreDeps) (*Stores, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config

	stores := &Stores{}
	switch cfg.Store.Backend {
	case config.StoreBackendFile:
		st, err := filestore.NewStore(filestore.StoreOptions{
			Dir:        cfg.Store.DataDir,
			Platform:   cfg.Search.Platform,
			Account:    cfg.Search.Account,
			MaxBackups: cfg.Store.MaxBackups,
			Logger:     deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create file store: %w", err)
		}
		stores.Records, stores.Reaper = st, st

	case config.StoreBackendPostgres:
		if deps.DB == nil {
			return nil, errors.New("postgres store backend requires a database connection")
		}
		st, err := pgstore.NewStore(pgstore.StoreOptions{
			DB:         deps.DB,
			Platform:   cfg.Search.Platform,
			Account:    cfg.Search.Account,
			MaxBackups: cfg.Store.MaxBackups,
			Logger:     deps.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		stores.Records, stores.Reaper = st, st

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return stores, nil
}

// buildRunLocker selects the run lock implementation. The store-derived lock
// matches the store backend; the redis lease covers fleets whose store offers
// no cross-host exclusion.
//
//nolint:ireturn // the caller programs against the RunLocker port.
func buildRunLocker(deps StoreDeps) (core.RunLocker, error) {
	cfg := deps.Config

	switch cfg.Lock.Backend {
	case config.LockBackendRedis:
		if deps.RedisClient == nil {
			return nil, errors.New("redis lock backend requires a redis client")
		}
		return redislock.NewLock(redislock.LockOptions{
			Client:   deps.RedisClient,
			Platform: cfg.Search.Platform,
			Account:  cfg.Search.Account,
			TTL:      cfg.Lock.TTL,
			Logger:   deps.Logger,
		})

	case config.LockBackendStore:
		switch cfg.Store.Backend {
		case config.StoreBackendFile:
			return filestore.NewFileLock(cfg.Store.DataDir, cfg.Search.Platform, deps.Logger)
		case config.StoreBackendPostgres:
			return pgstore.NewAdvisoryLock(pgstore.AdvisoryLockOptions{
				DB:       deps.DB,
				Platform: cfg.Search.Platform,
				Account:  cfg.Search.Account,
				Logger:   deps.Logger,
			})
		default:
			return nil, fmt.Errorf("no store-derived lock for store backend %q", cfg.Store.Backend)
		}

	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Lock.Backend)
	}
}
