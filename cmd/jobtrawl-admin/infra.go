package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/bootstrap"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/data/filestore"
)

// storeSession bundles an open record store with the connection it may sit
// on. Admin commands read and restore without taking the run lock, so a
// session is safe to open next to a live runner.
type storeSession struct {
	Records core.RecordStore
	db      *sql.DB
	logger  *slog.Logger
}

// openStoreSession connects whatever the configured store backend needs and
// builds the store. The file backend touches nothing but the data directory.
func openStoreSession(cmdCtx *commandContext) (*storeSession, error) {
	var db *sql.DB
	if cmdCtx.Config.Store.Backend == config.StoreBackendPostgres {
		var err error
		db, err = bootstrap.ConnectDB(bootstrap.DatabaseConfig{
			DBConfig: cmdCtx.Config.Postgres,
			Logger:   cmdCtx.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
	}

	stores, err := bootstrap.BuildRecordStores(bootstrap.StoreDeps{
		Config: &cmdCtx.Config,
		DB:     db,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		if db != nil {
			if closeErr := db.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
			}
		}
		return nil, err
	}

	return &storeSession{
		Records: stores.Records,
		db:      db,
		logger:  cmdCtx.Logger,
	}, nil
}

func (s *storeSession) Close() error {
	var closeErr error
	if s.Records != nil {
		if err := s.Records.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close store: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	return closeErr
}

// openFileStore returns the concrete file store for backup commands. Only the
// file backend keeps filesystem backups; the postgres backend archives into
// the jobtrawl_record_backups table instead.
func openFileStore(cmdCtx *commandContext) (*filestore.Store, error) {
	if cmdCtx.Config.Store.Backend != config.StoreBackendFile {
		return nil, fmt.Errorf(
			"backup commands apply to the file store backend, configured backend is %q",
			cmdCtx.Config.Store.Backend,
		)
	}
	st, err := filestore.NewStore(filestore.StoreOptions{
		Dir:        cmdCtx.Config.Store.DataDir,
		Platform:   cmdCtx.Config.Search.Platform,
		Account:    cmdCtx.Config.Search.Account,
		MaxBackups: cmdCtx.Config.Store.MaxBackups,
		Logger:     cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create file store: %w", err)
	}
	return st, nil
}
