package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jobtrawl/jobtrawl/internal/bootstrap"
	"github.com/jobtrawl/jobtrawl/internal/devseed"
)

type seedOptions struct {
	Yes bool
}

func parseSeedFlags(args []string) (seedOptions, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts seedOptions
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return seedOptions{}, err
	}
	return opts, nil
}

// runSeed populates the configured record store with sample postings.
// Restricted to dev mode so a production store never picks up fake records.
func runSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseSeedFlags(args)
	if err != nil {
		return err
	}

	if !cmdCtx.Config.IsDev {
		return errors.New("seed is restricted to dev mode; set DEV=true")
	}

	action := fmt.Sprintf(
		"seed %d sample records into the %s store for platform %q",
		devseed.SampleCount(),
		cmdCtx.Config.Store.Backend,
		cmdCtx.Config.Search.Platform,
	)
	if err := confirm(opts.Yes, action); err != nil {
		return err
	}

	session, err := openStoreSession(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("store close failed", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	if session.db != nil {
		cmdCtx.Logger.Info("ensuring database migrations are current")
		if migrateErr := bootstrap.RunMigrations(ctx, session.db, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
	}

	res, err := devseed.Run(ctx, devseed.Params{
		Store:    session.Records,
		Platform: cmdCtx.Config.Search.Platform,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("seed data: %w", err)
	}

	return writef(os.Stdout, "Seeded %d sample records (%d already present)\n", res.Seeded, res.Skipped)
}
