package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
)

func runListBackups(cmdCtx *commandContext, _ []string) error {
	st, err := openFileStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close store failed", "error", closeErr)
		}
	}()

	names, err := st.ListBackups()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return writeln(os.Stdout, "(no backups found)")
	}

	backupDir := filepath.Join(cmdCtx.Config.Store.DataDir, "backups")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "BACKUP\tSIZE\tMODIFIED"); err != nil {
		return fmt.Errorf("write backups header row: %w", err)
	}
	for _, name := range names {
		size, modified := "?", "?"
		if info, statErr := os.Stat(filepath.Join(backupDir, name)); statErr == nil {
			size = fmt.Sprintf("%d", info.Size())
			modified = info.ModTime().Format("2006-01-02 15:04:05")
		}
		if err := writef(tw, "%s\t%s\t%s\n", name, size, modified); err != nil {
			return fmt.Errorf("write backups row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush backups table: %w", err)
	}

	return writef(os.Stdout, "\nTotal backups: %d\n", len(names))
}

type restoreOptions struct {
	Yes bool
}

func parseRestoreFlags(args []string) (restoreOptions, error) {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts restoreOptions
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return restoreOptions{}, err
	}
	return opts, nil
}

func runRestore(cmdCtx *commandContext, args []string) error {
	opts, err := parseRestoreFlags(args)
	if err != nil {
		return err
	}

	st, err := openFileStore(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close store failed", "error", closeErr)
		}
	}()

	action := fmt.Sprintf("overwrite %s with the newest usable backup", st.Path())
	if confirmErr := confirm(opts.Yes, action); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	restored, err := st.RestoreLatestBackup(ctx)
	if err != nil {
		return err
	}

	cmdCtx.Logger.Info("store restored",
		"backup", restored.Backup,
		"records", restored.Records)
	return writef(os.Stdout, "Restored %s from %s (%d records)\n",
		st.Path(), restored.Backup, restored.Records)
}
