package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

func runStats(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	session, err := openStoreSession(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close store session failed", "error", closeErr)
		}
	}()

	snap, err := session.Records.Load(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	return renderStats(snap)
}

func renderStats(snap *model.Snapshot) error {
	if err := writef(os.Stdout, "Platform: %s\n", snap.Platform); err != nil {
		return fmt.Errorf("write stats platform: %w", err)
	}
	if snap.Account != "" {
		if err := writef(os.Stdout, "Account:  %s\n", snap.Account); err != nil {
			return fmt.Errorf("write stats account: %w", err)
		}
	}
	if !snap.UpdatedAt.IsZero() {
		if err := writef(os.Stdout, "Updated:  %s\n", snap.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("write stats updated: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write stats separator: %w", err)
	}

	stats := snap.Stats()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "STATE\tCOUNT"); err != nil {
		return fmt.Errorf("write stats header row: %w", err)
	}
	rows := []struct {
		state model.LifecycleState
		count int
	}{
		{model.StateDiscovered, stats.Discovered},
		{model.StateQueued, stats.Queued},
		{model.StateApplying, stats.Applying},
		{model.StateApplied, stats.Applied},
		{model.StateFailed, stats.Failed},
		{model.StateSkipped, stats.Skipped},
	}
	for _, row := range rows {
		if err := writef(tw, "%s\t%d\n", row.state, row.count); err != nil {
			return fmt.Errorf("write stats row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush stats table: %w", err)
	}

	if err := writef(os.Stdout, "\nTotal records: %d\n", stats.Total()); err != nil {
		return fmt.Errorf("write stats total: %w", err)
	}
	return nil
}

type listRecordsOptions struct {
	States  string
	Limit   int
	RawJSON bool
}

func parseListRecordsFlags(args []string) (listRecordsOptions, error) {
	fs := flag.NewFlagSet("records", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listRecordsOptions
	fs.StringVar(
		&opts.States,
		"state",
		"",
		"Comma-separated lifecycle states to include (e.g. queued,failed); empty lists every state",
	)
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum number of records to print (0 = no limit)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print records as JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return listRecordsOptions{}, err
	}

	if opts.Limit < 0 {
		return listRecordsOptions{}, errors.New("--limit must be zero or greater")
	}

	return opts, nil
}

func parseStateList(raw string) ([]model.LifecycleState, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var states []model.LifecycleState
	for _, part := range strings.Split(raw, ",") {
		state, err := model.ParseState(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

func runListRecords(cmdCtx *commandContext, args []string) error {
	opts, err := parseListRecordsFlags(args)
	if err != nil {
		return err
	}
	states, err := parseStateList(opts.States)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	session, err := openStoreSession(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("close store session failed", "error", closeErr)
		}
	}()

	records, err := session.Records.Query(ctx, model.RecordQuery{
		States: states,
		Limit:  opts.Limit,
	})
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}

	if opts.RawJSON {
		return renderRecordsJSON(records)
	}
	return renderRecordsTable(records)
}

func renderRecordsJSON(records []*model.JobRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	return writeln(os.Stdout, string(data))
}

func renderRecordsTable(records []*model.JobRecord) error {
	if len(records) == 0 {
		return writeln(os.Stdout, "(no records matched)")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tSTATE\tATTEMPTS\tTITLE\tCOMPANY\tDISCOVERED\tLAST ACTIVITY"); err != nil {
		return fmt.Errorf("write records header row: %w", err)
	}
	for _, rec := range records {
		if err := writef(
			tw,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.State,
			rec.Attempts,
			truncate(rec.Title, 40),
			truncate(rec.Company, 24),
			rec.DiscoveredAt.Format("2006-01-02 15:04"),
			recordActivity(rec).Format("2006-01-02 15:04"),
		); err != nil {
			return fmt.Errorf("write records row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush records table: %w", err)
	}

	return writef(os.Stdout, "\nTotal records listed: %d\n", len(records))
}

// recordActivity returns the most recent thing that happened to a record:
// its last state action when one exists, else its last sighting in search.
func recordActivity(rec *model.JobRecord) time.Time {
	if rec.LastActionAt != nil {
		return *rec.LastActionAt
	}
	return rec.LastSeenAt
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
