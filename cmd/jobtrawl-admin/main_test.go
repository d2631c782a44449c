package main

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w
	fnErr := fn()
	require.NoError(t, w.Close())
	os.Stdout = oldStdout
	require.NoError(t, fnErr)

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(output)
}

func makeRecord(t *testing.T, postingID, title string, at time.Time) *model.JobRecord {
	t.Helper()
	rec, err := model.NewRecord(model.NewRecordParams{
		Platform:  "boardfeed",
		PostingID: postingID,
		Title:     title,
		Company:   "Initech",
	}, at)
	require.NoError(t, err)
	return rec
}

func TestRenderRecordsTableListsRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	first := makeRecord(t, "p-1", "Backend Engineer", now)
	second := makeRecord(t, "p-2", "Platform Engineer", now.Add(time.Hour))
	require.NoError(t, second.TransitionTo(model.StateQueued, now.Add(2*time.Hour)))

	out := captureStdout(t, func() error {
		return renderRecordsTable([]*model.JobRecord{first, second})
	})

	require.Contains(t, out, "ID")
	require.Contains(t, out, "boardfeed:p-1")
	require.Contains(t, out, "Backend Engineer")
	require.Contains(t, out, "queued")
	require.Contains(t, out, "2025-06-01 11:30")
	require.Contains(t, out, "Total records listed: 2")
}

func TestRenderRecordsTableEmpty(t *testing.T) {
	out := captureStdout(t, func() error {
		return renderRecordsTable(nil)
	})
	require.Contains(t, out, "(no records matched)")
}

func TestRenderStatsCountsStates(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	snap := model.NewSnapshot("boardfeed", "sam@example.com")
	snap.UpdatedAt = now

	discovered := makeRecord(t, "p-1", "Backend Engineer", now)
	queued := makeRecord(t, "p-2", "Platform Engineer", now)
	require.NoError(t, queued.TransitionTo(model.StateQueued, now))
	snap.Records[discovered.ID] = discovered
	snap.Records[queued.ID] = queued

	out := captureStdout(t, func() error {
		return renderStats(snap)
	})

	require.Contains(t, out, "Platform: boardfeed")
	require.Contains(t, out, "Account:  sam@example.com")
	require.Contains(t, out, "Total records: 2")
}

func TestParseStateList(t *testing.T) {
	states, err := parseStateList("queued, failed")
	require.NoError(t, err)
	require.Equal(t, []model.LifecycleState{model.StateQueued, model.StateFailed}, states)

	states, err = parseStateList("")
	require.NoError(t, err)
	require.Nil(t, states)

	_, err = parseStateList("queued,warp-drive")
	require.Error(t, err)
}

func TestParseListRecordsFlagsRejectsNegativeLimit(t *testing.T) {
	_, err := parseListRecordsFlags([]string{"--limit", "-1"})
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a very ...", truncate("a very long title indeed", 10))
}
