package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

func newTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	st, err := NewStore(StoreOptions{
		Dir:      dir,
		Platform: "linkedin",
		Account:  "dev@example.com",
		Clock:    core.NewFrozenClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return st
}

func makeRecord(t *testing.T, postingID string, discovered time.Time) *model.JobRecord {
	t.Helper()
	rec, err := model.NewRecord(model.NewRecordParams{
		Platform:  "linkedin",
		PostingID: postingID,
		Title:     "Engineer",
		Company:   "Initech",
	}, discovered)
	require.NoError(t, err)
	return rec
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(StoreOptions{Platform: "linkedin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory is required")

	_, err = NewStore(StoreOptions{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "platform is required")
}

func TestStore_LoadMissingFile(t *testing.T) {
	st := newTestStore(t, t.TempDir())

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.SchemaVersion, snap.SchemaVersion)
	assert.Equal(t, "linkedin", snap.Platform)
	assert.Empty(t, snap.Records)
}

func TestStore_UpsertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	st := newTestStore(t, dir)
	rec := makeRecord(t, "42", now)
	require.NoError(t, st.Upsert(ctx, rec))

	// A new store instance must see the write (durable before return).
	st2 := newTestStore(t, dir)
	got, err := st2.Get(ctx, "linkedin:42")
	require.NoError(t, err)
	assert.Equal(t, model.StateDiscovered, got.State)
	assert.Equal(t, "Initech", got.Company)
}

func TestStore_UpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	st := newTestStore(t, t.TempDir())

	rec := makeRecord(t, "42", now)
	require.NoError(t, st.Upsert(ctx, rec))

	require.NoError(t, rec.TransitionTo(model.StateQueued, now))
	require.NoError(t, st.Upsert(ctx, rec))

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 1, "upsert must never duplicate a record")
	assert.Equal(t, model.StateQueued, snap.Records["linkedin:42"].State)
}

func TestStore_UpsertRejectsEmptyID(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	err := st.Upsert(context.Background(), &model.JobRecord{})
	assert.True(t, apperr.IsValidation(err))
}

func TestStore_GetNotFound(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	_, err := st.Get(context.Background(), "linkedin:missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestStore_LoadIgnoresStrayTempFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := newTestStore(t, dir)
	require.NoError(t, st.Upsert(ctx, makeRecord(t, "1", time.Now().UTC())))

	// A crash between CreateTemp and Rename strands a partial temp file
	// next to the document. The document itself must stay authoritative.
	stray := filepath.Join(dir, "linkedin.json.tmp-123456")
	require.NoError(t, os.WriteFile(stray, []byte(`{"schema_version":1,"reco`), 0o644))

	fresh := newTestStore(t, dir)
	snap, err := fresh.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, snap.Records, "linkedin:1", "pre-write state intact")
	assert.Len(t, snap.Records, 1)
}

func TestStore_LoadCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)
	require.NoError(t, os.WriteFile(st.Path(), []byte("{not json"), 0o644))

	_, err := st.Load(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.IsStoreCorrupt(err), "corrupt document must be surfaced, got %v", err)
}

func TestStore_LoadWrongSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	doc := map[string]any{"schema_version": 99, "platform": "linkedin", "records": map[string]any{}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(st.Path(), data, 0o644))

	_, err = st.Load(context.Background())
	assert.True(t, apperr.IsStoreCorrupt(err))
}

func TestStore_LoadMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)

	// Record keyed under an ID that does not match its own.
	doc := map[string]any{
		"schema_version": model.SchemaVersion,
		"platform":       "linkedin",
		"records": map[string]any{
			"linkedin:1": map[string]any{"id": "linkedin:2", "state": "queued"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(st.Path(), data, 0o644))

	_, err = st.Load(context.Background())
	assert.True(t, apperr.IsStoreCorrupt(err))
}

func TestStore_Query(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := newTestStore(t, t.TempDir())

	first := makeRecord(t, "1", base)
	second := makeRecord(t, "2", base.Add(time.Hour))
	third := makeRecord(t, "3", base.Add(2*time.Hour))
	require.NoError(t, second.TransitionTo(model.StateQueued, base.Add(time.Hour)))

	for _, rec := range []*model.JobRecord{third, first, second} {
		require.NoError(t, st.Upsert(ctx, rec))
	}

	all, err := st.Query(ctx, model.RecordQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "linkedin:1", all[0].ID, "discovery order")
	assert.Equal(t, "linkedin:3", all[2].ID)

	queued, err := st.Query(ctx, model.RecordQuery{States: []model.LifecycleState{model.StateQueued}})
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "linkedin:2", queued[0].ID)

	limited, err := st.Query(ctx, model.RecordQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_BackupAndRotation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	clock := core.NewFrozenClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := NewStore(StoreOptions{Dir: dir, Platform: "linkedin", MaxBackups: 2, Clock: clock})
	require.NoError(t, err)

	// Nothing on disk yet: backup is a no-op.
	require.NoError(t, st.SnapshotAndBackup(ctx))
	names, err := st.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, st.Upsert(ctx, makeRecord(t, "1", clock.Now())))
	for i := 0; i < 4; i++ {
		require.NoError(t, st.SnapshotAndBackup(ctx))
		clock.Advance(time.Minute)
	}

	names, err = st.ListBackups()
	require.NoError(t, err)
	assert.Len(t, names, 2, "rotation keeps only MaxBackups copies")
	assert.Greater(t, names[0], names[1], "newest first")
}

func TestStore_RestoreLatestBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := newTestStore(t, dir)

	// Good state: one record, backed up.
	require.NoError(t, st.Upsert(ctx, makeRecord(t, "1", time.Now().UTC())))
	require.NoError(t, st.SnapshotAndBackup(ctx))

	// Interrupted write leaves a truncated document behind.
	require.NoError(t, os.WriteFile(st.Path(), []byte(`{"schema_version":1,"reco`), 0o644))

	fresh := newTestStore(t, dir)
	_, err := fresh.Load(ctx)
	require.True(t, apperr.IsStoreCorrupt(err))

	restored, err := fresh.RestoreLatestBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Records)

	snap, err := fresh.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, snap.Records, "linkedin:1", "pre-write state recovered")
}

func TestStore_RestoreLatestBackup_NoBackups(t *testing.T) {
	st := newTestStore(t, t.TempDir())
	_, err := st.RestoreLatestBackup(context.Background())
	assert.True(t, apperr.IsNotFound(err))
}

func TestStore_RestoreSkipsUnusableBackup(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := newTestStore(t, dir)

	require.NoError(t, st.Upsert(ctx, makeRecord(t, "1", time.Now().UTC())))
	require.NoError(t, st.SnapshotAndBackup(ctx))

	// A newer but corrupt backup must be skipped in favor of the older good one.
	bad := filepath.Join(dir, "backups", "linkedin_99991231T235959_zzzz.json")
	require.NoError(t, os.WriteFile(bad, []byte("{broken"), 0o644))

	restored, err := st.RestoreLatestBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored.Records)
}

func TestStore_FlushWithoutLoadIsNoop(t *testing.T) {
	dir := t.TempDir()
	st := newTestStore(t, dir)
	require.NoError(t, st.Flush(context.Background()))
	_, err := os.Stat(st.Path())
	assert.True(t, os.IsNotExist(err), "flush before any load/write must not create a document")
}
