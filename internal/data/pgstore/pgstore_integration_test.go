package pgstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/testutil"
)

func newTestStore(t *testing.T, db *sql.DB, platform string, clock core.Clock) *Store {
	t.Helper()
	store, err := NewStore(StoreOptions{
		DB:         db,
		Platform:   platform,
		Account:    "tester@example.com",
		MaxBackups: 2,
		Clock:      clock,
	})
	require.NoError(t, err)
	return store
}

func TestPGStore_UpsertAndGet(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		store := newTestStore(t, db, "boardfeed", nil)

		rec := testutil.NewRecord("boardfeed", "p-1").
			WithTitle("Backend Engineer").
			WithCompany("Initech").
			WithSearchMeta(&model.SearchMeta{
				Keywords: []string{"golang"},
				Location: "Remote",
			}).
			WithLastError("transient timeout").
			WithLastActionAt(testutil.TestTime().Add(time.Minute)).
			Build()

		require.NoError(t, store.Upsert(ctx, rec))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, "Backend Engineer", got.Title)
		assert.Equal(t, "Initech", got.Company)
		assert.Equal(t, model.StateDiscovered, got.State)
		require.NotNil(t, got.SearchMeta)
		assert.Equal(t, []string{"golang"}, got.SearchMeta.Keywords)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "transient timeout", *got.LastError)
		require.NotNil(t, got.LastActionAt)
		assert.True(t, got.LastActionAt.Equal(testutil.TestTime().Add(time.Minute)))
		assert.Nil(t, got.AppliedAt)
	})
}

func TestPGStore_UpsertIsIdempotent(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		store := newTestStore(t, db, "boardfeed", nil)

		rec := testutil.DiscoveredRecord("boardfeed", "p-1")
		require.NoError(t, store.Upsert(ctx, rec))

		rec.State = model.StateQueued
		rec.Title = "Updated Title"
		require.NoError(t, store.Upsert(ctx, rec))

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		require.Len(t, snap.Records, 1)
		assert.Equal(t, model.StateQueued, snap.Records[rec.ID].State)
		assert.Equal(t, "Updated Title", snap.Records[rec.ID].Title)
	})
}

func TestPGStore_UpsertRequiresID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		store := newTestStore(t, db, "boardfeed", nil)

		err := store.Upsert(context.Background(), &model.JobRecord{})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestPGStore_GetNotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		store := newTestStore(t, db, "boardfeed", nil)

		_, err := store.Get(context.Background(), "boardfeed:missing")
		require.Error(t, err)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestPGStore_LoadScopesToPlatform(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		boardfeed := newTestStore(t, db, "boardfeed", nil)
		careers := newTestStore(t, db, "careers", nil)

		require.NoError(t, boardfeed.Upsert(ctx, testutil.DiscoveredRecord("boardfeed", "p-1")))
		require.NoError(t, careers.Upsert(ctx, testutil.DiscoveredRecord("careers", "p-1")))
		require.NoError(t, careers.Upsert(ctx, testutil.DiscoveredRecord("careers", "p-2")))

		snap, err := boardfeed.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Records, 1)
		assert.Equal(t, "boardfeed", snap.Platform)

		snap, err = careers.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Records, 2)

		// Query scopes per platform filter; empty platform spans them all.
		got, err := boardfeed.Query(ctx, model.RecordQuery{Platform: "careers"})
		require.NoError(t, err)
		assert.Len(t, got, 2)

		got, err = boardfeed.Query(ctx, model.RecordQuery{})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestPGStore_QueryFilters(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		store := newTestStore(t, db, "boardfeed", nil)

		base := testutil.TestTime()
		older := testutil.NewRecord("boardfeed", "p-older").
			WithDiscoveredAt(base.Add(-2 * time.Hour)).
			WithLastSeenAt(base.Add(-2 * time.Hour)).
			WithState(model.StateQueued).
			Build()
		newer := testutil.NewRecord("boardfeed", "p-newer").
			WithDiscoveredAt(base.Add(-time.Hour)).
			WithLastSeenAt(base.Add(-time.Hour)).
			WithState(model.StateQueued).
			Build()
		failed := testutil.FailedRecord("boardfeed", "p-failed", 1)
		failed.DiscoveredAt = base.Add(-30 * time.Minute)
		failed.LastSeenAt = base.Add(-30 * time.Minute)

		for _, rec := range []*model.JobRecord{older, newer, failed} {
			require.NoError(t, store.Upsert(ctx, rec))
		}

		t.Run("filters by state and orders by discovery", func(t *testing.T) {
			got, err := store.Query(ctx, model.RecordQuery{
				States: []model.LifecycleState{model.StateQueued},
			})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, older.ID, got[0].ID)
			assert.Equal(t, newer.ID, got[1].ID)
		})

		t.Run("filters by discovery window", func(t *testing.T) {
			since := base.Add(-90 * time.Minute)
			got, err := store.Query(ctx, model.RecordQuery{DiscoveredSince: &since})
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, newer.ID, got[0].ID)
			assert.Equal(t, failed.ID, got[1].ID)
		})

		t.Run("applies limit after ordering", func(t *testing.T) {
			got, err := store.Query(ctx, model.RecordQuery{Limit: 1})
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, older.ID, got[0].ID)
		})
	})
}

func TestPGStore_SnapshotAndBackupPrunes(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := core.NewFrozenClock(testutil.TestTime())
		store := newTestStore(t, db, "boardfeed", clock)

		require.NoError(t, store.Upsert(ctx, testutil.DiscoveredRecord("boardfeed", "p-1")))

		// Three batches against a max of two.
		for i := 0; i < 3; i++ {
			require.NoError(t, store.SnapshotAndBackup(ctx))
			clock.Advance(time.Minute)
		}

		var batches int
		err := db.QueryRowContext(ctx, `
			SELECT count(DISTINCT backup_id) FROM jobtrawl_record_backups WHERE platform = $1
		`, "boardfeed").Scan(&batches)
		require.NoError(t, err)
		assert.Equal(t, 2, batches)

		snap, err := store.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, snap.LastBackupAt)
	})
}

func TestPGStore_FailStaleApplying(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := core.NewFrozenClock(testutil.TestTime())
		store := newTestStore(t, db, "boardfeed", clock)

		stale := testutil.ApplyingRecord("boardfeed", "p-stale")
		staleAction := testutil.TestTime().Add(-2 * time.Hour)
		stale.LastActionAt = &staleAction

		fresh := testutil.ApplyingRecord("boardfeed", "p-fresh")
		freshAction := testutil.TestTime().Add(-time.Minute)
		fresh.LastActionAt = &freshAction

		require.NoError(t, store.Upsert(ctx, stale))
		require.NoError(t, store.Upsert(ctx, fresh))

		failed, err := store.FailStaleApplying(ctx, time.Hour, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), failed)

		got, err := store.Get(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StateFailed, got.State)
		assert.Equal(t, 1, got.Attempts)
		require.NotNil(t, got.LastError)

		got, err = store.Get(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StateApplying, got.State)
		assert.Equal(t, 0, got.Attempts)
	})
}

func TestPGStore_DeleteOldRecords(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := core.NewFrozenClock(testutil.TestTime())
		store := newTestStore(t, db, "boardfeed", clock)

		old := testutil.AppliedRecord("boardfeed", "p-old")
		oldAction := testutil.TestTime().Add(-60 * 24 * time.Hour)
		old.LastActionAt = &oldAction

		recent := testutil.AppliedRecord("boardfeed", "p-recent")
		recentAction := testutil.TestTime().Add(-24 * time.Hour)
		recent.LastActionAt = &recentAction

		require.NoError(t, store.Upsert(ctx, old))
		require.NoError(t, store.Upsert(ctx, recent))

		deleted, err := store.DeleteOldRecords(ctx, core.DeleteOldRecordsParams{
			State:     model.StateApplied,
			MaxAge:    30 * 24 * time.Hour,
			BatchSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = store.Get(ctx, old.ID)
		assert.True(t, apperr.IsNotFound(err))

		_, err = store.Get(ctx, recent.ID)
		require.NoError(t, err)
	})
}

func TestPGStore_DeleteOldRecordsRejectsInvalidState(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		store := newTestStore(t, db, "boardfeed", nil)

		_, err := store.DeleteOldRecords(context.Background(), core.DeleteOldRecordsParams{
			State: "bogus",
		})
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
	})
}

func TestAdvisoryLock_SingleWriter(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()

		first, err := NewAdvisoryLock(AdvisoryLockOptions{
			DB:       db,
			Platform: "boardfeed",
			Account:  "tester@example.com",
		})
		require.NoError(t, err)
		second, err := NewAdvisoryLock(AdvisoryLockOptions{
			DB:       db,
			Platform: "boardfeed",
			Account:  "tester@example.com",
		})
		require.NoError(t, err)

		require.NoError(t, first.Acquire(ctx))
		defer first.Release(ctx)

		err = second.Acquire(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrLockHeld)

		// Released locks can be taken again.
		require.NoError(t, first.Release(ctx))
		require.NoError(t, second.Acquire(ctx))
		require.NoError(t, second.Release(ctx))
	})
}

func TestAdvisoryLock_IndependentPerPlatform(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()

		boardfeed, err := NewAdvisoryLock(AdvisoryLockOptions{DB: db, Platform: "boardfeed"})
		require.NoError(t, err)
		careers, err := NewAdvisoryLock(AdvisoryLockOptions{DB: db, Platform: "careers"})
		require.NoError(t, err)

		require.NoError(t, boardfeed.Acquire(ctx))
		defer boardfeed.Release(ctx)

		require.NoError(t, careers.Acquire(ctx))
		require.NoError(t, careers.Release(ctx))
	})
}

func TestAdvisoryLock_ReleaseWithoutAcquire(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		lock, err := NewAdvisoryLock(AdvisoryLockOptions{DB: db, Platform: "boardfeed"})
		require.NoError(t, err)
		require.NoError(t, lock.Release(context.Background()))
	})
}
