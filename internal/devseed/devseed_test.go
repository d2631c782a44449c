package devseed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/data/filestore"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

func newSeedStore(t *testing.T) (*filestore.Store, *core.FrozenClock) {
	t.Helper()
	clock := core.NewFrozenClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := filestore.NewStore(filestore.StoreOptions{
		Dir:      t.TempDir(),
		Platform: "boardfeed",
		Clock:    clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, clock
}

func TestRunSeedsEveryLifecycleState(t *testing.T) {
	ctx := context.Background()
	st, clock := newSeedStore(t)

	res, err := Run(ctx, Params{Store: st, Platform: "boardfeed", Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, SampleCount(), res.Seeded)
	assert.Zero(t, res.Skipped)

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	stats := snap.Stats()
	assert.Equal(t, 2, stats.Discovered)
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 1, stats.Applying)
	assert.Equal(t, 1, stats.Applied)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, clock := newSeedStore(t)

	first, err := Run(ctx, Params{Store: st, Platform: "boardfeed", Clock: clock})
	require.NoError(t, err)
	require.Equal(t, SampleCount(), first.Seeded)

	second, err := Run(ctx, Params{Store: st, Platform: "boardfeed", Clock: clock})
	require.NoError(t, err)
	assert.Zero(t, second.Seeded)
	assert.Equal(t, SampleCount(), second.Skipped)

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Records, SampleCount())
}

func TestRunLeavesExistingRecordsUntouched(t *testing.T) {
	ctx := context.Background()
	st, clock := newSeedStore(t)

	// Pre-seed one of the sample IDs in a different state than the sample.
	rec, err := model.NewRecord(model.NewRecordParams{
		Platform:  "boardfeed",
		PostingID: "dev-1001",
		Title:     "Already Tracked",
		Company:   "Existing Co",
	}, clock.Now())
	require.NoError(t, err)
	require.NoError(t, rec.MarkSkipped(clock.Now(), "tracked before seeding"))
	require.NoError(t, st.Upsert(ctx, rec))

	res, err := Run(ctx, Params{Store: st, Platform: "boardfeed", Clock: clock})
	require.NoError(t, err)
	assert.Equal(t, SampleCount()-1, res.Seeded)
	assert.Equal(t, 1, res.Skipped)

	got, err := st.Get(ctx, model.RecordID("boardfeed", "dev-1001"))
	require.NoError(t, err)
	assert.Equal(t, "Already Tracked", got.Title)
	assert.Equal(t, model.StateSkipped, got.State)
}

func TestRunSeededRecordsPassStateGraph(t *testing.T) {
	ctx := context.Background()
	st, clock := newSeedStore(t)

	_, err := Run(ctx, Params{Store: st, Platform: "boardfeed", Clock: clock})
	require.NoError(t, err)

	snap, err := st.Load(ctx)
	require.NoError(t, err)
	for _, rec := range snap.Records {
		assert.True(t, rec.State.Valid(), "record %s has invalid state %q", rec.ID, rec.State)
		assert.False(t, rec.DiscoveredAt.After(clock.Now()), "record %s discovered in the future", rec.ID)
		if rec.State == model.StateApplied {
			require.NotNil(t, rec.AppliedAt)
			assert.Equal(t, sampleResumeVersion, rec.ResumeVersion)
		}
		if rec.State == model.StateFailed {
			require.NotNil(t, rec.LastError)
			assert.Positive(t, rec.Attempts)
		}
	}
}

func TestRunRequiresStoreAndPlatform(t *testing.T) {
	_, err := Run(context.Background(), Params{Platform: "boardfeed"})
	require.Error(t, err)

	st, _ := newSeedStore(t)
	_, err = Run(context.Background(), Params{Store: st})
	require.Error(t, err)
}
