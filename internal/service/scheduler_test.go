package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobtrawl/jobtrawl/config"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	err     error
	summary *model.RunSummary
}

func (r *fakeRunner) Execute(_ context.Context) (*model.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.summary != nil {
		return r.summary, nil
	}
	return &model.RunSummary{RunID: "run-test", Platform: "boardfeed"}, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func schedulerConfig(spec, tz string) config.SchedulerConfig {
	return config.SchedulerConfig{CronSpec: spec, Timezone: tz}
}

func TestNewSchedulerServiceValidation(t *testing.T) {
	runner := &fakeRunner{}

	_, err := NewSchedulerService(SchedulerServiceOptions{
		Config: schedulerConfig("0 9 * * *", "UTC"),
	})
	assert.EqualError(t, err, "RunExecutor is required")

	_, err = NewSchedulerService(SchedulerServiceOptions{
		Runner: runner,
		Config: schedulerConfig("not a cron spec", "UTC"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron spec")

	_, err = NewSchedulerService(SchedulerServiceOptions{
		Runner: runner,
		Config: schedulerConfig("0 9 * * *", "Atlantis/Nowhere"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load timezone")

	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runner: runner,
		Config: schedulerConfig("@daily", "America/Chicago"),
		Logger: slog.Default(),
	})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestSchedulerServiceRunOnce(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"lock held elsewhere is quiet", core.ErrLockHeld},
		{"run failure is logged, not fatal", errors.New("session expired")},
		{"cancellation is quiet", context.Canceled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{err: tc.err}
			svc, err := NewSchedulerService(SchedulerServiceOptions{
				Runner: runner,
				Config: schedulerConfig("0 9 * * *", "UTC"),
				Logger: slog.Default(),
			})
			require.NoError(t, err)

			svc.runOnce(context.Background())
			assert.Equal(t, 1, runner.callCount())
		})
	}
}

func TestSchedulerServiceRunOnceSkipsWhenShuttingDown(t *testing.T) {
	runner := &fakeRunner{}
	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runner: runner,
		Config: schedulerConfig("0 9 * * *", "UTC"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.runOnce(ctx)
	assert.Zero(t, runner.callCount())
}

func TestSchedulerServiceRunGracefulShutdown(t *testing.T) {
	runner := &fakeRunner{}
	svc, err := NewSchedulerService(SchedulerServiceOptions{
		Runner: runner,
		Config: schedulerConfig("@every 1h", "UTC"),
		Logger: slog.Default(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a clean exit")
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
