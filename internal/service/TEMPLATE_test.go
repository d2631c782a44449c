// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExamplePort, etc.) that don't exist.
// Use this as a reference when writing tests for services.
//
//go:build ignore

package service

// TEMPLATE_test.go - Service Testing Pattern Examples
//
// This file demonstrates the standard testing patterns for services. Three
// layers of test exist side by side:
//
//   - behavior tests with counting fakes (run_test.go style): assert WHAT
//     happened without caring about ordering
//   - contract tests with gomock (contract_test.go style): pin call ORDER
//     and exact parameters on the ports
//   - table-driven edge tests for pure helpers
//
// Time never comes from the wall clock; every test pins a core.FrozenClock.

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
	"github.com/jobtrawl/jobtrawl/internal/mocks"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Constructor Validation
// ═══════════════════════════════════════════════════════════════════════════

func TestNewExampleServiceRequiresStore(t *testing.T) {
	_, err := NewExampleService(ExampleServiceOptions{
		Port: &fakeExamplePort{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RecordStore is required")
}

func TestMustNewExampleServicePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNewExampleService(ExampleServiceOptions{})
	})
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Frozen Time
// ═══════════════════════════════════════════════════════════════════════════

// Pin the clock once per test; advance it explicitly when the behavior under
// test depends on elapsed time.
func newTestClock() *core.FrozenClock {
	return core.NewFrozenClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Counting Fakes for Behavior
// ═══════════════════════════════════════════════════════════════════════════

// A fake implements the port with just enough state to observe outcomes.
// Fakes live in the test file that owns them and are shared within the
// package, never exported.
type fakeExamplePort struct {
	processed []string
	failWith  error
}

func (f *fakeExamplePort) Process(_ context.Context, rec *model.JobRecord) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.processed = append(f.processed, rec.ID)
	return nil
}

func TestExecuteContainsPermanentFailures(t *testing.T) {
	clock := newTestClock()
	store := newFakeRecordStore(t, clock) // shared fake from run_test.go
	port := &fakeExamplePort{failWith: apperr.ApplyPermanent("posting removed")}

	svc := MustNewExampleService(ExampleServiceOptions{
		Store: store,
		Port:  port,
		Clock: clock,
	})

	// A permanent failure skips the record but the pass still succeeds.
	require.NoError(t, svc.Execute(context.Background()))
	rec := store.mustGet(t, "boardfeed:p-1")
	assert.Equal(t, model.StateSkipped, rec.State)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: gomock Contract Tests (ordering and exact parameters)
// ═══════════════════════════════════════════════════════════════════════════

func TestExampleSessionContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecordStore(ctrl)
	port := mocks.NewMockExamplePort(ctrl)

	svc := MustNewExampleService(ExampleServiceOptions{
		Store: store,
		Port:  port,
		Clock: newTestClock(),
	})

	// InOrder pins the session shape: query before process, flush last.
	// Use gomock.Any() for contexts and exact values for everything else.
	gomock.InOrder(
		store.EXPECT().Query(gomock.Any(), model.RecordQuery{
			States: []model.LifecycleState{model.StateQueued},
			Limit:  10,
		}).Return(nil, nil),
		store.EXPECT().Flush(gomock.Any()).Return(nil),
	)

	require.NoError(t, svc.Execute(context.Background()))
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: Error Classification Paths
// ═══════════════════════════════════════════════════════════════════════════

func TestProcessOneClassifiesErrors(t *testing.T) {
	tests := []struct {
		name      string
		portErr   error
		wantState model.LifecycleState
	}{
		{name: "success applies", portErr: nil, wantState: model.StateApplied},
		{name: "permanent skips", portErr: apperr.ApplyPermanent("gone"), wantState: model.StateSkipped},
		{name: "recoverable fails", portErr: apperr.ApplyRecoverable("timeout"), wantState: model.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newTestClock()
			store := newFakeRecordStore(t, clock)
			svc := MustNewExampleService(ExampleServiceOptions{
				Store: store,
				Port:  &fakeExamplePort{failWith: tt.portErr},
				Clock: clock,
			})

			require.NoError(t, svc.Execute(context.Background()))
			assert.Equal(t, tt.wantState, store.mustGet(t, "boardfeed:p-1").State)
		})
	}
}
