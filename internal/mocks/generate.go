// Package mocks provides mock implementations for testing the jobtrawl run pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the core ports.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockStore := mocks.NewMockRecordStore(ctrl)
//	mockStore.EXPECT().Get(gomock.Any(), "boardfeed:123").Return(rec, nil)
package mocks

// Generate mock for the RecordStore port from internal/core.
// This creates MockRecordStore with methods for all RecordStore interface methods:
// Load, Get, Upsert, Query, SnapshotAndBackup, Flush, Close
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=record_store_mock.go github.com/jobtrawl/jobtrawl/internal/core RecordStore

// Generate mocks for the SearchProducer port and its RecordIterator stream.
// This creates MockSearchProducer (Platform, Login, Search, Close) and
// MockRecordIterator (Next, Close)
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=search_producer_mock.go github.com/jobtrawl/jobtrawl/internal/core SearchProducer,RecordIterator

// Generate mock for the ApplicationDriver port from internal/core.
// This creates MockApplicationDriver with the single Apply method
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=application_driver_mock.go github.com/jobtrawl/jobtrawl/internal/core ApplicationDriver

// Generate mock for the RunLocker port from internal/core.
// This creates MockRunLocker with methods Acquire, Release
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=run_locker_mock.go github.com/jobtrawl/jobtrawl/internal/core RunLocker

// Generate mock for the ReaperStore port from internal/core.
// This creates MockReaperStore with methods FailStaleApplying, DeleteOldRecords
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=reaper_store_mock.go github.com/jobtrawl/jobtrawl/internal/core ReaperStore
