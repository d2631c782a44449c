package filestore

import (
	"context"
	"sort"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// staleApplyingError is recorded on records failed by the reaper so the
// history shows the interruption rather than a driver error.
const staleApplyingError = "apply interrupted: no completion recorded"

// FailStaleApplying marks applying records whose last action is older than
// maxAge as failed, counting one attempt each. Oldest records go first.
// Processes one batch per call and writes the document through on change.
func (s *Store) FailStaleApplying(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	cutoff := now.Add(-maxAge)
	stale := s.collectLocked(model.StateApplying, cutoff, batchSize)

	var count int64
	for _, rec := range stale {
		if err := rec.MarkFailed(now, staleApplyingError); err != nil {
			return count, err
		}
		count++
	}
	if count == 0 {
		return 0, ctx.Err()
	}

	if err := s.writeLocked(); err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("stale applying records failed", "count", count, "max_age", maxAge)
	}
	return count, nil
}

// DeleteOldRecords removes records in the given state whose last activity is
// older than MaxAge. Processes one batch per call; callers loop until zero.
func (s *Store) DeleteOldRecords(ctx context.Context, params core.DeleteOldRecordsParams) (int64, error) {
	if !params.State.Valid() {
		return 0, apperr.Validation("a valid state is required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return 0, err
	}

	cutoff := s.clock.Now().Add(-params.MaxAge)
	old := s.collectLocked(params.State, cutoff, batchSize)

	for _, rec := range old {
		delete(s.snap.Records, rec.ID)
	}
	count := int64(len(old))
	if count == 0 {
		return 0, ctx.Err()
	}

	if err := s.writeLocked(); err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("old records deleted", "state", params.State, "count", count, "max_age", params.MaxAge)
	}
	return count, nil
}

// collectLocked gathers up to limit records in the given state whose last
// activity predates cutoff, oldest activity first.
func (s *Store) collectLocked(state model.LifecycleState, cutoff time.Time, limit int) []*model.JobRecord {
	var matched []*model.JobRecord
	for _, rec := range s.snap.Records {
		if rec.State != state {
			continue
		}
		if lastActivity(rec).Before(cutoff) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return lastActivity(matched[i]).Before(lastActivity(matched[j]))
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// lastActivity returns the most recent thing that happened to a record: the
// last state change when there was one, the last sighting otherwise.
func lastActivity(rec *model.JobRecord) time.Time {
	if rec.LastActionAt != nil {
		return *rec.LastActionAt
	}
	return rec.LastSeenAt
}
