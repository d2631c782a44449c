package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// staleApplyingError is recorded on records failed by the reaper so the
// history shows the interruption rather than a driver error.
const staleApplyingError = "apply interrupted: no completion recorded"

// FailStaleApplying marks applying records whose last action is older than
// maxAge as failed, counting one attempt each. Locked rows are skipped so a
// live run is never failed underneath itself. Processes one batch per call.
func (s *Store) FailStaleApplying(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	now := s.clock.Now().UTC()
	cutoff := now.Add(-maxAge)

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobtrawl_records
		SET state = $1,
		    attempts = attempts + 1,
		    last_error = $2,
		    last_action_at = $3
		WHERE id IN (
			SELECT id
			FROM jobtrawl_records
			WHERE platform = $4
			  AND state = $5
			  AND COALESCE(last_action_at, last_seen_at) < $6
			ORDER BY last_action_at ASC NULLS FIRST
			LIMIT $7
			FOR UPDATE SKIP LOCKED
		)
	`, model.StateFailed, staleApplyingError, now, s.platform, model.StateApplying, cutoff, batchSize)
	if err != nil {
		return 0, apperr.MapDBError(fmt.Errorf("fail stale applying: %w", err))
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale applying rows affected: %w", err)
	}
	if count > 0 && s.logger != nil {
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
	cutoff := s.clock.Now().UTC().Add(-params.MaxAge)

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobtrawl_records
		WHERE id IN (
			SELECT id
			FROM jobtrawl_records
			WHERE platform = $1
			  AND state = $2
			  AND COALESCE(last_action_at, last_seen_at) < $3
			ORDER BY COALESCE(last_action_at, last_seen_at) ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
	`, s.platform, params.State, cutoff, batchSize)
	if err != nil {
		return 0, apperr.MapDBError(fmt.Errorf("delete old %s records: %w", params.State, err))
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old records rows affected: %w", err)
	}
	if count > 0 && s.logger != nil {
		s.logger.Info("old records deleted", "state", params.State, "count", count, "max_age", params.MaxAge)
	}
	return count, nil
}
