// Package pgstore implements the durable record store on PostgreSQL for
// deployments that outgrow the single-file store. Writes are transactional;
// the backup table keeps row snapshots for point-in-time recovery.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobtrawl/jobtrawl/internal/apperr"
	"github.com/jobtrawl/jobtrawl/internal/core"
	"github.com/jobtrawl/jobtrawl/internal/data/database"
	"github.com/jobtrawl/jobtrawl/internal/data/pgxutil"
	"github.com/jobtrawl/jobtrawl/internal/domain/model"
)

// StoreOptions groups dependencies for Store.
type StoreOptions struct {
	DB         *sql.DB    // Required: open database handle (lifecycle owned by the caller)
	Platform   string     // Required: platform tag this store serves
	Account    string     // Optional: account identifier recorded on snapshots
	MaxBackups int        // Optional: backup batches kept (default 5)
	Clock      core.Clock // Optional: time source (defaults to system clock)
	Logger     *slog.Logger
}

// DefaultMaxBackups is the number of backup batches kept when none is configured.
const DefaultMaxBackups = 5

// Store provides record persistence backed by the jobtrawl_records table.
type Store struct {
	db         *sql.DB
	platform   string
	account    string
	maxBackups int
	clock      core.Clock
	logger     *slog.Logger
}

// NewStore constructs a PostgreSQL-backed record store.
func NewStore(opts StoreOptions) (*Store, error) {
	if opts.DB == nil {
		return nil, errors.New("database handle is required")
	}
	if opts.Platform == "" {
		return nil, errors.New("platform is required")
	}

	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	clock := opts.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "pgstore", "platform", opts.Platform)
	}

	return &Store{
		db:         opts.DB,
		platform:   opts.Platform,
		account:    opts.Account,
		maxBackups: maxBackups,
		clock:      clock,
		logger:     logger,
	}, nil
}

// recordColumns lists every column of jobtrawl_records in scan order.
var recordColumns = []string{
	"id",
	"platform",
	"posting_id",
	"title",
	"company",
	"location",
	"apply_method",
	"apply_url",
	"posted_ago",
	"applicant_count",
	"description",
	"search_meta",
	"state",
	"attempts",
	"last_error",
	"resume_version",
	"discovered_at",
	"last_seen_at",
	"last_action_at",
	"applied_at",
}

var recordColumnList = strings.Join(recordColumns, ", ")

// Load assembles the full snapshot for this store's platform.
func (s *Store) Load(ctx context.Context) (*model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumnList+`
		FROM jobtrawl_records
		WHERE platform = $1
	`, s.platform)
	if err != nil {
		return nil, apperr.MapDBError(fmt.Errorf("load records: %w", err))
	}
	defer rows.Close()

	snap := model.NewSnapshot(s.platform, s.account)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeStoreCorrupt, "scan record row")
		}
		snap.Records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.MapDBError(fmt.Errorf("load records: %w", err))
	}

	var lastBackup sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		SELECT max(created_at) FROM jobtrawl_record_backups WHERE platform = $1
	`, s.platform).Scan(&lastBackup)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.MapDBError(fmt.Errorf("load last backup time: %w", err))
	}
	if lastBackup.Valid {
		t := lastBackup.Time.UTC()
		snap.LastBackupAt = &t
	}
	snap.UpdatedAt = s.clock.Now()

	if s.logger != nil {
		s.logger.Info("snapshot loaded", "records", len(snap.Records))
	}
	return snap, nil
}

// Get retrieves one record by ID.
func (s *Store) Get(ctx context.Context, id string) (*model.JobRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumnList+`
		FROM jobtrawl_records
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("record %s not found", id)
		}
		return nil, apperr.MapDBError(fmt.Errorf("get record %s: %w", id, err))
	}
	return rec, nil
}

// Upsert inserts or replaces a record by ID.
func (s *Store) Upsert(ctx context.Context, rec *model.JobRecord) error {
	if rec == nil || rec.ID == "" {
		return apperr.Validation("record with an id is required")
	}

	var searchMeta []byte
	if rec.SearchMeta != nil {
		var err error
		searchMeta, err = json.Marshal(rec.SearchMeta)
		if err != nil {
			return fmt.Errorf("marshal search meta: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobtrawl_records (
			id, platform, posting_id, title, company, location,
			apply_method, apply_url, posted_ago, applicant_count, description,
			search_meta, state, attempts, last_error, resume_version,
			discovered_at, last_seen_at, last_action_at, applied_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			company = EXCLUDED.company,
			location = EXCLUDED.location,
			apply_method = EXCLUDED.apply_method,
			apply_url = EXCLUDED.apply_url,
			posted_ago = EXCLUDED.posted_ago,
			applicant_count = EXCLUDED.applicant_count,
			description = EXCLUDED.description,
			search_meta = EXCLUDED.search_meta,
			state = EXCLUDED.state,
			attempts = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			resume_version = EXCLUDED.resume_version,
			discovered_at = EXCLUDED.discovered_at,
			last_seen_at = EXCLUDED.last_seen_at,
			last_action_at = EXCLUDED.last_action_at,
			applied_at = EXCLUDED.applied_at
	`,
		rec.ID, rec.Platform, rec.PostingID, rec.Title, rec.Company, rec.Location,
		rec.ApplyMethod, rec.ApplyURL, rec.PostedAgo, rec.ApplicantCount, rec.Description,
		searchMeta, rec.State, rec.Attempts, rec.LastError, rec.ResumeVersion,
		rec.DiscoveredAt.UTC(), rec.LastSeenAt.UTC(), nullableTime(rec.LastActionAt), nullableTime(rec.AppliedAt),
	)
	if err != nil {
		return apperr.MapDBError(fmt.Errorf("upsert record %s: %w", rec.ID, err))
	}
	return nil
}

// Query lists records matching the filters, ordered by DiscoveredAt then ID.
// An empty q.Platform spans every platform in the table, which is what the
// applied-elsewhere check relies on; run-scoped callers pass their platform.
func (s *Store) Query(ctx context.Context, q model.RecordQuery) ([]*model.JobRecord, error) {
	opts := []database.ListQueryOption{
		database.WithColumns(recordColumns...),
		database.WithOrderBy("discovered_at", "ASC"),
		database.WithOrderBy("id", "ASC"),
		database.WithLimit(q.Limit),
	}
	if q.Platform != "" {
		opts = append(opts, database.WithCondition(
			database.WhereCond("platform", database.Equal, q.Platform)))
	}
	if len(q.States) > 0 {
		states := make([]string, len(q.States))
		for i, st := range q.States {
			states[i] = string(st)
		}
		opts = append(opts, database.WithCondition(
			database.WhereCond("state", database.Any, states)))
	}
	if q.DiscoveredSince != nil {
		opts = append(opts, database.WithCondition(
			database.WhereCond("discovered_at", database.GreaterThanOrEqual, q.DiscoveredSince.UTC())))
	}
	if q.DiscoveredUntil != nil {
		opts = append(opts, database.WithCondition(
			database.WhereCond("discovered_at", database.LessThanOrEqual, q.DiscoveredUntil.UTC())))
	}

	query, args := database.BuildListQuery(database.NewListQueryOptions("jobtrawl_records", opts...))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.MapDBError(fmt.Errorf("query records: %w", err))
	}
	defer rows.Close()

	var out []*model.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Wrapf(err, apperr.CodeStoreCorrupt, "scan record row")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.MapDBError(fmt.Errorf("query records: %w", err))
	}
	return out, nil
}

// SnapshotAndBackup copies the platform's current rows into the backup table
// as one batch, then prunes batches beyond the configured maximum. Both
// steps run in one transaction so a failed prune never strands a half batch.
func (s *Store) SnapshotAndBackup(ctx context.Context) error {
	batchID := uuid.NewString()
	now := s.clock.Now().UTC()

	var count int64
	err := pgxutil.WithSQLTx(ctx, s.db, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO jobtrawl_record_backups (backup_id, platform, created_at, record)
			SELECT $1, platform, $2, to_jsonb(r)
			FROM jobtrawl_records r
			WHERE platform = $3
		`, batchID, now, s.platform)
		if err != nil {
			return fmt.Errorf("write backup batch: %w", err)
		}
		count, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("backup rows affected: %w", err)
		}
		return s.pruneBackups(ctx, tx)
	}})
	if err != nil {
		return apperr.MapDBError(err)
	}

	if s.logger != nil {
		s.logger.Info("backup batch written", "backup_id", batchID, "records", count)
	}
	return nil
}

// pruneBackups deletes backup batches beyond the newest maxBackups.
func (s *Store) pruneBackups(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM jobtrawl_record_backups
		WHERE platform = $1
		  AND backup_id NOT IN (
			SELECT backup_id FROM (
				SELECT backup_id, max(created_at) AS created_at
				FROM jobtrawl_record_backups
				WHERE platform = $1
				GROUP BY backup_id
				ORDER BY created_at DESC
				LIMIT $2
			) keep
		  )
	`, s.platform, s.maxBackups)
	if err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}
	return nil
}

// Flush is a no-op for the SQL-backed store; every write is already durable.
func (s *Store) Flush(_ context.Context) error {
	return nil
}

// Close releases nothing; the database handle is owned by the caller.
func (s *Store) Close() error {
	return nil
}

type recordRowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner recordRowScanner) (*model.JobRecord, error) {
	var (
		rec          model.JobRecord
		searchMeta   []byte
		lastError    sql.NullString
		lastActionAt sql.NullTime
		appliedAt    sql.NullTime
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Platform,
		&rec.PostingID,
		&rec.Title,
		&rec.Company,
		&rec.Location,
		&rec.ApplyMethod,
		&rec.ApplyURL,
		&rec.PostedAgo,
		&rec.ApplicantCount,
		&rec.Description,
		&searchMeta,
		&rec.State,
		&rec.Attempts,
		&lastError,
		&rec.ResumeVersion,
		&rec.DiscoveredAt,
		&rec.LastSeenAt,
		&lastActionAt,
		&appliedAt,
	); err != nil {
		return nil, err
	}

	if len(searchMeta) > 0 {
		var meta model.SearchMeta
		if err := json.Unmarshal(searchMeta, &meta); err != nil {
			return nil, fmt.Errorf("decode search meta for %s: %w", rec.ID, err)
		}
		rec.SearchMeta = &meta
	}
	if lastError.Valid {
		v := lastError.String
		rec.LastError = &v
	}
	if lastActionAt.Valid {
		t := lastActionAt.Time.UTC()
		rec.LastActionAt = &t
	}
	if appliedAt.Valid {
		t := appliedAt.Time.UTC()
		rec.AppliedAt = &t
	}
	rec.DiscoveredAt = rec.DiscoveredAt.UTC()
	rec.LastSeenAt = rec.LastSeenAt.UTC()
	return &rec, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
