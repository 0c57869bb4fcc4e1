package posting

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
)

// Store is the database/sql Gateway for sqlite3 and postgres.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	content *content.Store
	now     func() time.Time
}

var _ Gateway = (*Store)(nil)

// NewStore creates a posting job store
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{
		db:      conn,
		dialect: dialect,
		content: content.NewStore(conn, dialect),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

// CreateJob inserts a pending job. A content item may have only one job
// that is pending or running.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job.ContentID == "" || job.AccountID == "" || job.RunAt.IsZero() {
		return errors.NewInvalidRequestError("content_id, account_id, and run_at are required")
	}

	var active int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM posting_jobs
		WHERE content_id = ? AND status IN ('pending', 'running')
	`), job.ContentID).Scan(&active)
	if err != nil {
		return errors.Wrap(err, "failed to check active jobs")
	}
	if active > 0 {
		return errors.Mark(errors.Newf("content item %s already has an active posting job", job.ContentID), errors.ErrConflict)
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := s.now()
	job.Status = JobStatusPending
	job.RunAt = job.RunAt.UTC()
	job.LockedAt = nil
	job.CreatedAt, job.UpdatedAt = now, now

	query := `
		INSERT INTO posting_jobs (
			id, content_id, account_id, run_at, status,
			attempts, locked_at, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.q(query),
		job.ID,
		job.ContentID,
		job.AccountID,
		job.RunAt,
		string(job.Status),
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create posting job")
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM posting_jobs WHERE id = ?`
	job, err := scanJob(s.db.QueryRowContext(ctx, s.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("posting job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get posting job")
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status
func (s *Store) ListJobs(ctx context.Context, status *JobStatus, limit int) ([]Job, error) {
	var rows *sql.Rows
	var err error

	baseQuery := `SELECT ` + jobColumns + ` FROM posting_jobs`
	if status != nil {
		rows, err = s.db.QueryContext(ctx, s.q(baseQuery+` WHERE status = ? ORDER BY created_at DESC LIMIT ?`), string(*status), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, s.q(baseQuery+` ORDER BY created_at DESC LIMIT ?`), limit)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list posting jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "posting jobs")
}

// SelectEligibleJobs implements Gateway.
func (s *Store) SelectEligibleJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM posting_jobs
		WHERE status = 'pending'
		  AND run_at <= ?
		  AND (locked_at IS NULL OR locked_at < ?)
		ORDER BY run_at ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.q(query), now.UTC(), staleBefore.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to select eligible jobs")
	}
	defer rows.Close()

	return scanJobs(rows, "eligible jobs")
}

// ClaimJob implements Gateway.
func (s *Store) ClaimJob(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE posting_jobs
		SET status = 'running', locked_at = ?, updated_at = ?
		WHERE id = ?
		  AND status = 'pending'
		  AND (locked_at IS NULL OR locked_at < ?)
	`
	return s.execConditional(ctx, "claim job", query, now.UTC(), now.UTC(), id, staleBefore.UTC())
}

// FinalizeJob implements Gateway.
func (s *Store) FinalizeJob(ctx context.Context, id string, claimedAt time.Time, update JobUpdate) (bool, error) {
	query := `
		UPDATE posting_jobs
		SET status = ?,
		    attempts = ?,
		    run_at = ?,
		    last_error = COALESCE(?, last_error),
		    locked_at = NULL,
		    updated_at = ?
		WHERE id = ?
		  AND status = 'running'
		  AND locked_at = ?
	`
	var lastError sql.NullString
	if update.LastError != nil {
		lastError = sql.NullString{String: *update.LastError, Valid: true}
	}
	return s.execConditional(ctx, "finalize job", query,
		string(update.Status),
		update.Attempts,
		update.RunAt.UTC(),
		lastError,
		update.UpdatedAt.UTC(),
		id,
		claimedAt.UTC(),
	)
}

// RecoverStale implements Gateway.
func (s *Store) RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	query := `
		UPDATE posting_jobs
		SET status = 'pending', locked_at = NULL, updated_at = ?
		WHERE status = 'running' AND locked_at < ?
	`
	res, err := s.db.ExecContext(ctx, s.q(query), s.now(), staleBefore.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to recover stale jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}
	return n, nil
}

// GetContentItem implements Gateway.
func (s *Store) GetContentItem(ctx context.Context, id string) (*content.Item, error) {
	return s.content.GetItem(ctx, id)
}

// MarkContentPosted implements Gateway.
func (s *Store) MarkContentPosted(ctx context.Context, id string, postedAt time.Time, externalID string) (bool, error) {
	return s.content.MarkPosted(ctx, id, postedAt, externalID)
}

func (s *Store) execConditional(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return false, errors.Wrapf(err, "failed to %s", op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return n == 1, nil
}

func scanJobs(rows *sql.Rows, what string) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", what)
	}
	return jobs, nil
}
