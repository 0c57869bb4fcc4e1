package posting

import (
	"database/sql"

	"github.com/teranos/postpulse/db"
)

// jobColumns is the column list every job SELECT uses, in scan order.
const jobColumns = `id, content_id, account_id, run_at, status,
		attempts, locked_at, last_error, created_at, updated_at`

// jobScanArgs holds the nullable columns of a job row.
type jobScanArgs struct {
	LockedAt  sql.NullTime
	LastError sql.NullString
}

func jobScanTargets(job *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&job.ContentID,
		&job.AccountID,
		&job.RunAt,
		&job.Status,
		&job.Attempts,
		&args.LockedAt,
		&args.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	}
}

func (a *jobScanArgs) apply(job *Job) {
	job.LockedAt = db.TimePtr(a.LockedAt)
	job.LastError = a.LastError.String
	job.RunAt = job.RunAt.UTC()
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var args jobScanArgs
	if err := row.Scan(jobScanTargets(&job, &args)...); err != nil {
		return nil, err
	}
	args.apply(&job)
	return &job, nil
}
