// Package gormstore is the posting Gateway for MySQL, built on gorm.
//
// It issues the same conditional updates as the database/sql store. The
// DSN is opened with clientFoundRows so RowsAffected counts matched rows.
package gormstore

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/pulse/posting"
)

type jobRow struct {
	ID        string     `gorm:"primaryKey;column:id"`
	ContentID string     `gorm:"column:content_id"`
	AccountID string     `gorm:"column:account_id"`
	RunAt     time.Time  `gorm:"column:run_at"`
	Status    string     `gorm:"column:status"`
	Attempts  int        `gorm:"column:attempts"`
	LockedAt  *time.Time `gorm:"column:locked_at"`
	LastError *string    `gorm:"column:last_error"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (jobRow) TableName() string { return "posting_jobs" }

func (r jobRow) toJob() posting.Job {
	job := posting.Job{
		ID:        r.ID,
		ContentID: r.ContentID,
		AccountID: r.AccountID,
		RunAt:     r.RunAt.UTC(),
		Status:    posting.JobStatus(r.Status),
		Attempts:  r.Attempts,
		LockedAt:  r.LockedAt,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.LastError != nil {
		job.LastError = *r.LastError
	}
	return job
}

type itemRow struct {
	ID          string     `gorm:"primaryKey;column:id"`
	AccountID   string     `gorm:"column:account_id"`
	Body        string     `gorm:"column:body"`
	Category    *string    `gorm:"column:category"`
	Status      string     `gorm:"column:status"`
	ScheduledAt *time.Time `gorm:"column:scheduled_at"`
	PostedAt    *time.Time `gorm:"column:posted_at"`
	ExternalID  *string    `gorm:"column:external_id"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (itemRow) TableName() string { return "content_items" }

func (r itemRow) toItem() *content.Item {
	item := &content.Item{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Body:        r.Body,
		Status:      content.Status(r.Status),
		ScheduledAt: r.ScheduledAt,
		PostedAt:    r.PostedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.Category != nil {
		item.Category = *r.Category
	}
	if r.ExternalID != nil {
		item.ExternalID = *r.ExternalID
	}
	return item
}

// Store implements posting.Gateway over gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ posting.Gateway = (*Store)(nil)

// Open connects to MySQL. Statements run without gorm's implicit
// transaction; each conditional update is a single statement.
func Open(dsn string, log *zap.SugaredLogger) (*Store, error) {
	normalized, err := db.MySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(mysql.Open(normalized), Config(log))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to MySQL")
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sql.DB error")
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return New(gdb), nil
}

// Config is the gorm configuration the store expects.
func Config(log *zap.SugaredLogger) *gorm.Config {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if log != nil {
		cfg.Logger = gormlogger.New(printfLogger{log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}
	return cfg
}

// printfLogger routes gorm's printf-style output into zap.
type printfLogger struct {
	log *zap.SugaredLogger
}

func (p printfLogger) Printf(format string, args ...interface{}) {
	p.log.Warnf(format, args...)
}

// New wraps an open gorm handle.
func New(gdb *gorm.DB) *Store {
	return &Store{
		db:  gdb,
		now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "sql.DB error")
	}
	return sqlDB.Close()
}

// SelectEligibleJobs implements posting.Gateway.
func (s *Store) SelectEligibleJobs(ctx context.Context, now, staleBefore time.Time, limit int) ([]posting.Job, error) {
	var rows []jobRow
	err := s.db.WithContext(ctx).
		Where("status = ? AND run_at <= ? AND (locked_at IS NULL OR locked_at < ?)",
			string(posting.JobStatusPending), now.UTC(), staleBefore.UTC()).
		Order("run_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to select eligible jobs")
	}

	jobs := make([]posting.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, r.toJob())
	}
	return jobs, nil
}

// ClaimJob implements posting.Gateway.
func (s *Store) ClaimJob(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&jobRow{}).
		Where("id = ? AND status = ? AND (locked_at IS NULL OR locked_at < ?)",
			id, string(posting.JobStatusPending), staleBefore.UTC()).
		Updates(map[string]interface{}{
			"status":     string(posting.JobStatusRunning),
			"locked_at":  now.UTC(),
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to claim job")
	}
	return res.RowsAffected == 1, nil
}

// GetJob implements posting.Gateway.
func (s *Store) GetJob(ctx context.Context, id string) (*posting.Job, error) {
	var row jobRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("posting job not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get posting job")
	}
	job := row.toJob()
	return &job, nil
}

// FinalizeJob implements posting.Gateway. A nil LastError leaves the
// column out of the SET list.
func (s *Store) FinalizeJob(ctx context.Context, id string, claimedAt time.Time, update posting.JobUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":     string(update.Status),
		"attempts":   update.Attempts,
		"run_at":     update.RunAt.UTC(),
		"locked_at":  nil,
		"updated_at": update.UpdatedAt.UTC(),
	}
	if update.LastError != nil {
		values["last_error"] = *update.LastError
	}

	res := s.db.WithContext(ctx).Model(&jobRow{}).
		Where("id = ? AND status = ? AND locked_at = ?", id, string(posting.JobStatusRunning), claimedAt.UTC()).
		Updates(values)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to finalize job")
	}
	return res.RowsAffected == 1, nil
}

// GetContentItem implements posting.Gateway.
func (s *Store) GetContentItem(ctx context.Context, id string) (*content.Item, error) {
	var row itemRow
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError("content item not found: %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get content item")
	}
	return row.toItem(), nil
}

// MarkContentPosted implements posting.Gateway.
func (s *Store) MarkContentPosted(ctx context.Context, id string, postedAt time.Time, externalID string) (bool, error) {
	var ext interface{}
	if externalID != "" {
		ext = externalID
	}
	res := s.db.WithContext(ctx).Model(&itemRow{}).
		Where("id = ? AND status <> ?", id, string(content.StatusPosted)).
		Updates(map[string]interface{}{
			"status":      string(content.StatusPosted),
			"posted_at":   postedAt.UTC(),
			"external_id": ext,
			"updated_at":  postedAt.UTC(),
		})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "failed to mark content item %s posted", id)
	}
	return res.RowsAffected == 1, nil
}

// RecoverStale implements posting.Gateway.
func (s *Store) RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&jobRow{}).
		Where("status = ? AND locked_at < ?", string(posting.JobStatusRunning), staleBefore.UTC()).
		Updates(map[string]interface{}{
			"status":     string(posting.JobStatusPending),
			"locked_at":  nil,
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to recover stale jobs")
	}
	return res.RowsAffected, nil
}
