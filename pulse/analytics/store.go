package analytics

import (
	"context"
	"database/sql"

	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
)

// Store is the SQL snapshot sink.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

var _ Sink = (*Store)(nil)

// NewStore creates a snapshot store
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

const snapshotColumns = `content_id, account_id, snapshot_date,
		impressions, likes, reposts, replies, quotes, bookmarks,
		fetched_at, updated_at`

// UpsertSnapshot inserts or replaces the snapshot for its content and date.
func (s *Store) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	query := `INSERT INTO analytics_snapshots (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)` + s.upsertClause()

	m := snap.Metrics
	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		snap.ContentID,
		snap.AccountID,
		snap.SnapshotDate,
		m.Impressions,
		m.Likes,
		m.Reposts,
		m.Replies,
		m.Quotes,
		m.Bookmarks,
		snap.FetchedAt.UTC(),
		snap.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to upsert snapshot for %s on %s", snap.ContentID, snap.SnapshotDate)
	}
	return nil
}

func (s *Store) upsertClause() string {
	if s.dialect == db.MySQL {
		return `
		ON DUPLICATE KEY UPDATE
			account_id = VALUES(account_id),
			impressions = VALUES(impressions),
			likes = VALUES(likes),
			reposts = VALUES(reposts),
			replies = VALUES(replies),
			quotes = VALUES(quotes),
			bookmarks = VALUES(bookmarks),
			fetched_at = VALUES(fetched_at),
			updated_at = VALUES(updated_at)`
	}
	return `
		ON CONFLICT (content_id, snapshot_date) DO UPDATE SET
			account_id = excluded.account_id,
			impressions = excluded.impressions,
			likes = excluded.likes,
			reposts = excluded.reposts,
			replies = excluded.replies,
			quotes = excluded.quotes,
			bookmarks = excluded.bookmarks,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at`
}

// ListSnapshots returns every snapshot of a content item, oldest date first.
func (s *Store) ListSnapshots(ctx context.Context, contentID string) ([]Snapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM analytics_snapshots
		WHERE content_id = ?
		ORDER BY snapshot_date ASC`

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), contentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query snapshots")
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		m := &snap.Metrics
		if err := rows.Scan(
			&snap.ContentID, &snap.AccountID, &snap.SnapshotDate,
			&m.Impressions, &m.Likes, &m.Reposts, &m.Replies, &m.Quotes, &m.Bookmarks,
			&snap.FetchedAt, &snap.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan snapshot")
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating snapshots")
	}
	return snaps, nil
}
