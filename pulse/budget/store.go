// Package budget caps how many posts leave the process per time window.
// The in-memory Limiter is seeded from the database so separate CLI
// invocations share one budget.
package budget

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
)

// Store reads delivered-post history from content_items.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewStore creates a new budget store
func NewStore(conn *sql.DB, dialect db.Dialect) *Store {
	return &Store{db: conn, dialect: dialect}
}

// PostedSince returns posted_at of every item delivered at or after since,
// oldest first.
func (s *Store) PostedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	query := `
		SELECT posted_at FROM content_items
		WHERE status = 'posted' AND posted_at >= ?
		ORDER BY posted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query posted history")
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, errors.Wrap(err, "failed to scan posted_at")
		}
		times = append(times, t.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating posted history")
	}
	return times, nil
}

// NewSeededLimiter builds a Limiter for max posts per window and seeds it
// with the posts already delivered inside the window.
func NewSeededLimiter(ctx context.Context, store *Store, max int, window time.Duration) (*Limiter, error) {
	limiter := NewLimiter(max, window)
	if max <= 0 || store == nil {
		return limiter, nil
	}

	times, err := store.PostedSince(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	limiter.Seed(times)
	return limiter, nil
}
