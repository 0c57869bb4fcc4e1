// Package analytics collects dated engagement snapshots for delivered
// content.
//
// A run selects items posted inside a trailing window (by default 72h to
// 48h before now), fetches their metrics and upserts one snapshot per
// (content_id, snapshot_date). Repeated runs on the same UTC day overwrite
// that day's row.
package analytics

import (
	"context"
	"time"

	"github.com/teranos/postpulse/content"
)

// SnapshotDateLayout formats snapshot_date.
const SnapshotDateLayout = "2006-01-02"

// Metrics are the engagement counters of one post.
type Metrics struct {
	Impressions int64 `json:"impressions" bson:"impressions"`
	Likes       int64 `json:"likes" bson:"likes"`
	Reposts     int64 `json:"reposts" bson:"reposts"`
	Replies     int64 `json:"replies" bson:"replies"`
	Quotes      int64 `json:"quotes" bson:"quotes"`
	Bookmarks   int64 `json:"bookmarks" bson:"bookmarks"`
}

// Snapshot is one day's metrics for a content item.
type Snapshot struct {
	ContentID    string    `json:"contentId"`
	AccountID    string    `json:"accountId"`
	SnapshotDate string    `json:"snapshotDate"`
	Metrics      Metrics   `json:"metrics"`
	FetchedAt    time.Time `json:"fetchedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MetricsFetcher reads current metrics for a posted item.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, item content.Item) (Metrics, error)
}

// StubFetcher reports zero for every counter.
type StubFetcher struct{}

// FetchMetrics implements MetricsFetcher.
func (StubFetcher) FetchMetrics(ctx context.Context, item content.Item) (Metrics, error) {
	return Metrics{}, nil
}

// Sink stores snapshots. UpsertSnapshot must replace an existing row with
// the same (ContentID, SnapshotDate).
type Sink interface {
	UpsertSnapshot(ctx context.Context, snap Snapshot) error
}

// Source lists posted content inside a window. *content.Store satisfies it.
type Source interface {
	ListPostedBetween(ctx context.Context, start, end time.Time) ([]content.Item, error)
}

// Item statuses in a Report.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ItemResult reports one item of a run.
type ItemResult struct {
	ContentID string `json:"contentId"`
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
}

// Window is the inclusive posted_at range of a run.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report summarizes a run. Processed counts stored snapshots.
type Report struct {
	Processed int          `json:"processed"`
	Window    Window       `json:"window"`
	Results   []ItemResult `json:"results"`
}
