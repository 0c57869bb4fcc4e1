package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/logger"
)

// Config bounds the window relative to now.
type Config struct {
	WindowStart time.Duration // how far back the window opens (72h)
	WindowEnd   time.Duration // how far back the window closes (48h)
}

// DefaultConfig returns the 72h..48h window.
func DefaultConfig() Config {
	return Config{WindowStart: 72 * time.Hour, WindowEnd: 48 * time.Hour}
}

// Collector runs the snapshot loop.
type Collector struct {
	source  Source
	fetcher MetricsFetcher
	sink    Sink
	cfg     Config
	log     *zap.SugaredLogger
	now     func() time.Time
}

// NewCollector creates a collector. A nil fetcher uses StubFetcher.
func NewCollector(source Source, fetcher MetricsFetcher, sink Sink, cfg Config, log *zap.SugaredLogger) *Collector {
	if fetcher == nil {
		fetcher = StubFetcher{}
	}
	if log == nil {
		log = logger.ComponentLogger("analytics")
	}
	return &Collector{
		source:  source,
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		log:     log,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetClock overrides the time source (tests).
func (c *Collector) SetClock(now func() time.Time) {
	c.now = now
}

// Run fetches and stores one snapshot per item in the window. A failure to
// list the window aborts; per-item failures are reported and skipped.
func (c *Collector) Run(ctx context.Context) (*Report, error) {
	now := c.now()
	window := Window{Start: now.Add(-c.cfg.WindowStart), End: now.Add(-c.cfg.WindowEnd)}
	snapshotDate := now.UTC().Format(SnapshotDateLayout)

	items, err := c.source.ListPostedBetween(ctx, window.Start, window.End)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load posted content")
	}

	report := &Report{Window: window, Results: make([]ItemResult, 0, len(items))}
	for _, item := range items {
		log := c.log.With(logger.FieldContentID, item.ID)

		metrics, err := c.fetcher.FetchMetrics(ctx, item)
		if err != nil {
			log.Warnw("Failed to fetch metrics", logger.FieldError, err)
			report.Results = append(report.Results, ItemResult{ContentID: item.ID, Status: StatusFailed, Detail: err.Error()})
			continue
		}

		snap := Snapshot{
			ContentID:    item.ID,
			AccountID:    item.AccountID,
			SnapshotDate: snapshotDate,
			Metrics:      metrics,
			FetchedAt:    now,
			UpdatedAt:    now,
		}
		if err := c.sink.UpsertSnapshot(ctx, snap); err != nil {
			log.Errorw("Failed to store snapshot", logger.FieldError, err)
			report.Results = append(report.Results, ItemResult{ContentID: item.ID, Status: StatusFailed, Detail: err.Error()})
			continue
		}

		report.Processed++
		report.Results = append(report.Results, ItemResult{ContentID: item.ID, Status: StatusSuccess})
	}

	c.log.Infow("Analytics run complete",
		"processed", report.Processed,
		logger.FieldCount, len(items),
		"window_start", window.Start,
		"window_end", window.End,
	)
	return report, nil
}
