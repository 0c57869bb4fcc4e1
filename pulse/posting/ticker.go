package posting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/sym"
)

// ReportBroadcaster receives every report the ticker produces.
// Defined here so the server can subscribe without an import cycle.
type ReportBroadcaster interface {
	BroadcastRunReport(report *Report)
}

// Invoker is the part of Runner the ticker drives.
type Invoker interface {
	Run(ctx context.Context, opts Options) (*Report, error)
}

// Ticker triggers a scheduler invocation on a fixed interval. It is the
// in-process time source for serve mode; HTTP and CLI triggers may fire
// concurrently with it.
type Ticker struct {
	invoker     Invoker
	opts        Options
	broadcaster ReportBroadcaster
	interval    time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	pulseLog    *zap.SugaredLogger
	mu          sync.Mutex
	lastTickAt  time.Time
	ticks       int64
	lastReport  *Report
}

// TickerConfig contains configuration for the posting ticker
type TickerConfig struct {
	Interval time.Duration
	Options  Options
}

// DefaultTickerConfig returns one invocation per minute with default options.
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval: time.Minute,
		Options:  DefaultOptions(),
	}
}

// NewTicker creates a ticker bound to ctx. broadcaster may be nil.
func NewTicker(ctx context.Context, invoker Invoker, broadcaster ReportBroadcaster, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if log == nil {
		log = logger.ComponentLogger("posting.ticker")
	}
	tickerCtx, cancel := context.WithCancel(ctx)

	return &Ticker{
		invoker:     invoker,
		opts:        cfg.Options,
		broadcaster: broadcaster,
		interval:    cfg.Interval,
		ctx:         tickerCtx,
		cancel:      cancel,
		pulseLog:    logger.AddPulseSymbol(log),
	}
}

// Start begins the ticker loop
func (t *Ticker) Start() {
	t.wg.Add(1)
	go t.run()
	t.pulseLog.Infow("Posting ticker started", "interval", t.interval)
}

// Stop cancels the loop and waits for an in-flight invocation to return.
func (t *Ticker) Stop() {
	t.cancel()
	t.wg.Wait()
	t.pulseLog.Infow("Posting ticker stopped")
}

// LastReport returns the most recent successful report, or nil.
func (t *Ticker) LastReport() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastReport
}

func (t *Ticker) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case tickTime := <-ticker.C:
			t.mu.Lock()
			t.lastTickAt = tickTime
			t.ticks++
			tick := t.ticks
			t.mu.Unlock()

			t.tick(tick)
		}
	}
}

// tick runs one invocation. The invocation itself is not cancelled by
// Stop mid-batch: claims left behind are handled by stale recovery.
func (t *Ticker) tick(n int64) {
	report, err := t.invoker.Run(context.WithoutCancel(t.ctx), t.opts)
	if err != nil {
		t.pulseLog.Warnw("Posting tick error", logger.FieldError, err, "tick", n)
		return
	}

	t.mu.Lock()
	t.lastReport = report
	t.mu.Unlock()

	if report.ProcessedCount > 0 {
		t.pulseLog.Infow(fmt.Sprintf("%sposting tick", pulseIndicator(report.ProcessedCount)),
			"tick", n,
			"processed", report.ProcessedCount,
		)
	}
	if t.broadcaster != nil {
		t.broadcaster.BroadcastRunReport(report)
	}
}

// pulseIndicator renders one pulse symbol per claimed job, capped at 20.
func pulseIndicator(processed int) string {
	if processed <= 0 {
		return ""
	}
	if processed > 20 {
		processed = 20
	}
	return strings.Repeat(sym.Pulse+" ", processed)
}
