package commands

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/postpulse/ai/openrouter"
	"github.com/teranos/postpulse/am"
	"github.com/teranos/postpulse/content"
	"github.com/teranos/postpulse/db"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/generation"
	"github.com/teranos/postpulse/internal/util"
	"github.com/teranos/postpulse/logger"
	"github.com/teranos/postpulse/outbound"
	"github.com/teranos/postpulse/outbound/atproto"
	"github.com/teranos/postpulse/outbound/stub"
	"github.com/teranos/postpulse/pulse/analytics"
	"github.com/teranos/postpulse/pulse/analytics/mongosink"
	"github.com/teranos/postpulse/pulse/budget"
	"github.com/teranos/postpulse/pulse/posting"
	"github.com/teranos/postpulse/pulse/posting/gormstore"
	"github.com/teranos/postpulse/pulse/posting/notify"
)

// app holds the handles a command builds its services from. Everything is
// opened once here and passed down; nothing below keeps a global handle.
type app struct {
	cfg     *am.Config
	log     *zap.SugaredLogger
	dialect db.Dialect
	conn    *sql.DB

	content *content.Store
	jobs    *posting.Store
	gateway posting.Gateway

	platform *atproto.Client
	closers  []func() error
}

// openApp loads configuration and opens the migrated database.
func openApp() (*app, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}
	return openAppWithConfig(cfg, logger.Logger)
}

func openAppWithConfig(cfg *am.Config, log *zap.SugaredLogger) (*app, error) {
	dialect, err := db.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	source := cfg.Database.DSN
	if dialect == db.SQLite {
		source = cfg.Database.Path
	}

	conn, err := db.OpenWithMigrations(dialect, source, log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s database", dialect)
	}

	a := &app{
		cfg:     cfg,
		log:     log,
		dialect: dialect,
		conn:    conn,
		content: content.NewStore(conn, dialect),
		jobs:    posting.NewStore(conn, dialect),
		closers: []func() error{conn.Close},
	}
	a.gateway = a.jobs

	if dialect == db.MySQL {
		gs, err := gormstore.Open(cfg.Database.DSN, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.gateway = gs
		a.closers = append(a.closers, gs.Close)
	}
	return a, nil
}

// Close releases everything the app opened, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnw("Failed to close resource", logger.FieldError, err)
		}
	}
	a.closers = nil
}

// options converts scheduler config into runner options.
func (a *app) options() posting.Options {
	s := a.cfg.Scheduler
	return posting.Options{
		MaxJobsPerRun:  s.MaxJobsPerRun,
		MaxRetries:     s.MaxRetries,
		LockTTL:        s.LockTTL(),
		RetryDelay:     s.RetryDelay(),
		RecoverStale:   s.RecoverStale,
		AdapterTimeout: a.cfg.Outbound.Timeout(),
	}
}

func (a *app) atproto() (*atproto.Client, error) {
	if a.platform != nil {
		return a.platform, nil
	}
	c := a.cfg.Outbound.ATProto
	client, err := atproto.New(atproto.Config{
		PDSHost:     c.PDSHost,
		Identifier:  c.Identifier,
		AppPassword: c.AppPassword,
	}, logger.ComponentLogger("atproto"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure atproto adapter")
	}
	a.platform = client
	return client, nil
}

// adapter builds the configured outbound adapter behind the pacing and
// post-budget throttle. The budget is seeded from posts already recorded
// in the last hour so restarts do not reset it.
func (a *app) adapter(ctx context.Context) (outbound.Adapter, error) {
	var base outbound.Adapter
	switch a.cfg.Outbound.Provider {
	case "atproto":
		client, err := a.atproto()
		if err != nil {
			return nil, err
		}
		base = client
	default:
		base = stub.New()
	}

	var posts *budget.Limiter
	if max := a.cfg.Outbound.MaxPostsPerHour; max > 0 {
		limiter, err := budget.NewSeededLimiter(ctx, budget.NewStore(a.conn, a.dialect), max, time.Hour)
		if err != nil {
			return nil, err
		}
		posts = limiter
	}
	minInterval := time.Duration(a.cfg.Outbound.MinIntervalMS) * time.Millisecond
	throttled := posts != nil || minInterval > 0
	a.log.Infow("Outbound adapter ready",
		logger.FieldProvider, providerName(a.cfg.Outbound.Provider),
		"throttled", throttled)
	if !throttled {
		return base, nil
	}
	return outbound.NewThrottle(base, minInterval, posts), nil
}

// runner wires the scheduler loop with its adapter and, when events are
// configured, the RabbitMQ outcome publisher.
func (a *app) runner(ctx context.Context) (*posting.Runner, error) {
	adapter, err := a.adapter(ctx)
	if err != nil {
		return nil, err
	}
	r := posting.NewRunner(a.gateway, adapter, logger.ComponentLogger("posting"))

	if url := a.cfg.Events.AMQPURL; url != "" {
		pub, err := notify.Dial(url, a.cfg.Events.Exchange, logger.ComponentLogger("notify"))
		if err != nil {
			// events are best effort
			a.log.Warnw("Outcome events disabled", logger.FieldError, err)
		} else {
			r.SetNotifier(pub)
			a.closers = append(a.closers, pub.Close)
		}
	}
	return r, nil
}

// collector wires the snapshot loop with the configured fetcher and sink.
func (a *app) collector(ctx context.Context) (*analytics.Collector, error) {
	var fetcher analytics.MetricsFetcher
	if a.cfg.Analytics.Fetcher == "atproto" {
		client, err := a.atproto()
		if err != nil {
			return nil, err
		}
		fetcher = client
	}

	var sink analytics.Sink = analytics.NewStore(a.conn, a.dialect)
	if a.cfg.Analytics.Sink == "mongo" {
		ms, client, err := mongosink.Connect(ctx, a.cfg.Mongo.URI, a.cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		sink = ms
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
	}

	cfg := analytics.Config{
		WindowStart: time.Duration(a.cfg.Analytics.WindowStartHours) * time.Hour,
		WindowEnd:   time.Duration(a.cfg.Analytics.WindowEndHours) * time.Hour,
	}
	return analytics.NewCollector(a.content, fetcher, sink, cfg, logger.ComponentLogger("analytics")), nil
}

// pipeline wires the draft pipeline. Without an API key drafts use the
// stub body when generation.stub_when_unconfigured is set; otherwise the
// model client reports ErrNotConfigured on first use.
func (a *app) pipeline() (*generation.Pipeline, error) {
	knowledge, err := generation.OpenKnowledge(a.cfg.Generation.KnowledgeDir, logger.ComponentLogger("knowledge"))
	if err != nil {
		return nil, err
	}

	var gen generation.Generator
	or := a.cfg.OpenRouter
	if or.APIKey != "" || !a.cfg.Generation.StubWhenUnconfigured {
		client := openrouter.NewClient(openrouter.Config{
			APIKey:      or.APIKey,
			Model:       or.Model,
			Temperature: util.Ptr(or.Temperature),
			Timeout:     time.Duration(or.TimeoutSeconds) * time.Second,
			Retries:     util.Ptr(or.Retries),
			Logger:      logger.ComponentLogger("openrouter"),
		})
		gen = generation.NewOpenRouterGenerator(client)
	}

	p := generation.NewPipeline(a.content, a.jobs, knowledge, gen, logger.ComponentLogger("generation"))
	p.SetMaxLength(a.cfg.Generation.MaxLength)
	return p, nil
}
