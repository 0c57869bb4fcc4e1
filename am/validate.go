package am

import (
	"slices"

	"github.com/teranos/postpulse/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path cannot be empty for sqlite3")
		}
	case DriverPostgres, DriverMySQL:
		if c.Database.DSN == "" {
			return errors.Newf("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return errors.Newf("database.driver must be sqlite3, postgres or mysql, got %q", c.Database.Driver)
	}

	if c.Scheduler.MaxJobsPerRun <= 0 {
		return errors.Newf("scheduler.max_jobs_per_run must be > 0, got %d", c.Scheduler.MaxJobsPerRun)
	}
	if c.Scheduler.MaxRetries < 0 {
		return errors.Newf("scheduler.max_retries must be >= 0, got %d", c.Scheduler.MaxRetries)
	}
	if c.Scheduler.LockTTLSeconds <= 0 {
		return errors.Newf("scheduler.lock_ttl_seconds must be > 0, got %d", c.Scheduler.LockTTLSeconds)
	}
	if c.Scheduler.RetryDelaySeconds < 0 {
		return errors.Newf("scheduler.retry_delay_seconds must be >= 0, got %d", c.Scheduler.RetryDelaySeconds)
	}
	// 0 = ticker disabled
	if c.Scheduler.IntervalSeconds < 0 {
		return errors.Newf("scheduler.interval_seconds must be >= 0, got %d", c.Scheduler.IntervalSeconds)
	}

	if !slices.Contains([]string{"stub", "atproto"}, c.Outbound.Provider) {
		return errors.Newf("outbound.provider must be stub or atproto, got %q", c.Outbound.Provider)
	}
	if c.Outbound.TimeoutSeconds <= 0 {
		return errors.Newf("outbound.timeout_seconds must be > 0, got %d", c.Outbound.TimeoutSeconds)
	}
	if c.Outbound.MaxPostsPerHour < 0 {
		return errors.Newf("outbound.max_posts_per_hour must be >= 0, got %d", c.Outbound.MaxPostsPerHour)
	}
	if c.Outbound.MinIntervalMS < 0 {
		return errors.Newf("outbound.min_interval_ms must be >= 0, got %d", c.Outbound.MinIntervalMS)
	}
	if c.Outbound.Provider == "atproto" || c.Analytics.Fetcher == "atproto" {
		if c.Outbound.ATProto.Identifier == "" || c.Outbound.ATProto.AppPassword == "" {
			return errors.New("outbound.atproto.identifier and outbound.atproto.app_password are required for atproto")
		}
	}

	if c.Analytics.WindowStartHours <= c.Analytics.WindowEndHours || c.Analytics.WindowEndHours < 0 {
		return errors.Newf("analytics window must satisfy window_start_hours > window_end_hours >= 0, got %d/%d",
			c.Analytics.WindowStartHours, c.Analytics.WindowEndHours)
	}
	if !slices.Contains([]string{"sql", "mongo"}, c.Analytics.Sink) {
		return errors.Newf("analytics.sink must be sql or mongo, got %q", c.Analytics.Sink)
	}
	if c.Analytics.Sink == "mongo" && c.Mongo.URI == "" {
		return errors.New("mongo.uri is required when analytics.sink = \"mongo\"")
	}
	if !slices.Contains([]string{"stub", "atproto"}, c.Analytics.Fetcher) {
		return errors.Newf("analytics.fetcher must be stub or atproto, got %q", c.Analytics.Fetcher)
	}

	if c.Generation.MaxLength <= 0 {
		return errors.Newf("generation.max_length must be > 0, got %d", c.Generation.MaxLength)
	}
	if c.OpenRouter.Retries < 0 {
		return errors.Newf("openrouter.retries must be >= 0, got %d", c.OpenRouter.Retries)
	}

	if c.Server.Port <= 0 {
		return errors.Newf("server.port must be positive, got %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 {
		return errors.Newf("server.grpc_port must be >= 0, got %d", c.Server.GRPCPort)
	}
	if c.Server.SessionTTL <= 0 {
		return errors.Newf("server.session_ttl must be positive, got %s", c.Server.SessionTTL)
	}

	return nil
}
