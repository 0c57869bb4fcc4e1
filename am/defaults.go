package am

import (
	"github.com/spf13/viper"
)

// Defaults
const (
	DefaultServerPort    = 8770
	DefaultDatabasePath  = "postpulse.db"
	DefaultMaxJobsPerRun = 10
	DefaultMaxRetries    = 3
	DefaultLockTTL       = 600 // seconds
	DefaultMaxLength     = 280
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.dsn", "")

	v.SetDefault("scheduler.max_jobs_per_run", DefaultMaxJobsPerRun)
	v.SetDefault("scheduler.max_retries", DefaultMaxRetries)
	v.SetDefault("scheduler.lock_ttl_seconds", DefaultLockTTL)
	v.SetDefault("scheduler.retry_delay_seconds", 0) // no backoff
	v.SetDefault("scheduler.recover_stale", true)
	v.SetDefault("scheduler.interval_seconds", 60)

	v.SetDefault("outbound.provider", "stub")
	v.SetDefault("outbound.timeout_seconds", 15)
	v.SetDefault("outbound.max_posts_per_hour", 0)
	v.SetDefault("outbound.min_interval_ms", 0)
	v.SetDefault("outbound.atproto.pds_host", "https://bsky.social")
	v.SetDefault("outbound.atproto.identifier", "")
	v.SetDefault("outbound.atproto.app_password", "")

	v.SetDefault("analytics.window_start_hours", 72)
	v.SetDefault("analytics.window_end_hours", 48)
	v.SetDefault("analytics.sink", "sql")
	v.SetDefault("analytics.fetcher", "stub")

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "postpulse")

	v.SetDefault("events.amqp_url", "")
	v.SetDefault("events.exchange", "postpulse.posting")

	v.SetDefault("generation.max_length", DefaultMaxLength)
	v.SetDefault("generation.knowledge_dir", "knowledge")
	v.SetDefault("generation.stub_when_unconfigured", true)

	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.temperature", 0.7)
	v.SetDefault("openrouter.timeout_seconds", 15)
	v.SetDefault("openrouter.retries", 1)

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.grpc_port", 0)
	v.SetDefault("server.cron_secret", "")
	v.SetDefault("server.admin_password", "")
	v.SetDefault("server.admin_password_hash", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.session_ttl", "24h")
}

// BindSensitiveEnvVars binds credentials to the bare variable names
// deployments already use, alongside the POSTPULSE_ prefixed forms.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("server.cron_secret", "POSTPULSE_SERVER_CRON_SECRET", "CRON_SECRET")
	v.BindEnv("server.admin_password", "POSTPULSE_SERVER_ADMIN_PASSWORD", "ADMIN_PASSWORD", "ADMIN_TOKEN")
	v.BindEnv("server.jwt_secret", "POSTPULSE_SERVER_JWT_SECRET", "JWT_SECRET")
	v.BindEnv("openrouter.api_key", "POSTPULSE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("openrouter.model", "POSTPULSE_OPENROUTER_MODEL", "OPENROUTER_MODEL")
	v.BindEnv("outbound.atproto.app_password", "POSTPULSE_OUTBOUND_ATPROTO_APP_PASSWORD")
	v.BindEnv("database.dsn", "POSTPULSE_DATABASE_DSN", "DATABASE_URL")
	v.BindEnv("mongo.uri", "POSTPULSE_MONGO_URI", "MONGO_URI")
	v.BindEnv("events.amqp_url", "POSTPULSE_EVENTS_AMQP_URL", "AMQP_URL")
}

// sensitiveKeys are redacted by RenderTOML.
var sensitiveKeys = []string{
	"server.cron_secret",
	"server.admin_password",
	"server.admin_password_hash",
	"server.jwt_secret",
	"openrouter.api_key",
	"outbound.atproto.app_password",
	"database.dsn",
	"mongo.uri",
	"events.amqp_url",
}
