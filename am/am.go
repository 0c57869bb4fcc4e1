// Package am loads postpulse configuration.
//
// Sources merge in precedence order (lowest first): built-in defaults,
// /etc/postpulse/config.toml, ~/.postpulse/am.toml, the nearest project
// am.toml, then POSTPULSE_* environment variables.
package am

import "time"

// Config represents the postpulse configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Outbound   OutboundConfig   `mapstructure:"outbound"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Events     EventsConfig     `mapstructure:"events"`
	Generation GenerationConfig `mapstructure:"generation"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Server     ServerConfig     `mapstructure:"server"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite3, postgres, mysql
	Path   string `mapstructure:"path"`   // sqlite3 file
	DSN    string `mapstructure:"dsn"`    // postgres / mysql connection string
}

// Database drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// SchedulerConfig configures the posting job runner
type SchedulerConfig struct {
	MaxJobsPerRun     int  `mapstructure:"max_jobs_per_run"`
	MaxRetries        int  `mapstructure:"max_retries"`
	LockTTLSeconds    int  `mapstructure:"lock_ttl_seconds"`
	RetryDelaySeconds int  `mapstructure:"retry_delay_seconds"` // 0 = retry on the next run
	RecoverStale      bool `mapstructure:"recover_stale"`
	IntervalSeconds   int  `mapstructure:"interval_seconds"` // 0 disables the in-process ticker
}

// OutboundConfig configures the platform adapter
type OutboundConfig struct {
	Provider        string        `mapstructure:"provider"` // stub, atproto
	TimeoutSeconds  int           `mapstructure:"timeout_seconds"`
	MaxPostsPerHour int           `mapstructure:"max_posts_per_hour"` // 0 = unlimited
	MinIntervalMS   int           `mapstructure:"min_interval_ms"`
	ATProto         ATProtoConfig `mapstructure:"atproto"`
}

// ATProtoConfig holds Bluesky PDS credentials
type ATProtoConfig struct {
	PDSHost     string `mapstructure:"pds_host"`
	Identifier  string `mapstructure:"identifier"`
	AppPassword string `mapstructure:"app_password"`
}

// AnalyticsConfig configures the snapshot loop
type AnalyticsConfig struct {
	WindowStartHours int    `mapstructure:"window_start_hours"`
	WindowEndHours   int    `mapstructure:"window_end_hours"`
	Sink             string `mapstructure:"sink"`    // sql, mongo
	Fetcher          string `mapstructure:"fetcher"` // stub, atproto
}

// MongoConfig is used by the mongo snapshot sink
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// EventsConfig configures the optional RabbitMQ outcome publisher
type EventsConfig struct {
	AMQPURL  string `mapstructure:"amqp_url"` // empty disables publishing
	Exchange string `mapstructure:"exchange"`
}

// GenerationConfig configures the draft pipeline
type GenerationConfig struct {
	MaxLength            int    `mapstructure:"max_length"`
	KnowledgeDir         string `mapstructure:"knowledge_dir"`
	StubWhenUnconfigured bool   `mapstructure:"stub_when_unconfigured"`
}

// OpenRouterConfig configures OpenRouter.ai API access
type OpenRouterConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	Retries        int     `mapstructure:"retries"`
}

// ServerConfig configures the HTTP and gRPC listeners and their credentials
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	GRPCPort          int           `mapstructure:"grpc_port"` // 0 disables gRPC health
	CronSecret        string        `mapstructure:"cron_secret"`
	AdminPassword     string        `mapstructure:"admin_password"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt, preferred over admin_password
	JWTSecret         string        `mapstructure:"jwt_secret"`
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
}

// LockTTL returns the scheduler lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// RetryDelay returns the configured delay before a retried job is eligible again
func (c SchedulerConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Timeout returns the outbound adapter deadline
func (c OutboundConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AdminConfigured reports whether any admin credential is set
func (c ServerConfig) AdminConfigured() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// File system constants
const (
	DefaultDirPermissions = 0755
)
