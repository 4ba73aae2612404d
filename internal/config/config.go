package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"4100"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Auth settings
	Auth AuthConfig

	// Credential encryption
	Encryption EncryptionConfig

	// Sync engine settings
	Sync SyncConfig

	// OAuth provider apps
	OAuth OAuthConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"voxlane"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"voxlane"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
	AutoMigrate  bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig holds bearer token authentication settings
type AuthConfig struct {
	// JWTSecret signs and verifies HS256 tenant access tokens
	JWTSecret string `env:"AUTH_JWT_SECRET"`
}

// EncryptionConfig holds credential encryption settings
type EncryptionConfig struct {
	// Key is a hex-encoded 256-bit AES key for credentials at rest
	Key string `env:"CREDENTIAL_ENCRYPTION_KEY"`
}

// SyncConfig holds reconciliation engine and worker settings
type SyncConfig struct {
	// SchedulerEnabled controls the recurring sync sweep and stale-run reaper
	SchedulerEnabled bool `env:"SYNC_SCHEDULER_ENABLED" envDefault:"true"`

	// SweepCron is the cron expression for the recurring sync sweep
	SweepCron string `env:"SYNC_SWEEP_CRON" envDefault:"0 */5 * * * *"`

	// BatchSize bounds the number of local mutations per batch
	BatchSize int `env:"SYNC_BATCH_SIZE" envDefault:"500"`

	// MaxConcurrentRuns bounds parallel scheduled runs across integrations
	MaxConcurrentRuns int `env:"SYNC_MAX_CONCURRENT_RUNS" envDefault:"4"`

	// RunStaleMinutes is how long a run may stay "running" before the reaper
	// reclassifies it as failed
	RunStaleMinutes int `env:"SYNC_RUN_STALE_MINUTES" envDefault:"30"`

	// ScheduledIntervalMinutes is how often each integration is due for a
	// scheduled sync
	ScheduledIntervalMinutes int `env:"SYNC_SCHEDULED_INTERVAL_MINUTES" envDefault:"60"`

	// HTTPTimeout bounds every provider network call
	HTTPTimeout time.Duration `env:"SYNC_HTTP_TIMEOUT" envDefault:"20s"`

	// MaxRetries is the retry budget for transient provider errors
	MaxRetries int `env:"SYNC_MAX_RETRIES" envDefault:"3"`

	// RetryBaseDelay is the base backoff delay between retries
	RetryBaseDelay time.Duration `env:"SYNC_RETRY_BASE_DELAY" envDefault:"500ms"`

	// TokenExpiryMargin refreshes tokens that expire within this window
	TokenExpiryMargin time.Duration `env:"SYNC_TOKEN_EXPIRY_MARGIN" envDefault:"60s"`
}

// StaleWindow returns the stale-run window as a duration
func (s *SyncConfig) StaleWindow() time.Duration {
	return time.Duration(s.RunStaleMinutes) * time.Minute
}

// ScheduledInterval returns the per-integration scheduled sync interval
func (s *SyncConfig) ScheduledInterval() time.Duration {
	return time.Duration(s.ScheduledIntervalMinutes) * time.Minute
}

// OAuthConfig holds the OAuth client apps registered with each provider
type OAuthConfig struct {
	// RedirectBaseURL is the externally reachable base URL that provider
	// callbacks are registered against, e.g. https://api.voxlane.io
	RedirectBaseURL string `env:"OAUTH_REDIRECT_BASE_URL" envDefault:"http://localhost:4100"`

	GoogleClientID         string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	GoogleClientSecret     string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
	MicrosoftClientID      string `env:"MICROSOFT_OAUTH_CLIENT_ID"`
	MicrosoftClientSecret  string `env:"MICROSOFT_OAUTH_CLIENT_SECRET"`
	HubSpotClientID        string `env:"HUBSPOT_OAUTH_CLIENT_ID"`
	HubSpotClientSecret    string `env:"HUBSPOT_OAUTH_CLIENT_SECRET"`
	PipedriveClientID      string `env:"PIPEDRIVE_OAUTH_CLIENT_ID"`
	PipedriveClientSecret  string `env:"PIPEDRIVE_OAUTH_CLIENT_SECRET"`
	SalesforceClientID     string `env:"SALESFORCE_OAUTH_CLIENT_ID"`
	SalesforceClientSecret string `env:"SALESFORCE_OAUTH_CLIENT_SECRET"`

	// SalesforceInstanceURL is the org instance host the REST API lives on,
	// e.g. https://acme.my.salesforce.com
	SalesforceInstanceURL string `env:"SALESFORCE_INSTANCE_URL"`

	SlackClientID     string `env:"SLACK_OAUTH_CLIENT_ID"`
	SlackClientSecret string `env:"SLACK_OAUTH_CLIENT_SECRET"`
}

// CallbackURL returns the OAuth callback URL for a provider
func (o *OAuthConfig) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/api/oauth/%s/callback", o.RedirectBaseURL, provider)
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Bool("sync_scheduler", cfg.Sync.SchedulerEnabled),
	)

	return cfg, nil
}
