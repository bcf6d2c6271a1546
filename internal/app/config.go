package app

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/daoyee/daoyee-quote/internal/catalog"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// CachePath locates the sqlite local cache file.
	CachePath string `envconfig:"CACHE_PATH" default:"daoyee.db"`

	// Remote sync connection used when no settings document exists yet in
	// the local cache. Persisted settings always win.
	PGDSN       string `envconfig:"PG_DSN" default:""`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SyncEnabled bool   `envconfig:"SYNC_ENABLED" default:"false"`

	// UseQueue routes remote pushes through the asynq queue instead of the
	// in-process pusher. Requires a running worker.
	UseQueue bool `envconfig:"USE_QUEUE" default:"false"`

	AdvisoryURL   string `envconfig:"ADVISORY_URL" default:"https://generativelanguage.googleapis.com"`
	AdvisoryKey   string `envconfig:"ADVISORY_API_KEY" default:""`
	AdvisoryModel string `envconfig:"ADVISORY_MODEL" default:"gemini-2.5-flash"`
}

// LoadConfig reads configuration from a .env file (when present) and the
// environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// BootstrapSettings derives initial sync settings from the environment, used
// only on first run before any settings document has been persisted.
func (c *Config) BootstrapSettings() catalog.AppSettings {
	return catalog.AppSettings{
		RemoteDSN:   c.PGDSN,
		RedisAddr:   c.RedisAddr,
		SyncEnabled: c.SyncEnabled && c.PGDSN != "",
	}
}
