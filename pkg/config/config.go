package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend selects where tasks are stored.
type Backend string

const (
	// BackendRemote stores tasks in the SQL datastore with real-time fan-out.
	BackendRemote Backend = "remote"
	// BackendLocal stores the task list in the on-device cache only.
	BackendLocal Backend = "local"
)

// AuthProvider selects the identity service.
type AuthProvider string

const (
	AuthLocal AuthProvider = "local"
	AuthOAuth AuthProvider = "oauth"
	AuthNone  AuthProvider = "none"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Tasks
	Backend        Backend
	AnonymousLimit int

	// Datastore. An empty DatabaseURL means SQLite at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Local device store
	CachePath string
	RedisURL  string

	// RabbitMQ
	RabbitMQURL string

	// Outbox relays change events to RabbitMQ after commit.
	OutboxEnabled      bool
	OutboxPollInterval time.Duration

	// Circuit breaker
	BreakerFailures int
	BreakerTimeout  time.Duration

	// Identity
	AuthProvider     AuthProvider
	AuthURL          string
	AuthTokenURL     string
	AuthClientID     string
	AuthClientSecret string
	SessionKey       string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dataDir := getDefaultDataDir()
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "warn"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		Backend:        Backend(strings.ToLower(getEnv("DAYTASK_BACKEND", string(BackendRemote)))),
		AnonymousLimit: getIntEnv("DAYTASK_ANONYMOUS_LIMIT", 5),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("DAYTASK_SQLITE_PATH", filepath.Join(dataDir, "data.db")),

		CachePath: getEnv("DAYTASK_CACHE_PATH", filepath.Join(dataDir, "local.db")),
		RedisURL:  getEnv("REDIS_URL", ""),

		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		OutboxEnabled:      getBoolEnv("DAYTASK_OUTBOX_ENABLED", os.Getenv("RABBITMQ_URL") != ""),
		OutboxPollInterval: getDurationEnv("DAYTASK_OUTBOX_POLL_INTERVAL", 500*time.Millisecond),

		BreakerFailures: getIntEnv("DAYTASK_BREAKER_FAILURES", 5),
		BreakerTimeout:  getDurationEnv("DAYTASK_BREAKER_TIMEOUT", 30*time.Second),

		AuthProvider:     AuthProvider(strings.ToLower(getEnv("DAYTASK_AUTH_PROVIDER", string(AuthLocal)))),
		AuthURL:          getEnv("DAYTASK_AUTH_URL", ""),
		AuthTokenURL:     getEnv("DAYTASK_AUTH_TOKEN_URL", ""),
		AuthClientID:     getEnv("DAYTASK_AUTH_CLIENT_ID", ""),
		AuthClientSecret: getEnv("DAYTASK_AUTH_CLIENT_SECRET", ""),
		SessionKey:       getEnv("DAYTASK_SESSION_KEY", ""),

		MCPAddr:      getEnv("MCP_ADDR", "127.0.0.1:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendRemote, BackendLocal:
	default:
		return fmt.Errorf("DAYTASK_BACKEND: unknown backend %q", c.Backend)
	}
	switch c.AuthProvider {
	case AuthLocal, AuthNone:
	case AuthOAuth:
		if c.AuthURL == "" || c.AuthClientID == "" {
			return fmt.Errorf("DAYTASK_AUTH_PROVIDER=oauth requires DAYTASK_AUTH_URL and DAYTASK_AUTH_CLIENT_ID")
		}
	default:
		return fmt.Errorf("DAYTASK_AUTH_PROVIDER: unknown provider %q", c.AuthProvider)
	}
	if c.AnonymousLimit < 0 {
		return fmt.Errorf("DAYTASK_ANONYMOUS_LIMIT must not be negative")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesPostgres reports whether the datastore is PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") || strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getDefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".daytask"
	}
	return filepath.Join(home, ".daytask")
}
