package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	EncryptionKey string

	// Database. An empty DatabaseURL selects the local SQLite file.
	DatabaseURL     string
	SQLitePath      string
	DatabaseMaxConn int

	// Worker
	WorkerHealthAddr   string
	GenerationSchedule string
	SyncSchedule       string
	SyncStaleAfter     time.Duration
	SyncBatchSize      int

	// OAuth
	OAuthClientID      string
	OAuthClientSecret  string
	OAuthAuthURL       string
	OAuthTokenURL      string
	OAuthRevocationURL string
	OAuthRedirectURL   string
	OAuthScopes        []string

	// Calendar
	CalendarID string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EncryptionKey: getEnv("GOALPOST_ENCRYPTION_KEY", ""),

		DatabaseURL:     getEnv("DATABASE_URL", ""),
		SQLitePath:      getEnv("GOALPOST_SQLITE_PATH", defaultSQLitePath()),
		DatabaseMaxConn: getIntEnv("DATABASE_MAX_CONNS", 0),

		WorkerHealthAddr:   getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		GenerationSchedule: getEnv("GENERATION_SCHEDULE", "@every 1h"),
		SyncSchedule:       getEnv("SYNC_SCHEDULE", "@every 15m"),
		SyncStaleAfter:     getDurationEnv("SYNC_STALE_AFTER", 15*time.Minute),
		SyncBatchSize:      getIntEnv("SYNC_BATCH_SIZE", 50),

		OAuthClientID:      getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret:  getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthAuthURL:       getEnv("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
		OAuthTokenURL:      getEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		OAuthRevocationURL: getEnv("OAUTH_REVOCATION_URL", "https://oauth2.googleapis.com/revoke"),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/callback"),
		OAuthScopes:        getListEnv("OAUTH_SCOPES", []string{"https://www.googleapis.com/auth/calendar"}),

		CalendarID: getEnv("CALENDAR_ID", "primary"),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsePostgres reports whether a PostgreSQL URL was configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".goalpost/goalpost.db"
	}
	return home + "/.goalpost/goalpost.db"
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

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
