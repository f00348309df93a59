package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AdminSecret string // Required: shared secret gating admin elevation

	OAuthScope   string // Optional: scope requested in authorization URLs (default: offline_access user.read)
	RedirectURL  string // Optional: redirect_uri baked into authorization URLs (default: https://localhost/callback)
	AppPortalURL string // Optional: base management URL returned after app deletion

	ValidateTokens bool          // Optional: validate pasted tokens against the directory before storing (default: false)
	GraphTimeout   time.Duration // Optional: HTTP timeout for directory calls (default: 15s)

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./bot.db)
	WorkerLimit          int           // Optional: max concurrently processed chat events (default: 16)
	PendingTTL           time.Duration // Optional: how long a multi-stage command waits for its continuation (default: 10m)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired pending-action sweep interval (default: 15m)
}

func LoadConfig() Config {
	return Config{
		AdminSecret:          os.Getenv("BOT_ADMIN_SECRET"),
		OAuthScope:           getEnvOrDefault("BOT_OAUTH_SCOPE", "offline_access user.read"),
		RedirectURL:          getEnvOrDefault("BOT_REDIRECT_URL", "https://localhost/callback"),
		AppPortalURL:         getEnvOrDefault("BOT_APP_PORTAL_URL", "https://portal.azure.com/appdelete"),
		ValidateTokens:       getEnvBoolOrDefault("BOT_VALIDATE_TOKENS", false),
		GraphTimeout:         getEnvDurationOrDefault("BOT_GRAPH_TIMEOUT", 15*time.Second),
		DatabaseFile:         getEnvOrDefault("BOT_DATABASE_FILE", "bot.db"),
		WorkerLimit:          getEnvIntOrDefault("BOT_WORKER_LIMIT", 16),
		PendingTTL:           getEnvDurationOrDefault("BOT_PENDING_TTL", 10*time.Minute),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 15*time.Minute),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
