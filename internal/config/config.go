// Package config loads harvester process configuration from the
// environment. Per-source selector profiles live in YAML files and are
// handled by the scraper package, not here.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database    DatabaseConfig
	Fetch       FetchConfig
	Logging     LoggingConfig
	SourcesDir  string
	Environment string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

type FetchConfig struct {
	Timeout       time.Duration
	UserAgent     string
	CourtesyDelay time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

const defaultUserAgent = "discovr-harvester/0.1 (+https://discovr.events; hello@discovr.events)"

// Load reads configuration from environment variables. DATABASE_URL is
// optional: without it runs are extract-only (dry-run persistence).
func Load() (Config, error) {
	cfg := Config{
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Fetch: FetchConfig{
			Timeout:       time.Duration(getEnvInt("HARVESTER_FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
			UserAgent:     getEnv("HARVESTER_USER_AGENT", defaultUserAgent),
			CourtesyDelay: time.Duration(getEnvInt("HARVESTER_COURTESY_DELAY_MS", 1000)) * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  getEnv("HARVESTER_LOG_LEVEL", "info"),
			Format: getEnv("HARVESTER_LOG_FORMAT", "json"),
		},
		SourcesDir:  getEnv("HARVESTER_SOURCES_DIR", "configs/sources"),
		Environment: getEnv("ENVIRONMENT", "development"),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
