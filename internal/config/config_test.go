package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 30s", cfg.Fetch.Timeout)
	}
	if cfg.SourcesDir != "configs/sources" {
		t.Errorf("SourcesDir = %q, want configs/sources", cfg.SourcesDir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HARVESTER_FETCH_TIMEOUT_SECONDS", "15")
	t.Setenv("HARVESTER_LOG_FORMAT", "console")
	t.Setenv("DATABASE_MAX_CONNECTIONS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Fetch.Timeout != 15*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 15s", cfg.Fetch.Timeout)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %q, want console", cfg.Logging.Format)
	}
	// Unparseable ints fall back rather than erroring.
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("Database.MaxConnections = %d, want fallback 10", cfg.Database.MaxConnections)
	}
}
