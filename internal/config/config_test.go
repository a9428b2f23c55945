package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("default backend: %s", cfg.DBBackend)
	}
	if cfg.DefaultMaxQueueSize != 50 {
		t.Fatalf("default max queue size: %d", cfg.DefaultMaxQueueSize)
	}
	if cfg.IdleTimeout != 5*time.Minute {
		t.Fatalf("default idle timeout: %s", cfg.IdleTimeout)
	}
	if cfg.EventBusEnabled() {
		t.Fatal("event bus should be disabled without a redis addr")
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("BRAGI_DB_BACKEND", "postgres")
	t.Setenv("BRAGI_DB_DSN", "host=localhost user=bragi dbname=bragi sslmode=disable")
	t.Setenv("BRAGI_REDIS_ADDR", "localhost:6379")
	t.Setenv("BRAGI_CROSSFADE_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Fatalf("backend: %s", cfg.DBBackend)
	}
	if !cfg.EventBusEnabled() {
		t.Fatal("event bus should be enabled")
	}
	if cfg.DefaultCrossfadeSeconds != 5 {
		t.Fatalf("crossfade seconds: %d", cfg.DefaultCrossfadeSeconds)
	}
}

func TestLoadParsesBooleans(t *testing.T) {
	t.Setenv("BRAGI_STAY_CONNECTED", "yes")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.DefaultStayConnected {
		t.Fatal("stay-connected default not read")
	}

	t.Setenv("BRAGI_STAY_CONNECTED", "0")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DefaultStayConnected {
		t.Fatal("explicit false ignored")
	}

	t.Setenv("BRAGI_STAY_CONNECTED", "maybe")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DefaultStayConnected {
		t.Fatal("unparseable value should keep the default")
	}
}

func TestLoadRejectsUnsupportedBackend(t *testing.T) {
	t.Setenv("BRAGI_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for unsupported backend")
	}
}

func TestLoadRejectsCrossfadeOutOfRange(t *testing.T) {
	t.Setenv("BRAGI_CROSSFADE_SECONDS", "30")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for out-of-range crossfade")
	}
}
