/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	DBBackend   DatabaseBackend
	DBDSN       string
	SnapshotDir string
	MetricsBind string
	FFmpegBin   string

	// Event bus (Redis pub/sub) configuration; empty addr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Playback defaults, overridable per room through the settings store.
	DefaultMaxQueueSize     int
	DefaultCrossfadeSeconds int
	DefaultStayConnected    bool
	IdleTimeout             time.Duration
	HistoryPerRoom          int
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("BRAGI_ENV", "development"),
		DBBackend:   DatabaseBackend(getEnv("BRAGI_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("BRAGI_DB_DSN", "file:bragi.db?_pragma=busy_timeout(5000)"),
		SnapshotDir: getEnv("BRAGI_SNAPSHOT_DIR", "./snapshots"),
		MetricsBind: getEnv("BRAGI_METRICS_BIND", "127.0.0.1:9000"),
		FFmpegBin:   getEnv("BRAGI_FFMPEG_BIN", "ffmpeg"),

		RedisAddr:     getEnv("BRAGI_REDIS_ADDR", ""),
		RedisPassword: getEnv("BRAGI_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("BRAGI_REDIS_DB", 0),

		DefaultMaxQueueSize:     getEnvInt("BRAGI_MAX_QUEUE_SIZE", 50),
		DefaultCrossfadeSeconds: getEnvInt("BRAGI_CROSSFADE_SECONDS", 0),
		DefaultStayConnected:    getEnvBool("BRAGI_STAY_CONNECTED", false),
		IdleTimeout:             time.Duration(getEnvInt("BRAGI_IDLE_TIMEOUT_SECONDS", 300)) * time.Second,
		HistoryPerRoom:          getEnvInt("BRAGI_HISTORY_PER_ROOM", 500),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BRAGI_DB_DSN must be provided")
	}
	if cfg.DefaultMaxQueueSize < 1 {
		return nil, fmt.Errorf("BRAGI_MAX_QUEUE_SIZE must be at least 1")
	}
	if cfg.DefaultCrossfadeSeconds < 0 || cfg.DefaultCrossfadeSeconds > 10 {
		return nil, fmt.Errorf("BRAGI_CROSSFADE_SECONDS must be in [0, 10]")
	}

	return cfg, nil
}

// EventBusEnabled reports whether a Redis event bus address is configured.
func (c *Config) EventBusEnabled() bool {
	return c != nil && c.RedisAddr != ""
}

// getEnv returns the environment variable value, or def when unset.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the integer environment variable value, or def.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvBool returns the boolean environment variable value, or def.
func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
