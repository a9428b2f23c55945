/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/bragi/internal/config"
	"github.com/friendsincode/bragi/internal/db"
	"github.com/friendsincode/bragi/internal/eventbus"
	"github.com/friendsincode/bragi/internal/events"
	"github.com/friendsincode/bragi/internal/history"
	"github.com/friendsincode/bragi/internal/logbuffer"
	"github.com/friendsincode/bragi/internal/logging"
	"github.com/friendsincode/bragi/internal/player"
	"github.com/friendsincode/bragi/internal/resolver"
	"github.com/friendsincode/bragi/internal/settings"
	"github.com/friendsincode/bragi/internal/sink"
	"github.com/friendsincode/bragi/internal/snapshot"
	"github.com/friendsincode/bragi/internal/telemetry"
	"github.com/friendsincode/bragi/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
	logBuf = logbuffer.New(1000)
)

var rootCmd = &cobra.Command{
	Use:     "bragi",
	Short:   "Bragi - playback orchestration and crossfade mixing engine",
	Long:    "Bragi runs per-room playback sessions with queue management, sample-level crossfades, and crash-recovery snapshots.",
	Version: version.String(),
}

var pcmDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Bragi playback engine",
	Long:  "Start the playback scheduler, recover persisted sessions, and expose metrics",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&pcmDir, "pcm-dir", "", "Directory for per-room PCM output files (empty discards audio)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.SetupWithWriter(cfg.Environment, logBuf)
	return nil
}

// roomOutput opens the PCM destination for one room.
func roomOutput(roomID string) (io.Writer, error) {
	if pcmDir == "" {
		return io.Discard, nil
	}
	if err := os.MkdirAll(pcmDir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(pcmDir, roomID+".pcm"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Bragi starting")

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()
	if err := db.RegisterCallbacks(database); err != nil {
		return fmt.Errorf("register db callbacks: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	snaps, err := snapshot.NewStore(cfg.SnapshotDir, logger)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}

	var bus player.EventPublisher
	var redisBus *eventbus.RedisBus
	if cfg.EventBusEnabled() {
		rcfg := eventbus.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPassword
		rcfg.DB = cfg.RedisDB
		redisBus, err = eventbus.NewRedisBus(rcfg, hostname(), logger)
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		bus = redisBus
		go func() {
			ticker := time.NewTicker(rcfg.CheckInterval)
			defer ticker.Stop()
			for range ticker.C {
				if err := redisBus.TryReconnect(); err != nil {
					logger.Debug().Err(err).Msg("redis reconnect probe failed")
				}
			}
		}()
	} else {
		bus = events.NewBus()
	}

	ctrl := player.New(player.Deps{
		Config:   cfg,
		Resolver: resolver.New(cfg.FFmpegBin, logger),
		Sinks: func(roomID string) (player.Sink, error) {
			out, err := roomOutput(roomID)
			if err != nil {
				return nil, err
			}
			return sink.NewPCM(out, logger.With().Str("room_id", roomID).Logger()), nil
		},
		Snapshots: snaps,
		Settings:  settings.NewStore(database, logger),
		History:   history.NewService(database, cfg.HistoryPerRoom, logger),
		Bus:       bus,
		Logger:    logger,
	})
	go ctrl.Run()

	if err := ctrl.RecoverSessions(); err != nil {
		logger.Error().Err(err).Msg("session recovery failed")
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			db.UpdateConnectionMetrics(database)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		if n <= 0 {
			n = 200
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(logBuf.Recent(n))
	})
	metricsServer := &http.Server{Addr: cfg.MetricsBind, Handler: mux}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	ctrl.Close()
	_ = metricsServer.Close()
	if redisBus != nil {
		if err := redisBus.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event bus")
		}
	}

	logger.Info().Msg("Bragi stopped")
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "bragi"
	}
	return h
}
