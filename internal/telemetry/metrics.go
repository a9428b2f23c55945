/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the playback engine.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TracksPlayed counts tracks that started playback, per room.
	TracksPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_tracks_played_total",
		Help: "Tracks that started playback.",
	}, []string{"room"})

	// PlaybackErrors counts resolve and decode failures, per room.
	PlaybackErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_playback_errors_total",
		Help: "Playback failures (resolve or decode).",
	}, []string{"room"})

	// ActiveSessions tracks the number of live playback sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_active_sessions",
		Help: "Playback sessions currently open.",
	})

	// QueueSize tracks the queue length per room.
	QueueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bragi_queue_size",
		Help: "Queued tracks per room.",
	}, []string{"room"})

	// Crossfades counts crossfade transitions that started.
	Crossfades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_crossfades_total",
		Help: "Crossfade transitions started.",
	})

	// SnapshotWrites counts persisted room snapshots.
	SnapshotWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bragi_snapshot_writes_total",
		Help: "Room snapshots persisted to disk.",
	})

	// DatabaseQueryDuration observes gorm operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bragi_db_query_duration_seconds",
		Help:    "Database operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts failed database operations.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bragi_db_errors_total",
		Help: "Failed database operations.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive tracks open connections in the pool.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bragi_db_connections_active",
		Help: "Open database connections.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
