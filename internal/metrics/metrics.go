// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Location ingest throughput and rejection reasons
// - Presence map size and flush cycles
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - WebSocket connections
// - Duty session lifecycle

var (
	// Location Ingest Metrics
	LocationUpdatesAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_updates_accepted_total",
			Help: "Total number of location updates applied to the presence map",
		},
		[]string{"source"}, // "rest", "websocket"
	)

	LocationUpdatesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_updates_rejected_total",
			Help: "Total number of location updates rejected before apply",
		},
		[]string{"reason"}, // "stale", "validation", "throttled", "off_duty"
	)

	LocationIngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "location_ingest_duration_seconds",
			Help:    "Duration of a single location ingest (validate, apply, persist)",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// Presence Metrics
	PresenceMapSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_map_entries",
			Help: "Current number of employees in the in-memory presence map",
		},
	)

	PresenceOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_employees",
			Help: "Number of employees classified as online at the last flush",
		},
	)

	PresenceFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_flushes_total",
			Help: "Total number of presence flush cycles to durable storage",
		},
	)

	PresenceFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_flush_duration_seconds",
			Help:    "Duration of presence flush cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Duty Session Metrics
	DutySessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duty_sessions_started_total",
			Help: "Total number of duty sessions started",
		},
	)

	DutySessionsStopped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duty_sessions_stopped_total",
			Help: "Total number of duty sessions stopped",
		},
	)

	DutySessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duty_sessions_expired_total",
			Help: "Total number of duty sessions closed by the max age sweeper",
		},
	)

	DutySessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duty_sessions_active",
			Help: "Current number of open duty sessions",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "roster", "latest"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (TTL expiry)",
		},
		[]string{"cache_type"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSAdminSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_admin_subscribers",
			Help: "Current number of clients subscribed to the live map feed",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Event Pipeline Metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of location events published to the broker",
		},
	)

	EventsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of location events consumed from the broker",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_publish_errors_total",
			Help: "Total number of failed event publishes",
		},
	)
)

// RecordDBQuery records database query metrics including duration and errors.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records API request metrics for latency and throughput.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngest records one location ingest outcome. source is "rest"
// or "websocket"; reason is empty for accepted updates.
func RecordIngest(source, reason string, duration time.Duration) {
	LocationIngestDuration.Observe(duration.Seconds())
	if reason == "" {
		LocationUpdatesAccepted.WithLabelValues(source).Inc()
		return
	}
	LocationUpdatesRejected.WithLabelValues(reason).Inc()
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
