// Courier - Real-Time Messaging Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - WebSocket connections and chat event throughput
// - Message fanout behavior

var (
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
		[]string{"operation", "table", "error_type"},
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

	// WebSocket / Chat Metrics
	WSConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connected_clients",
			Help: "Current number of connected WebSocket clients",
		},
	)

	ChatEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Total number of inbound chat events by type",
		},
		[]string{"event"},
	)

	ChatEventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_event_errors_total",
			Help: "Total number of chat events rejected with an error",
		},
		[]string{"event", "code"},
	)

	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of persisted chat messages",
		},
		[]string{"kind"}, // "direct", "group"
	)

	FanoutDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fanout_drops_total",
			Help: "Total number of events dropped due to a full client buffer",
		},
	)

	PresenceWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_presence_write_failures_total",
			Help: "Total number of failed best-effort presence status writes",
		},
	)
)

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database query error.
func RecordDBError(operation, table, errorType string) {
	DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
}

// RecordAPIRequest records an API request with its duration.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(active bool) {
	if active {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordChatEvent records an inbound chat event.
func RecordChatEvent(event string) {
	ChatEventsTotal.WithLabelValues(event).Inc()
}

// RecordChatEventError records a chat event rejected with an error code.
func RecordChatEventError(event, code string) {
	ChatEventErrors.WithLabelValues(event, code).Inc()
}
