// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records store operation latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stackit_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesTotal counts applied votes by target type and ledger outcome
	// (inserted, removed, flipped).
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_votes_total",
		Help: "Total number of votes applied to the ledger",
	}, []string{"target_type", "outcome"})

	// AcceptancesTotal counts answer acceptances.
	AcceptancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackit_answer_acceptances_total",
		Help: "Total number of answers marked as accepted",
	})

	// CacheLookups counts question cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_cache_lookups_total",
		Help: "Total number of cache lookups by result",
	}, []string{"cache", "result"})

	// NotificationsTotal counts notifications created by kind.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_notifications_total",
		Help: "Total number of notifications created",
	}, []string{"kind"})

	// WebSocketConnectionsTotal is the gauge of active WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stackit_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackit_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// VoteOutcome names the ledger transition for a vote with the given delta and
// resulting standing value.
func VoteOutcome(delta, standing int) string {
	switch {
	case standing == 0:
		return "removed"
	case delta == standing:
		return "inserted"
	default:
		return "flipped"
	}
}
