// Package observability provides Prometheus metrics, OpenTelemetry
// tracing, and the HTTP endpoints that expose them.
package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbot_provider_requests_total",
			Help: "Total number of LLM provider request attempts",
		},
		[]string{"provider", "status"},
	)

	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arbot_provider_request_duration_seconds",
			Help:    "LLM provider request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	retryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbot_retry_attempts_total",
			Help: "Total number of retried provider attempts",
		},
		[]string{"provider"},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arbot_turns_total",
			Help: "Total number of completed conversation turns",
		},
		[]string{"outcome"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "arbot_active_sessions",
			Help: "Number of active chat sessions",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all collectors. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			providerRequestsTotal,
			providerRequestDuration,
			retryAttemptsTotal,
			turnsTotal,
			activeSessions,
		)
	})
}

// RecordProviderRequest records one provider attempt and its duration.
func RecordProviderRequest(provider, status string, seconds float64) {
	providerRequestsTotal.WithLabelValues(provider, status).Inc()
	providerRequestDuration.WithLabelValues(provider).Observe(seconds)
}

// RecordRetryAttempt counts a retried provider attempt.
func RecordRetryAttempt(provider string) {
	retryAttemptsTotal.WithLabelValues(provider).Inc()
}

// Turn outcomes.
const (
	TurnOK       = "ok"
	TurnFallback = "fallback"
)

// RecordTurn counts a completed conversation turn.
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// SessionStarted and SessionEnded track the active-session gauge.
func SessionStarted() { activeSessions.Inc() }
func SessionEnded()   { activeSessions.Dec() }

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
