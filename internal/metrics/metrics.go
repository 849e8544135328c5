// Package metrics provides Prometheus metrics for the governance service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pmcoach"

var (
	// LoginDecisions counts throttle checks by outcome (allowed, denied, expired)
	LoginDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "decisions_total",
			Help:      "Login throttle decisions by outcome",
		},
		[]string{"outcome"},
	)

	// LoginFailuresRecorded counts failed attempts written to the ledger
	LoginFailuresRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "failures_recorded_total",
			Help:      "Failed login attempts recorded in the attempt ledger",
		},
	)

	// LedgerRecordsPruned counts stale ledger records removed by the pruner
	LedgerRecordsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "throttle",
			Name:      "ledger_pruned_total",
			Help:      "Stale attempt ledger records removed by the background pruner",
		},
	)
)

var (
	// QuotaConsumption counts message quota increments by outcome (consumed, exhausted, rejected, error)
	QuotaConsumption = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "consume_total",
			Help:      "Message quota consume attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LowBalanceWarnings counts last-message warnings raised to callers
	LowBalanceWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "low_balance_warnings_total",
			Help:      "Low balance warnings raised when one message remains",
		},
	)

	// ActivityEvents counts activity recording attempts by type and outcome
	ActivityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "activity",
			Name:      "events_total",
			Help:      "Activity events by type and outcome",
		},
		[]string{"activity_type", "outcome"},
	)

	// StoreCallDuration measures external store calls in seconds
	StoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "call_duration_seconds",
			Help:      "External store call duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

// ObserveStoreCall records the duration of an external store call started at start
func ObserveStoreCall(operation string, start time.Time) {
	StoreCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records HTTP metrics labelled by chi route pattern
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routePattern keeps label cardinality bounded by preferring the chi pattern over the raw path
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return "unmatched"
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
