package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wallet",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method"},
	)

	applyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "coordinator",
			Name:      "apply_total",
			Help:      "Total Apply calls by intent kind and outcome.",
		},
		[]string{"intent", "outcome"},
	)

	applyRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "coordinator",
			Name:      "apply_retries_total",
			Help:      "Internal retries of Apply on transient failures.",
		},
	)

	idempotentReplays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wallet",
			Subsystem: "coordinator",
			Name:      "idempotent_replays_total",
			Help:      "Apply calls answered from a stored idempotency record.",
		},
	)
)

func init() {
	Registry.MustRegister(httpRequests, httpDuration, applyTotal, applyRetries, idempotentReplays)
}

// ObserveApply records the outcome of a coordinator Apply call.
func ObserveApply(intent, outcome string) {
	applyTotal.WithLabelValues(intent, outcome).Inc()
}

// ObserveRetry records one internal retry.
func ObserveRetry() {
	applyRetries.Inc()
}

// ObserveReplay records an idempotent replay.
func ObserveReplay() {
	idempotentReplays.Inc()
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware instruments HTTP handlers.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}
