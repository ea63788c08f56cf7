// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	// Bus metrics
	EventsPublished  *prometheus.CounterVec
	EventsDispatched *prometheus.CounterVec
	HandlerErrors    *prometheus.CounterVec
	QueueDepth       prometheus.Gauge

	// Collector metrics
	CollectionCycles   *prometheus.CounterVec
	CollectionDuration prometheus.Histogram
	ProviderRequests   *prometheus.CounterVec
	RateLimitSkips     *prometheus.CounterVec

	// Storage metrics
	TicksStored prometheus.Counter
	StoreErrors *prometheus.CounterVec

	// Stream metrics
	StreamFrames     prometheus.Counter
	StreamReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tokenpulse"
	}

	return &Metrics{
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Total number of events published to the bus",
		}, []string{"event_type"}),
		EventsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_dispatched_total",
			Help:      "Total number of events dispatched to handlers",
		}, []string{"event_type"}),
		HandlerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_errors_total",
			Help:      "Total number of handler errors, panics included",
		}, []string{"event_type"}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Events currently waiting in the bus queue",
		}),

		CollectionCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycles_total",
			Help:      "Total number of collection cycles by status",
		}, []string{"status"}),
		CollectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of collection cycles",
			Buckets:   prometheus.DefBuckets,
		}),
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "provider_requests_total",
			Help:      "Total number of provider requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		RateLimitSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collector",
			Name:      "rate_limit_skips_total",
			Help:      "Provider calls skipped because the rate window was saturated",
		}, []string{"provider"}),

		TicksStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "ticks_stored_total",
			Help:      "Total number of price ticks written to storage",
		}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total number of storage errors by operation",
		}, []string{"operation"}),

		StreamFrames: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "Total number of WebSocket frames received",
		}),
		StreamReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventPublished increments the published events counter.
func RecordEventPublished(eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDispatched increments the dispatched events counter.
func RecordEventDispatched(eventType string) {
	DefaultMetrics.EventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordHandlerError increments the handler error counter.
func RecordHandlerError(eventType string) {
	DefaultMetrics.HandlerErrors.WithLabelValues(eventType).Inc()
}

// UpdateQueueDepth sets the current bus queue depth.
func UpdateQueueDepth(depth int) {
	DefaultMetrics.QueueDepth.Set(float64(depth))
}

// RecordCycle records one collection cycle with its duration.
func RecordCycle(status string, durationSeconds float64) {
	DefaultMetrics.CollectionCycles.WithLabelValues(status).Inc()
	DefaultMetrics.CollectionDuration.Observe(durationSeconds)
}

// RecordProviderRequest records a provider call outcome ("success"/"error").
func RecordProviderRequest(provider, outcome string) {
	DefaultMetrics.ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordRateLimitSkip records a provider call skipped by the rate window.
func RecordRateLimitSkip(provider string) {
	DefaultMetrics.RateLimitSkips.WithLabelValues(provider).Inc()
}

// RecordTickStored increments the stored ticks counter.
func RecordTickStored() {
	DefaultMetrics.TicksStored.Inc()
}

// RecordStoreError records a storage failure for an operation.
func RecordStoreError(operation string) {
	DefaultMetrics.StoreErrors.WithLabelValues(operation).Inc()
}

// RecordStreamFrame increments the received frames counter.
func RecordStreamFrame() {
	DefaultMetrics.StreamFrames.Inc()
}

// RecordStreamReconnect increments the reconnect counter.
func RecordStreamReconnect() {
	DefaultMetrics.StreamReconnects.Inc()
}
