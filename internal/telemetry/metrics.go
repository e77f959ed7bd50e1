// Package telemetry provides observability primitives for the
// board-watch engine.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimiterWait     prometheus.Histogram
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	EventsPublished     *prometheus.CounterVec // labels: board, kind
	PollCyclesTotal     *prometheus.CounterVec // labels: board
	RollbacksTotal      *prometheus.CounterVec // labels: board
	SubscribedBoards    prometheus.Gauge
	CircuitBreakerState *prometheus.GaugeVec   // labels: board
	CircuitBreakerTrips *prometheus.CounterVec // labels: board
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "http_requests_total",
			Help:      "Total upstream HTTP requests issued by the client facade, by status.",
		}, []string{"status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "rchan",
			Name:                            "http_request_duration_seconds",
			Help:                            "Upstream HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"kind"}),

		RateLimiterWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rchan",
			Name:      "rate_limiter_wait_seconds",
			Help:      "Time callers spent suspended in the rate limiter's Acquire.",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits (304 replays).",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses (200 responses carrying a fresh payload).",
		}),

		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "events_published_total",
			Help:      "Total events published to the stream, by board and kind.",
		}, []string{"board", "kind"}),

		PollCyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "poll_cycles_total",
			Help:      "Total completed board-worker polling cycles, by board.",
		}, []string{"board"}),

		RollbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "watermark_rollbacks_total",
			Help:      "Total watermark rollbacks from failed thread fetches, by board.",
		}, []string{"board"}),

		SubscribedBoards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rchan",
			Name:      "subscribed_boards",
			Help:      "Number of boards currently subscribed.",
		}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rchan",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per board (0=closed, 1=open, 2=half_open).",
		}, []string{"board"}),

		CircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rchan",
			Name:      "circuit_breaker_trips_total",
			Help:      "Total circuit breaker trips (closed/half-open to open transitions), by board.",
		}, []string{"board"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimiterWait,
		m.CacheHits,
		m.CacheMisses,
		m.EventsPublished,
		m.PollCyclesTotal,
		m.RollbacksTotal,
		m.SubscribedBoards,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}
