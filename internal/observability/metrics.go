package observability

import (
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitsnap_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twitsnap_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DownstreamRequests counts collaborator calls by service, operation and outcome.
	DownstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitsnap_downstream_requests_total",
		Help: "Total number of calls to collaborator services",
	}, []string{"service", "operation", "outcome"})

	// DownstreamLatency records collaborator call latency.
	DownstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twitsnap_downstream_latency_seconds",
		Help:    "Collaborator call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "operation"})

	// FeedSnapsReturned records how many snaps a feed page returned, by source mix.
	FeedSnapsReturned = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twitsnap_feed_snaps_returned",
		Help:    "Number of snaps returned per feed request",
		Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
	}, []string{"mode"})

	// SnapEvents counts snap lifecycle events by type.
	SnapEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitsnap_snap_events_total",
		Help: "Total snap lifecycle events",
	}, []string{"event"})

	// BackgroundTasks counts best-effort background tasks by name and outcome.
	BackgroundTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitsnap_background_tasks_total",
		Help: "Total best-effort background tasks",
	}, []string{"task", "outcome"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// TrackDownstream returns a function that records a collaborator call's latency and outcome.
func TrackDownstream(service, operation string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		DownstreamLatency.WithLabelValues(service, operation).Observe(time.Since(start).Seconds())
		DownstreamRequests.WithLabelValues(service, operation, outcome).Inc()
	}
}

var (
	httpMetricsOnce sync.Once
	httpMetrics     *fiberprometheus.FiberPrometheus
)

// HTTPMetrics returns the process-wide Fiber request metrics. Collectors are
// registered on the default registry once, so every Server shares them.
func HTTPMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	httpMetricsOnce.Do(func() {
		httpMetrics = fiberprometheus.New(serviceName)
	})
	return httpMetrics
}
