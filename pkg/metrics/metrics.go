package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journey_tiles_cache_hits_total",
		Help: "Total number of tile cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journey_tiles_cache_misses_total",
		Help: "Total number of tile cache misses",
	})

	CacheStores = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journey_tiles_cache_stores_total",
		Help: "Total number of tile cache store operations",
	})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journey_tiles_cache_evictions_total",
		Help: "Total number of tiles evicted to stay within the byte budget",
	})

	CacheBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journey_tiles_cache_bytes",
		Help: "Bytes currently held by the tile cache",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journey_tiles_cache_errors_total",
		Help: "Total number of tile cache persistence errors",
	}, []string{"operation"})

	// Backend latency, labelled by backend and operation.
	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journey_tiles_cache_operation_duration_seconds",
		Help:    "Duration of tile cache backend operations in seconds",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"backend", "operation"})

	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journey_tiles_upstream_requests_total",
		Help: "Total number of upstream tile productions by outcome",
	}, []string{"outcome"})

	UpstreamLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "journey_tiles_upstream_latency_seconds",
		Help:    "Latency of upstream tile productions in seconds",
		Buckets: prometheus.DefBuckets,
	})

	CoalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journey_tiles_coalesced_requests_total",
		Help: "Total number of resolutions whose upstream production was shared with concurrent requests",
	})

	InterceptedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journey_tiles_intercepted_requests_total",
		Help: "Total number of intercepted tile requests by response status",
	}, []string{"status"})

	PassthroughRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journey_tiles_passthrough_requests_total",
		Help: "Total number of requests handed to the default network path",
	}, []string{"reason"})

	WorkerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journey_tiles_worker_state",
		Help: "Current worker state (0 unregistered, 1 registering, 2 active, 3 failed)",
	})
)
