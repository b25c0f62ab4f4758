package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PointMutations counts charge/use calls by kind and outcome
var PointMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pincex_point_mutations_total",
		Help: "Total number of point mutations by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

// LockWait records how long callers waited for a per-user lock
var LockWait = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pincex_point_lock_wait_seconds",
		Help:    "Time spent waiting for the per-user point lock",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5},
	},
	[]string{"outcome"},
)

// Lock registry metrics
var (
	LockRegistrySize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pincex_point_lock_registry_size",
			Help: "Number of per-user lock handles currently installed",
		},
	)

	LockRegistryPurges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pincex_point_lock_registry_purges_total",
			Help: "Number of times the lock registry was cleared",
		},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pincex_point_http_requests_total",
			Help: "Total HTTP requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pincex_point_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
)

func init() {
	prometheus.MustRegister(PointMutations, LockWait)
	prometheus.MustRegister(LockRegistrySize, LockRegistryPurges)
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration)
}
