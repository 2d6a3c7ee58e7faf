// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RouterRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_router_requests_total",
			Help: "Routed questions by final intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	RouterClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_classifications_total",
			Help: "Intent classifications by method",
		},
		[]string{"method"},
	)

	RouterThresholdOverrides = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_threshold_overrides_total",
			Help: "Low-confidence predictions rerouted to query_rag",
		},
		[]string{"predicted"},
	)

	RouterFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_capability_fallbacks_total",
			Help: "Capability failures that fell back to query_rag",
		},
		[]string{"from"},
	)

	RouterCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"intent", "result"},
	)

	RouterDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_degraded_responses_total",
			Help: "Degraded responses by intent",
		},
		[]string{"intent"},
	)

	RouterLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisor_route_duration_seconds",
			Help:    "End-to-end routing latency",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 90},
		},
		[]string{"intent", "cache"},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_cache_invalidated_keys_total",
			Help: "Response cache keys removed by invalidation",
		},
	)
)
