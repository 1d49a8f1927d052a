package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Per-collection repository calls, labelled by which side served them.
	RepositoryCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_calls_total",
			Help: "Total number of repository operations",
		},
		[]string{"collection", "method", "source"},
	)

	SyncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cycles_total",
			Help: "Reconciliation cycles, by outcome",
		},
		[]string{"result"},
	)

	SyncRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Locally created records pushed to the backend, by outcome",
		},
		[]string{"collection", "result"},
	)

	BackendReachable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backend_reachable",
			Help: "1 when the last backend probe succeeded, 0 otherwise",
		},
	)

	ProbeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backend_probe_duration_seconds",
			Help:    "Round-trip time of backend reachability probes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(RepositoryCalls, SyncCycles, SyncRecords, BackendReachable, ProbeDuration)
}
