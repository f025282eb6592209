package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Persistence Metrics
var (
	// PersistSavesTotal tracks save requests by document and result
	// (saved, failed, skipped_clean, skipped_in_flight).
	PersistSavesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_persist_saves_total",
			Help: "Total document save requests by document and result",
		},
		[]string{"document", "result"},
	)

	// PersistSaveDuration tracks the round trip of outbound saves in seconds.
	PersistSaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lodestone_persist_save_duration_seconds",
			Help:    "Outbound document save duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"document"},
	)
)

// Session Metrics
var (
	// SessionsCurrent tracks the number of sessions held in memory.
	SessionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lodestone_sessions_current",
			Help: "Number of authenticated sessions held in memory",
		},
	)

	// SessionOperationsTotal tracks lifecycle operations by operation and outcome.
	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_session_operations_total",
			Help: "Total session lifecycle operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Host Metrics
var (
	// HostRequestsTotal tracks requests served by the backing store host.
	HostRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lodestone_host_requests_total",
			Help: "Total backing store requests by endpoint and status code",
		},
		[]string{"endpoint", "code"},
	)
)
