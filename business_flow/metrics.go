package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Successful allocations partitioned by family and by whether the counter was already hot
	sequenceAllocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_allocations_total",
			Help: "Sequence numbers handed out",
		},
		[]string{"family", "path"},
	)

	sequenceAllocationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sequence_allocation_failures_total",
			Help: "Allocation attempts that returned an error",
		},
		[]string{"family", "reason"},
	)

	dirtyMarkFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_tracker_mark_failures_total",
			Help: "Allocations whose parent could not be added to the dirty set",
		},
		[]string{"family"},
	)

	eventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Unconfirmed publishes tolerated because publishing is best effort",
		},
		[]string{"topic"},
	)

	reconcileKeysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_keys_total",
			Help: "Dirty parents processed by reconciliation",
		},
		[]string{"family", "result"},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of one reconciliation pass per family",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"family"},
	)
)
