package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltlock_cache_operations_total",
			Help: "Total number of cache operations by outcome",
		},
		[]string{"operation", "status"},
	)

	cacheCorruptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voltlock_cache_corrupted_entries_total",
			Help: "Total number of cache entries that failed to decode and read as absent",
		},
	)
)

func recordCacheOperation(operation, status string) {
	cacheOperationsTotal.WithLabelValues(operation, status).Inc()
}

func recordCacheCorrupted() {
	cacheCorruptedTotal.Inc()
}
