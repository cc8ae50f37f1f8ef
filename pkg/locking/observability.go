package locking

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltlock_lock_acquire_total",
			Help: "Total number of lock acquisition attempts by outcome",
		},
		[]string{"resource", "status"},
	)

	lockWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltlock_lock_wait_seconds",
			Help:    "Time spent waiting for lock acquisition",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"resource"},
	)

	lockHoldSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voltlock_lock_hold_seconds",
			Help:    "Duration locks were held before release",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5, 10, 30},
		},
		[]string{"resource"},
	)

	lockReleaseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltlock_lock_release_total",
			Help: "Total number of lock release attempts by outcome",
		},
		[]string{"resource", "status"},
	)
)

func recordLockAcquire(resource, status string, waited time.Duration) {
	resource = normalizeLockLabel(resource)
	lockAcquireTotal.WithLabelValues(resource, normalizeLockLabel(status)).Inc()
	if status == "acquired" {
		lockWaitSeconds.WithLabelValues(resource).Observe(waited.Seconds())
	}
}

func recordLockHold(resource string, held time.Duration) {
	lockHoldSeconds.WithLabelValues(normalizeLockLabel(resource)).Observe(held.Seconds())
}

func recordLockRelease(resource, status string) {
	lockReleaseTotal.WithLabelValues(normalizeLockLabel(resource), normalizeLockLabel(status)).Inc()
}

func normalizeLockLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
