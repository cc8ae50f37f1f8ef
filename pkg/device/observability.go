package device

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltlock_poll_cycles_total",
			Help: "Total number of poll cycles by outcome",
		},
		[]string{"status"},
	)

	pollCycleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voltlock_poll_cycle_seconds",
			Help:    "Duration of completed poll cycles",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voltlock_commands_total",
			Help: "Total number of control commands by type and outcome",
		},
		[]string{"type", "status"},
	)
)

func recordPollCycle(status string, elapsed time.Duration) {
	pollCyclesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		pollCycleSeconds.Observe(elapsed.Seconds())
	}
}

func recordCommand(commandType CommandType, status string) {
	commandsTotal.WithLabelValues(string(commandType), status).Inc()
}
