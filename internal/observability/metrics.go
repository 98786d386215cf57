package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts routing commands by action and outcome code.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filetrack_transitions_total",
		Help: "Total routing commands by action and outcome",
	}, []string{"action", "outcome"})

	// TransitionLatency records command latency including lock wait.
	TransitionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "filetrack_transition_latency_seconds",
		Help:    "Routing command latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// RedListedTotal counts files flipped into the red list.
	RedListedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filetrack_red_listed_total",
		Help: "Total number of files red-listed by the monitor",
	})

	// SweepDuration records red-list sweep duration.
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "filetrack_sweep_duration_seconds",
		Help:    "Red-list monitor sweep duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SweepFileErrors counts per-file failures inside sweeps.
	SweepFileErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filetrack_sweep_file_errors_total",
		Help: "Total number of files that failed to process during a sweep",
	})

	// NotificationsDropped counts notifications lost to backpressure or sink errors.
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filetrack_notifications_dropped_total",
		Help: "Total number of notifications dropped",
	}, []string{"reason"})

	// DesksAutoCreated counts desks provisioned on saturation.
	DesksAutoCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filetrack_desks_auto_created_total",
		Help: "Total number of desks auto-created",
	})
)

// TrackTransition returns a function that records latency and outcome when called (e.g. defer).
func TrackTransition(action string) func(outcome string) {
	start := time.Now()
	return func(outcome string) {
		TransitionLatency.WithLabelValues(action).Observe(time.Since(start).Seconds())
		TransitionsTotal.WithLabelValues(action, outcome).Inc()
	}
}
