package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statuspulse_tasks_published_total",
			Help: "Check tasks placed on the work queue.",
		},
	)

	PublishCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statuspulse_publish_cycles_total",
			Help: "Publisher cycles by outcome.",
		},
		[]string{"outcome"}, // ok, error, skipped
	)

	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statuspulse_probes_total",
			Help: "Reachability probes by classification.",
		},
		[]string{"status"}, // UP, DOWN
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "statuspulse_probe_duration_seconds",
			Help:    "Duration of reachability probes.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statuspulse_events_written_total",
			Help: "Uptime events durably appended to the store.",
		},
	)

	WriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statuspulse_event_write_failures_total",
			Help: "Failed event-store batch writes.",
		},
	)

	Reclaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statuspulse_deliveries_reclaimed_total",
			Help: "Stale deliveries taken over from crashed or stuck consumers.",
		},
	)

	QueuePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statuspulse_queue_pending",
			Help: "Claimed-but-unacknowledged deliveries in the consumer group.",
		},
	)

	QueueOldestIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "statuspulse_queue_oldest_idle_seconds",
			Help: "Idle time of the oldest pending delivery.",
		},
	)
)
