// Package metrics exposes the small set of pipeline-runtime counters the
// runtime itself legitimately owns: queue depth and per-stage job
// duration. This is deliberately not a monitoring/alerting layer (that is
// an explicit Non-goal) — just the gauges/histograms a worker updates
// about its own work.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dtcforge",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Current length of a named job queue.",
	}, []string{"queue"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dtcforge",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of a single stage job.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage", "outcome"})

	JobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dtcforge",
		Subsystem: "pipeline",
		Name:      "jobs_total",
		Help:      "Count of stage jobs processed, by stage and outcome.",
	}, []string{"stage", "outcome"})

	ReaperRequeuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dtcforge",
		Subsystem: "pipeline",
		Name:      "reaper_requeued_total",
		Help:      "Count of documents the reaper found stuck and re-pushed to their stage's queue.",
	}, []string{"stage"})
)

// Registry is a dedicated registry rather than the global default, so a
// worker process can expose metrics without colliding with anything else
// that happens to import client_golang.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(QueueDepth, StageDuration, JobsTotal, ReaperRequeuedTotal)
}
