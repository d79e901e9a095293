package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsFinishedTotal, jobStageSeconds, jobsInFlight) }

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "content_jobs_finished_total",
		Help: "Total number of content jobs finished, labeled by final status.",
	},
	[]string{"status"}, // 'ready_for_review', 'published', 'failed'
)

var jobStageSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "content_job_stage_seconds",
		Help:    "Wall time of each pipeline stage.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"stage", "success"},
)

var jobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "content_jobs_in_flight",
		Help: "Jobs currently claimed by the worker.",
	},
)

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveStage(stage string, d time.Duration, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	jobStageSeconds.WithLabelValues(norm(stage), label).Observe(d.Seconds())
}

func SetJobsInFlight(n int) {
	jobsInFlight.Set(float64(n))
}
