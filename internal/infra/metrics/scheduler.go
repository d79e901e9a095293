package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(schedulerMaterializedTotal, schedulerSkippedTotal, schedulerTriggers) }

var schedulerMaterializedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scheduler_jobs_materialized_total",
		Help: "Jobs created by the recurring scheduler, by topic source.",
	},
	[]string{"source"},
)

var schedulerSkippedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "scheduler_fires_skipped_total",
		Help: "Trigger fires skipped by the cooldown guard.",
	},
)

var schedulerTriggers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "scheduler_active_triggers",
		Help: "Currently registered recurring triggers.",
	},
)

func IncSchedulerMaterialized(source string) {
	schedulerMaterializedTotal.WithLabelValues(norm(source)).Inc()
}

func IncSchedulerSkipped() { schedulerSkippedTotal.Inc() }

func SetSchedulerTriggers(n int) { schedulerTriggers.Set(float64(n)) }
