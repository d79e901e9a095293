package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobStorePoolConns) }

var jobStorePoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "content_job_store_pool_connections",
		Help: "Connections in the job store pool, by state.",
	},
	[]string{"state"}, // 'total', 'idle', 'in_use'
)

func SetJobStorePoolConns(total, idle, inUse int32) {
	jobStorePoolConns.WithLabelValues("total").Set(float64(total))
	jobStorePoolConns.WithLabelValues("idle").Set(float64(idle))
	jobStorePoolConns.WithLabelValues("in_use").Set(float64(inUse))
}
