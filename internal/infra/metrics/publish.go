package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(publishAttemptsTotal, publishFallbacksTotal, publishRateLimited) }

var publishAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "publish_attempts_total",
		Help: "Publish attempts by platform, strategy and outcome.",
	},
	[]string{"platform", "strategy", "outcome"},
)

var publishFallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "publish_fallbacks_total",
		Help: "Direct-API attempts that fell back to browser-assisted.",
	},
	[]string{"platform"},
)

var publishRateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "publish_rate_limited_total",
		Help: "Attempts short-circuited by the account rate limit.",
	},
	[]string{"platform"},
)

func IncPublishAttempt(platform, strategy, outcome string) {
	publishAttemptsTotal.WithLabelValues(norm(platform), norm(strategy), norm(outcome)).Inc()
}

func IncPublishFallback(platform string) {
	publishFallbacksTotal.WithLabelValues(norm(platform)).Inc()
}

func IncPublishRateLimited(platform string) {
	publishRateLimited.WithLabelValues(norm(platform)).Inc()
}
