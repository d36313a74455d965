package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		accessChecksTotal,
		rateLimitTriggeredTotal,
	)
}

var (
	accessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Access checks by result (granted/denied).",
		},
		[]string{"result"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_triggered_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
		[]string{"route"},
	)
)

func IncAccessCheck(result string) {
	accessChecksTotal.WithLabelValues(norm(result)).Inc()
}

func IncRateLimitTriggered(route string) {
	rateLimitTriggeredTotal.WithLabelValues(norm(route)).Inc()
}
