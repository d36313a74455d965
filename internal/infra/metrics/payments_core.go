package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayCallsTotal,
		gatewayCallDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Orders by status reached (initiated/completed/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed orders in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	// result: ok|unavailable|rejected
	gatewayCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_calls_total",
			Help: "Calls to the payment gateway by operation and result.",
		},
		[]string{"provider", "op", "result"},
	)

	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Latency of payment gateway calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "op"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func ObserveGatewayCall(provider, op, result string, seconds float64) {
	gatewayCallsTotal.WithLabelValues(norm(provider), norm(op), norm(result)).Inc()
	gatewayCallDuration.WithLabelValues(norm(provider), norm(op)).Observe(seconds)
}
