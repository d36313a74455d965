package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileTotal,
		reconcileDuration,
		callbackRequests,
		grantsTotal,
	)
}

var (
	// outcome: completed|failed|pending|not_found|in_flight|error
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_total",
			Help: "Reconciliation runs by trigger and outcome.",
		},
		[]string{"trigger", "outcome"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of a reconciliation run in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"trigger"},
	)

	// result: accepted|bad_signature|bad_body
	callbackRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_requests_total",
			Help: "Gateway callbacks received by result.",
		},
		[]string{"result"},
	)

	// result: granted|unchanged
	grantsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_grants_total",
			Help: "Entitlement grant attempts by result.",
		},
		[]string{"result"},
	)
)

func ObserveReconcile(trigger, outcome string, seconds float64) {
	reconcileTotal.WithLabelValues(norm(trigger), norm(outcome)).Inc()
	reconcileDuration.WithLabelValues(norm(trigger)).Observe(seconds)
}

func IncCallback(result string) {
	callbackRequests.WithLabelValues(norm(result)).Inc()
}

func IncGrant(result string) {
	grantsTotal.WithLabelValues(norm(result)).Inc()
}
