package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(outboxDispatchTotal, outboxBacklog) }

var (
	outboxDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_dispatch_total",
			Help: "Outbox deliveries by sink and result (sent/error).",
		},
		[]string{"sink", "result"},
	)

	outboxBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_batch_size",
			Help: "Events claimed by the last relay tick.",
		},
	)
)

func IncOutboxDispatch(sink, result string) {
	outboxDispatchTotal.WithLabelValues(norm(sink), norm(result)).Inc()
}

func SetOutboxBatch(n int) {
	outboxBacklog.Set(float64(n))
}
