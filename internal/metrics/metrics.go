package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_webhooks_total",
			Help: "Inbound webhooks by outcome",
		},
		[]string{"outcome"}, // enqueued|rejected|unavailable
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_deliveries_total",
			Help: "Chat deliveries by stage and platform",
		},
		[]string{"stage", "platform"}, // sent|failed|invalid , telegram|slack
	)

	DeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_delivery_attempts_total",
			Help: "Outbound chat POST attempts, including retries",
		},
		[]string{"platform"},
	)

	RequeuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookrelay_requeued_total",
			Help: "Failed records republished by the worker",
		},
		[]string{"target"}, // retry|dead_letter
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		WebhooksTotal,
		DeliveriesTotal,
		DeliveryAttempts,
		RequeuedTotal,
	)
}
