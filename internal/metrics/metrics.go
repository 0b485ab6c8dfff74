package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_events_total",
			Help: "Emitted domain events by source app",
		},
		[]string{"source_app"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hookline_deliveries_total",
			Help: "Delivery attempts by outcome",
		},
		[]string{"outcome"}, // success|retrying|failed
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hookline_delivery_duration_seconds",
			Help:    "Latency of outbound webhook requests",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EventsTotal,
		DeliveriesTotal,
		DeliveryDuration,
	)
}
