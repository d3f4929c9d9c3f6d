// Package metrics exposes the service's prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ViolationsCreated prometheus.Counter
	PaymentsProcessed prometheus.Counter
	PaymentsRefunded  prometheus.Counter
	AuthFailures      prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ViolationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tvms_violations_created_total",
			Help: "Total number of violations registered",
		}),
		PaymentsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tvms_payments_processed_total",
			Help: "Total number of payments successfully processed",
		}),
		PaymentsRefunded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tvms_payments_refunded_total",
			Help: "Total number of payments refunded",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tvms_auth_failures_total",
			Help: "Total number of failed login attempts",
		}),
	}
}
