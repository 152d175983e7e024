// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	PaymentsCreated   prometheus.Counter
	PaymentsCompleted prometheus.Counter
	PaymentsFailed    prometheus.Counter
	PaymentsRetried   prometheus.Counter
	SchedulesFired    prometheus.Counter
	SweepBacklog      prometheus.Gauge
}

// New registers the service metrics with the given registerer. Tests pass a
// fresh registry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PaymentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_payments_created_total",
			Help: "Payments created, including idempotent replays resolved to existing payments",
		}),
		PaymentsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_payments_completed_total",
			Help: "Payments that reached COMPLETED",
		}),
		PaymentsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_payments_failed_total",
			Help: "Processing attempts that ended in FAILED",
		}),
		PaymentsRetried: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_payments_retried_total",
			Help: "Payments re-processed by the retry sweep",
		}),
		SchedulesFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_schedules_fired_total",
			Help: "Schedule executions that produced a payment",
		}),
		SweepBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Name: "rentflow_sweep_backlog",
			Help: "Due payments found by the most recent sweep",
		}),
	}
}
