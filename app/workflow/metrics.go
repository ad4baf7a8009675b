package workflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	sideEffects *prometheus.CounterVec
	reminders   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advflow_operations_total",
				Help: "Engine operations by name and resulting error kind",
			},
			[]string{"operation", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "advflow_operation_duration_seconds",
				Help:    "Duration of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sideEffects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advflow_action_side_effects_total",
				Help: "Action side effects by action type and result",
			},
			[]string{"type", "result"},
		),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advflow_reminders_sent_total",
			Help: "Reminder emails sent by the sweep",
		}),
	}
	m.registry.MustRegister(m.operations, m.duration, m.sideEffects, m.reminders)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = errorKind(err)
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) sideEffect(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = errorKind(err)
	}
	m.sideEffects.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) reminderSent() {
	if m == nil {
		return
	}
	m.reminders.Inc()
}
