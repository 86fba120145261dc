package svcloop

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the prometheus collectors updated by the supervisor and
// the connection server. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	RunRequests   *prometheus.CounterVec
	Alerts        *prometheus.CounterVec

	Connections       *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
}

// NewMetrics creates the collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "supervisor",
				Name:      "cycles_total",
				Help:      "Total number of work unit invocations",
			},
			[]string{"status"},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "supervisor",
				Name:      "cycle_duration_seconds",
				Help:      "Work unit invocation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		RunRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "supervisor",
				Name:      "run_requests_total",
				Help:      "Total number of immediate run requests",
			},
			[]string{"source"},
		),

		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "supervisor",
				Name:      "alerts_total",
				Help:      "Total number of alerts by delivery status",
			},
			[]string{"status"},
		),

		Connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "connections_total",
				Help:      "Total number of finished connections by outcome",
			},
			[]string{"outcome"},
		),

		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "active_connections",
				Help:      "Number of connections being handled",
			},
		),
	}
}

// Register registers every collector.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Cycles,
		m.CycleDuration,
		m.RunRequests,
		m.Alerts,
		m.Connections,
		m.ActiveConnections,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "failed to register collector")
		}
	}

	return nil
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(d time.Duration, failed bool) {
	if m == nil {
		return
	}

	status := "ok"
	if failed {
		status = "failed"
	}

	m.Cycles.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// ObserveRunRequest records a run request from the given source.
func (m *Metrics) ObserveRunRequest(source string) {
	if m == nil {
		return
	}
	m.RunRequests.WithLabelValues(source).Inc()
}

// ObserveAlert records an alert delivery attempt.
func (m *Metrics) ObserveAlert(err error) {
	if m == nil {
		return
	}

	switch {
	case err == nil:
		m.Alerts.WithLabelValues("sent").Inc()
	case errors.Is(err, ErrAlertSuppressed):
		m.Alerts.WithLabelValues("suppressed").Inc()
	default:
		m.Alerts.WithLabelValues("failed").Inc()
	}
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

// ConnClosed records a finished connection with its outcome, one of
// "completed", "early" or "error".
func (m *Metrics) ConnClosed(outcome string) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.Connections.WithLabelValues(outcome).Inc()
}
