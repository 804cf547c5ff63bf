// Package metrics holds the prometheus collectors of the call service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	sessionsActive    prometheus.Gauge
	connectionsActive prometheus.Gauge
	recordingRequests *prometheus.CounterVec
	hostMigrations    prometheus.Counter
	joinFailures      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "podcall_sessions_active",
			Help: "Call sessions currently live in this process.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "podcall_connections_active",
			Help: "Open /call/ws connections.",
		}),
		recordingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podcall_recording_requests_total",
			Help: "Recording operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		hostMigrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podcall_host_migrations_total",
			Help: "Confirmed host migrations.",
		}),
		joinFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podcall_join_failures_total",
			Help: "Rejected join attempts by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsActive,
		m.connectionsActive,
		m.recordingRequests,
		m.hostMigrations,
		m.joinFailures,
	)
	return m
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *Metrics) Recording(op, outcome string) {
	if m == nil {
		return
	}
	m.recordingRequests.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) HostMigrated() {
	if m == nil {
		return
	}
	m.hostMigrations.Inc()
}

func (m *Metrics) JoinFailed(reason string) {
	if m == nil {
		return
	}
	m.joinFailures.WithLabelValues(reason).Inc()
}
