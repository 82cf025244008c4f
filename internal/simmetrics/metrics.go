// Package simmetrics exposes harness counters over a private prometheus
// registry so embedding tools can scrape them without polluting the global
// registry.
package simmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the harness-wide instruments.
type Metrics struct {
	registry *prometheus.Registry

	NodesCreated        prometheus.Counter
	NodesDisposed       prometheus.Counter
	InitializerFailures prometheus.Counter
	StateChanges        *prometheus.CounterVec
	ActiveFaults        prometheus.Gauge
	ThinClients         prometheus.Gauge
	TicksTotal          prometheus.Counter
}

// New creates and registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peersim_nodes_created_total",
			Help: "Total simulated peer nodes created.",
		}),
		NodesDisposed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peersim_nodes_disposed_total",
			Help: "Total simulated peer nodes disposed.",
		}),
		InitializerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peersim_initializer_failures_total",
			Help: "Total thin-client initializer failures.",
		}),
		StateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "peersim_connection_state_changes_total",
			Help: "Connection state changes by resulting state.",
		}, []string{"state"}),
		ActiveFaults: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peersim_active_faults",
			Help: "Nodes with a lag spike or forced timeout active.",
		}),
		ThinClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peersim_thin_clients",
			Help: "Current thin-client fleet size.",
		}),
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "peersim_ticks_total",
			Help: "Scheduler ticks processed.",
		}),
	}

	m.registry.MustRegister(
		m.NodesCreated,
		m.NodesDisposed,
		m.InitializerFailures,
		m.StateChanges,
		m.ActiveFaults,
		m.ThinClients,
		m.TicksTotal,
	)
	return m
}

// Registry returns the registry all instruments are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
