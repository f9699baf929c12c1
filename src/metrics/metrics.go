// Package metrics exposes relay counters and gauges in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors. Each instance owns its
// registry so tests can create them independently.
type Metrics struct {
	ActiveRooms       prometheus.Gauge
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	UpdatesRelayed    prometheus.Counter
	RoomsEvicted      prometheus.Counter
	AuthFailures      prometheus.Counter

	registry *prometheus.Registry
}

// New creates the relay collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_rooms",
			Help: "Number of rooms currently held in the registry.",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Number of currently open client connections.",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total client connections accepted since start.",
		}),
		UpdatesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_updates_relayed_total",
			Help: "Total document update fragments merged and relayed.",
		}),
		RoomsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_rooms_evicted_total",
			Help: "Total idle rooms evicted by the reaper.",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_auth_failures_total",
			Help: "Total connections rejected for invalid credentials.",
		}),
		registry: reg,
	}
}

// Handler returns the exposition endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
