package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voxsane-fleet/internal/fleet"
)

// Metrics holds the fleet collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	Drones         *prometheus.GaugeVec
	Battery        *prometheus.GaugeVec
	Alerts         *prometheus.GaugeVec
	AlertsPushed   prometheus.Counter
	Ticks          *prometheus.CounterVec
	TickFailures   *prometheus.CounterVec
	WriterFailures *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Drones: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_drones",
				Help: "Number of drones per status",
			},
			[]string{"status"},
		),
		Battery: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_drone_battery_percent",
				Help: "Battery level per drone",
			},
			[]string{"drone"},
		),
		Alerts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleet_alerts",
				Help: "Alerts in the feed per kind",
			},
			[]string{"kind"},
		),
		AlertsPushed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fleet_alerts_pushed_total",
				Help: "Total number of alerts added to the feed",
			},
		),
		Ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_ticks_total",
				Help: "Simulation callbacks run per task",
			},
			[]string{"task"},
		),
		TickFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_tick_failures_total",
				Help: "Simulation callbacks that failed or panicked per task",
			},
			[]string{"task"},
		),
		WriterFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sim_writer_failures_total",
				Help: "Export writes that returned an error per stream",
			},
			[]string{"stream"},
		),
	}
	m.Registry.MustRegister(m.Drones, m.Battery, m.Alerts, m.AlertsPushed, m.Ticks, m.TickFailures, m.WriterFailures)
	return m
}

// ObserveStore refreshes the gauges from the store's current state.
func (m *Metrics) ObserveStore(s *fleet.Store) {
	stats := s.Stats()
	for status, n := range stats.ByStatus {
		m.Drones.WithLabelValues(string(status)).Set(float64(n))
	}
	for _, d := range s.ListDrones() {
		m.Battery.WithLabelValues(d.Name).Set(d.Battery)
	}
	m.Alerts.WithLabelValues(string(fleet.AlertUrgent)).Set(float64(stats.UrgentAlerts))
	m.Alerts.WithLabelValues(string(fleet.AlertPending)).Set(float64(stats.PendingAlerts))
	m.Alerts.WithLabelValues(string(fleet.AlertResolved)).Set(float64(stats.ResolvedAlerts))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
