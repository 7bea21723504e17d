package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of a movement registration.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics for the logbook. Each instance owns its registry so tests and
// multiple servers in one process never collide. A nil *Metrics is a valid
// no-op.
type Metrics struct {
	registry *prometheus.Registry

	// Registrations by control point, direction and outcome
	Movements *prometheus.CounterVec

	// Synthetic zone exits by zone
	ImplicitClosures *prometheus.CounterVec

	// Detail record operations by kind and action (open, update, close)
	Details *prometheus.CounterVec

	// End-to-end registration latency by outcome
	RegisterLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Movements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_movements_total",
			Help: "Movement registrations by control point, direction and outcome",
		}, []string{"point", "direction", "outcome"}),

		ImplicitClosures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_implicit_closures_total",
			Help: "Synthetic zone exits appended by the implicit-closure engine",
		}, []string{"zone"}),

		Details: f.NewCounterVec(prometheus.CounterOpts{
			Name: "garita_details_total",
			Help: "Detail record operations by kind and action",
		}, []string{"kind", "action"}),

		RegisterLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "garita_register_duration_seconds",
			Help:    "Duration of a movement registration including lock wait and commit",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncMovement(point, direction, outcome string) {
	if m != nil {
		m.Movements.WithLabelValues(point, direction, outcome).Inc()
	}
}

func (m *Metrics) IncImplicitClosure(zone string) {
	if m != nil {
		m.ImplicitClosures.WithLabelValues(zone).Inc()
	}
}

func (m *Metrics) IncDetail(kind, action string) {
	if m != nil {
		m.Details.WithLabelValues(kind, action).Inc()
	}
}

func (m *Metrics) ObserveRegister(outcome string, d time.Duration) {
	if m != nil {
		m.RegisterLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
