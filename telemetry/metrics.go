package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/gfxd/gpu-mode-service/models"
)

const namespace = "gfxd"

// Metrics exposes mode, transition and power state metrics. It is the controller's observer.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionDuration prometheus.Histogram
	mode               *prometheus.GaugeVec
	power              *prometheus.GaugeVec
	pruned             prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Finished mode transitions grouped by target mode and status.",
		}, []string{"target", "status"}),
		transitionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transition_duration_seconds",
			Help:      "Time from dispatch to the end of a mode transition.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode",
			Help:      "Current GPU mode, 1 for the active mode.",
		}, []string{"mode"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dgpu_power_state",
			Help:      "Runtime power state of the dedicated GPU, 1 for the current state.",
		}, []string{"state"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_pruned_total",
			Help:      "Transition history records removed by retention.",
		}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.transitionDuration,
		m.mode,
		m.power,
		m.pruned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TransitionFinished(t models.Transition) {
	m.transitions.WithLabelValues(string(t.Target), string(t.Status)).Inc()
	if t.FinishedAt != nil && !t.CreatedAt.IsZero() {
		m.transitionDuration.Observe(t.FinishedAt.Sub(t.CreatedAt).Seconds())
	}
	zlog.Sugar().Debugf("transition to %s finished: %s", t.Target, t.Status)
}

func (m *Metrics) ModeChanged(mode models.GpuMode) {
	for _, candidate := range models.GpuModes {
		value := 0.0
		if candidate == mode {
			value = 1
		}
		m.mode.WithLabelValues(string(candidate)).Set(value)
	}
}

func (m *Metrics) ObservePower(state models.PowerState) {
	for _, candidate := range []models.PowerState{models.PowerActive, models.PowerSuspended, models.PowerOff, models.PowerUnknown} {
		value := 0.0
		if candidate == state {
			value = 1
		}
		m.power.WithLabelValues(string(candidate)).Set(value)
	}
}

func (m *Metrics) ObservePruned(n int64) {
	m.pruned.Add(float64(n))
}
