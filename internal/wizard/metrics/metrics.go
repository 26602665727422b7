package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks wizard sessions and step transitions.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	TransitionDuration *prometheus.HistogramVec
	ActiveSessions     prometheus.Gauge
	SessionsStarted    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "handover_wizard_transitions_total",
			Help: "Wizard step transitions by step and outcome",
		}, []string{"step", "outcome"}),
		TransitionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "handover_wizard_transition_duration_seconds",
			Help:    "Duration of wizard step transitions including persistence",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"step"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "handover_wizard_active_sessions",
			Help: "Wizard sessions currently held in memory",
		}),
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "handover_wizard_sessions_started_total",
			Help: "Wizard sessions started, by whether a registration was resumed",
		}, []string{"mode"}),
	}
}

// ObserveTransition records one Complete call. outcome is "ok" or an error code.
func (m *Metrics) ObserveTransition(step, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(step, outcome).Inc()
	m.TransitionDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementSessionStarted(resumed bool) {
	if m == nil {
		return
	}
	mode := "new"
	if resumed {
		mode = "resumed"
	}
	m.SessionsStarted.WithLabelValues(mode).Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) DecrementActiveSessions() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
