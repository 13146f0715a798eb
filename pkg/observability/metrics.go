package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/tick/pkg/domain"
)

// Metrics holds the engine collectors on a dedicated registry.
type Metrics struct {
	Registry *prometheus.Registry

	Turns           *prometheus.CounterVec
	TurnInvocations *prometheus.HistogramVec
	Actions         *prometheus.CounterVec
	ActionErrors    *prometheus.CounterVec
	ActionDuration  *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tick_turns_total",
				Help: "Turns processed, by outcome (success, final or failure kind).",
			},
			[]string{"story", "outcome"},
		),
		TurnInvocations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tick_turn_invocations",
				Help:    "Actions invoked per turn.",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
			},
			[]string{"story"},
		),
		Actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tick_action_invocations_total",
				Help: "Action invocations.",
			},
			[]string{"story", "action"},
		),
		ActionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tick_action_errors_total",
				Help: "Action invocations whose handler failed.",
			},
			[]string{"story", "action"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tick_action_duration_seconds",
				Help:    "Duration of handler executions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"story", "action"},
		),
	}
	m.Registry.MustRegister(m.Turns, m.TurnInvocations, m.Actions, m.ActionErrors, m.ActionDuration)
	return m
}

// Hooks returns the lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			m.Turns.WithLabelValues(e.Story, e.Outcome).Inc()
			m.TurnInvocations.WithLabelValues(e.Story).Observe(float64(e.Invocations))
		},
		OnActionInvoke: func(_ context.Context, e *domain.ActionEvent) {
			m.Actions.WithLabelValues(e.Story, e.Action).Inc()
		},
		OnActionReturn: func(_ context.Context, e *domain.ActionEvent) {
			if e.IsError {
				m.ActionErrors.WithLabelValues(e.Story, e.Action).Inc()
			}
			m.ActionDuration.WithLabelValues(e.Story, e.Action).Observe(e.Duration.Seconds())
		},
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
