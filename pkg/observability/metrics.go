package observability

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/ramal/pkg/domain"
)

const namespace = "ramal"

// Metrics holds the Prometheus collectors for the flow engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	engineErrs  *prometheus.CounterVec
	unsupported *prometheus.CounterVec
	nodeEntries *prometheus.CounterVec
	handoffs    *prometheus.CounterVec
	steps       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Collectors already registered (e.g. by a previous instance sharing the
// registry) are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "transitions_total",
			Help:      "Advances processed, by flow and resulting signal",
		}, []string{"flow_id", "signal"}),

		engineErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "errors_total",
			Help:      "Advances that ended in an engine error, by error kind",
		}, []string{"kind"}),

		unsupported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "unsupported_operators_total",
			Help:      "Condition predicates skipped because of an unknown operator",
		}, []string{"flow_id", "operator"}),

		nodeEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "node_entries_total",
			Help:      "Node visits, by flow and node",
		}, []string{"flow_id", "node_id"}),

		handoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "handoff",
			Name:      "total",
			Help:      "Chats handed to the agent queue, by reason",
		}, []string{"reason"}),

		steps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "steps_per_advance",
			Help:      "Nodes executed per advance",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 25},
		}),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.transitions, err = register(reg, m.transitions); err != nil {
		return nil, err
	}
	if m.engineErrs, err = register(reg, m.engineErrs); err != nil {
		return nil, err
	}
	if m.unsupported, err = register(reg, m.unsupported); err != nil {
		return nil, err
	}
	if m.nodeEntries, err = register(reg, m.nodeEntries); err != nil {
		return nil, err
	}
	if m.handoffs, err = register(reg, m.handoffs); err != nil {
		return nil, err
	}
	if m.steps, err = register(reg, m.steps); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Hooks returns lifecycle hooks feeding the engine counters.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	if m == nil {
		return domain.LifecycleHooks{}
	}
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.nodeEntries.WithLabelValues(e.FlowID, e.NodeID).Inc()
		},
		OnUnsupportedOperator: func(_ context.Context, e *domain.OperatorEvent) {
			m.unsupported.WithLabelValues(e.FlowID, e.Operator).Inc()
		},
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.transitions.WithLabelValues(e.FlowID, string(e.Signal)).Inc()
			m.steps.Observe(float64(e.Steps))
			if e.Signal == domain.SignalError {
				m.engineErrs.WithLabelValues(domain.ErrorKind(e.Err)).Inc()
			}
		},
	}
}

// ObserveHandoff counts a chat handed to the agent queue.
func (m *Metrics) ObserveHandoff(reason string) {
	if m == nil {
		return
	}
	m.handoffs.WithLabelValues(reason).Inc()
}
