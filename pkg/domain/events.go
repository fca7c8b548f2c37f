package domain

import (
	"context"
	"time"
)

// HookEventType defines the category of an engine event.
type HookEventType string

const (
	HookNodeEnter           HookEventType = "node_enter"
	HookNodeLeave           HookEventType = "node_leave"
	HookUnsupportedOperator HookEventType = "unsupported_operator"
	HookTransition          HookEventType = "transition"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      HookEventType `json:"type"`
	ChatID    string        `json:"chat_id"`
	FlowID    string        `json:"flow_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeKind NodeKind `json:"node_kind"`
}

// OperatorEvent is fired when a condition uses an operator the evaluator does not know.
type OperatorEvent struct {
	EventBase
	NodeID   string `json:"node_id"`
	Operator string `json:"operator"`
	Variable string `json:"variable"`
}

// TransitionEvent summarizes one finished advance.
type TransitionEvent struct {
	EventBase
	Signal Signal `json:"signal"`
	Reason string `json:"reason,omitempty"`
	Steps  int    `json:"steps"`
	Err    error  `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter           func(context.Context, *NodeEvent)
	OnNodeLeave           func(context.Context, *NodeEvent)
	OnUnsupportedOperator func(context.Context, *OperatorEvent)
	OnTransition          func(context.Context, *TransitionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnNodeEnter:           chain(h.OnNodeEnter, other.OnNodeEnter),
		OnNodeLeave:           chain(h.OnNodeLeave, other.OnNodeLeave),
		OnUnsupportedOperator: chain(h.OnUnsupportedOperator, other.OnUnsupportedOperator),
		OnTransition:          chain(h.OnTransition, other.OnTransition),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
