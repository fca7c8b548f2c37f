// Package handoff decides when a conversation leaves the bot for a human queue.
package handoff

import (
	"github.com/aretw0/ramal/pkg/domain"
)

// ActionKind is the decision of the controller.
type ActionKind string

const (
	ActionNone          ActionKind = "none"
	ActionAssignToQueue ActionKind = "assign_to_queue"
)

// Reasons reported with ActionAssignToQueue when the flow does not provide one.
const (
	ReasonRequested         = "requested"
	ReasonTurnLimit         = "turn_limit"
	ReasonEngineErrorPrefix = "engine_error:"
)

// DefaultMaxBotTurns is the anti-loop safety net applied when none is configured.
const DefaultMaxBotTurns = 30

// Action tells the caller what to do with the chat after a transition.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

// Handoff reports whether the action hands the chat to a human.
func (a Action) Handoff() bool { return a.Kind == ActionAssignToQueue }

// Controller maps engine results to handoff decisions. It is stateless and
// safe for concurrent use.
type Controller struct {
	maxBotTurns int
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxBotTurns sets how many advances a session may take before it is
// handed off. Zero or less disables the limit.
func WithMaxBotTurns(n int) Option {
	return func(c *Controller) {
		c.maxBotTurns = n
	}
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{maxBotTurns: DefaultMaxBotTurns}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnTransition inspects the terminal signal of an advance.
func (c *Controller) OnTransition(res *domain.TransitionResult) Action {
	if res == nil {
		return Action{Kind: ActionAssignToQueue, Reason: ReasonEngineErrorPrefix + "internal"}
	}

	switch res.Signal {
	case domain.SignalHandoff:
		reason := res.Reason
		if reason == "" {
			reason = ReasonRequested
		}
		return Action{Kind: ActionAssignToQueue, Reason: reason}
	case domain.SignalError:
		kind := domain.ErrorKind(res.Err)
		if kind == "" {
			kind = "internal"
		}
		return Action{Kind: ActionAssignToQueue, Reason: ReasonEngineErrorPrefix + kind}
	}

	// A finished flow has nothing left to loop on.
	if res.Session != nil && res.Session.Status == domain.SessionCompleted {
		return Action{Kind: ActionNone}
	}
	if c.maxBotTurns > 0 && res.Session != nil && res.Session.BotTurns > c.maxBotTurns {
		return Action{Kind: ActionAssignToQueue, Reason: ReasonTurnLimit}
	}
	return Action{Kind: ActionNone}
}
