package runtime

import (
	"time"

	"github.com/aretw0/ramal/pkg/domain"
)

func (e *Engine) base(a *advance, t domain.HookEventType) domain.EventBase {
	b := domain.EventBase{Timestamp: time.Now(), Type: t}
	if a.sess != nil {
		b.ChatID = a.sess.ChatID
		b.FlowID = a.sess.FlowID
	}
	return b
}

func (e *Engine) emitNodeEnter(a *advance, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(a.ctx, &domain.NodeEvent{
		EventBase: e.base(a, domain.HookNodeEnter),
		NodeID:    node.Base().ID,
		NodeKind:  node.Kind(),
	})
}

func (e *Engine) emitNodeLeave(a *advance, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(a.ctx, &domain.NodeEvent{
		EventBase: e.base(a, domain.HookNodeLeave),
		NodeID:    node.Base().ID,
		NodeKind:  node.Kind(),
	})
}

func (e *Engine) emitUnsupportedOperator(a *advance, nodeID string, c domain.Condition) {
	if e.hooks.OnUnsupportedOperator == nil {
		return
	}
	e.hooks.OnUnsupportedOperator(a.ctx, &domain.OperatorEvent{
		EventBase: e.base(a, domain.HookUnsupportedOperator),
		NodeID:    nodeID,
		Operator:  c.Operator,
		Variable:  c.Variable,
	})
}

func (e *Engine) emitTransition(a *advance) {
	if e.hooks.OnTransition == nil {
		return
	}
	e.hooks.OnTransition(a.ctx, &domain.TransitionEvent{
		EventBase: e.base(a, domain.HookTransition),
		Signal:    a.res.Signal,
		Reason:    a.res.Reason,
		Steps:     a.res.Steps,
		Err:       a.res.Err,
	})
}
