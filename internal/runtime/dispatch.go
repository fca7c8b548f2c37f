package runtime

import (
	"errors"
	"strconv"
	"strings"

	"github.com/aretw0/ramal/pkg/condition"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/variables"
)

// SelectedOptionKey holds the ID of the last menu option chosen.
const SelectedOptionKey = "selected_option"

// step executes one node. It returns the successor and the edge followed,
// or stop=true when the flow must not continue in this advance.
func (e *Engine) step(a *advance, node domain.Node) (next string, edge domain.EdgeKind, stop bool, err error) {
	switch n := node.(type) {
	case *domain.MessageNode:
		text := e.extractor.Render(a.ctx, a.sess, n.Template)
		if n.Blocking() {
			a.res.Effects = append(a.res.Effects, menuEffect(text, buttonOptions(n.Buttons)))
		} else if text != "" {
			a.res.Effects = append(a.res.Effects, domain.Effect{Type: domain.EffectText, Text: text})
		}

		if n.Handoff {
			reason := n.HandoffReason
			if reason == "" {
				reason = DefaultHandoffReason
			}
			a.sess.Status = domain.SessionHandedOff
			a.sess.AwaitingInput = false
			a.res.Signal = domain.SignalHandoff
			a.res.Reason = reason
			return "", "", true, nil
		}
		if n.Blocking() {
			e.block(a, n.ReplyTarget())
			return "", "", true, nil
		}
		// Without buttons the successor is followed unconditionally.
		return n.Next, domain.EdgeNext, false, nil

	case *domain.MenuNode:
		a.res.Effects = append(a.res.Effects, e.renderMenu(a, n))
		e.block(a, "")
		return "", "", true, nil

	case *domain.InputNode:
		if text := e.extractor.Render(a.ctx, a.sess, n.Prompt); text != "" {
			a.res.Effects = append(a.res.Effects, domain.Effect{Type: domain.EffectText, Text: text})
		}
		e.block(a, n.Next)
		return "", "", true, nil

	case *domain.ConditionNode:
		target, edge, err := e.evaluate(a, n)
		return target, edge, false, err
	}

	panic("unreachable: unhandled node kind " + string(node.Kind()))
}

func (e *Engine) block(a *advance, replyTo string) {
	a.sess.AwaitingInput = true
	a.sess.ReplyNodeID = replyTo
	a.res.Signal = domain.SignalAwaitInput
}

// resume feeds a reply to the node the session is blocked on. It returns
// the successor, or done=true when the node keeps waiting.
func (e *Engine) resume(a *advance, node domain.Node, reply string) (next string, done bool) {
	vars := a.sess.Variables
	switch n := node.(type) {
	case *domain.MessageNode:
		variables.Bind(vars, "", reply)
		next = a.sess.ReplyNodeID
		if next == "" {
			next = n.ReplyTarget()
		}

	case *domain.MenuNode:
		opt, ok := matchOption(n.Options, reply)
		if !ok {
			e.logger.Debug("menu reply matched no option",
				"chat_id", a.sess.ChatID, "node_id", n.ID, "reply", reply)
			a.res.Effects = append(a.res.Effects, e.renderMenu(a, n))
			a.res.Signal = domain.SignalAwaitInput
			return "", true
		}
		variables.Bind(vars, "", reply)
		vars[SelectedOptionKey] = opt.ID
		next = opt.Target

	case *domain.InputNode:
		variables.Bind(vars, n.VariableName, reply)
		next = n.Next

	case *domain.ConditionNode:
		// Conditions never block; a stale cursor simply re-evaluates.
		variables.Bind(vars, "", reply)
		next = n.ID
	}

	a.sess.AwaitingInput = false
	a.sess.ReplyNodeID = ""
	e.emitNodeLeave(a, node)
	return next, false
}

func resumeEdge(node domain.Node) domain.EdgeKind {
	switch n := node.(type) {
	case *domain.MessageNode:
		if n.ResponseNodeID != "" {
			return domain.EdgeResponse
		}
	case *domain.MenuNode:
		return domain.EdgeOption
	case *domain.ConditionNode:
		return domain.EdgeCursor
	}
	return domain.EdgeNext
}

// evaluate picks the first matching predicate, falling back to the default branch.
func (e *Engine) evaluate(a *advance, n *domain.ConditionNode) (string, domain.EdgeKind, error) {
	for i, c := range n.Conditions {
		actual, _ := e.extractor.Lookup(a.ctx, a.sess, c.Variable)
		ok, err := condition.Evaluate(c.Operator, actual, c.Value)
		if err != nil {
			var unsupported *condition.UnsupportedOperatorError
			if errors.As(err, &unsupported) {
				e.logger.Warn("unsupported condition operator, treating as non-match",
					"chat_id", a.sess.ChatID,
					"flow_id", a.sess.FlowID,
					"node_id", n.ID,
					"operator", c.Operator)
				e.emitUnsupportedOperator(a, n.ID, c)
			} else {
				e.logger.Warn("condition evaluation failed, treating as non-match",
					"chat_id", a.sess.ChatID,
					"node_id", n.ID,
					"index", i,
					"err", err)
			}
			continue
		}
		if ok {
			return c.Target, domain.EdgeCondition, nil
		}
	}
	if n.DefaultNodeID != "" {
		return n.DefaultNodeID, domain.EdgeDefault, nil
	}
	return "", "", &domain.MissingDefaultBranchError{NodeID: n.ID}
}

// matchOption resolves a reply by option ID, 1-based ordinal or label.
func matchOption(options []domain.MenuOption, reply string) (domain.MenuOption, bool) {
	r := strings.TrimSpace(reply)
	if r == "" {
		return domain.MenuOption{}, false
	}
	for _, o := range options {
		if strings.EqualFold(o.ID, r) {
			return o, true
		}
	}
	if i, err := strconv.Atoi(r); err == nil && i >= 1 && i <= len(options) {
		return options[i-1], true
	}
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o.Label), r) {
			return o, true
		}
	}
	return domain.MenuOption{}, false
}

func (e *Engine) renderMenu(a *advance, n *domain.MenuNode) domain.Effect {
	opts := make([]domain.EffectOption, 0, len(n.Options))
	for _, o := range n.Options {
		opts = append(opts, domain.EffectOption{ID: o.ID, Label: e.extractor.Render(a.ctx, a.sess, o.Label)})
	}
	return menuEffect(e.extractor.Render(a.ctx, a.sess, n.Prompt), opts)
}

func buttonOptions(buttons []domain.Button) []domain.EffectOption {
	opts := make([]domain.EffectOption, 0, len(buttons))
	for _, b := range buttons {
		opts = append(opts, domain.EffectOption{ID: b.ID, Label: b.Label})
	}
	return opts
}

func menuEffect(text string, opts []domain.EffectOption) domain.Effect {
	return domain.Effect{Type: domain.EffectMenu, Text: text, Options: opts}
}
