package dsl

import (
	"strconv"

	"github.com/aretw0/ramal/pkg/domain"
)

// MessageBuilder configures a message node.
type MessageBuilder struct {
	node *domain.MessageNode
}

// Next sets the unconditional successor.
func (m *MessageBuilder) Next(target string) *MessageBuilder {
	m.node.Next = target
	return m
}

// Buttons makes the message blocking. Each label doubles as the button ID.
func (m *MessageBuilder) Buttons(labels ...string) *MessageBuilder {
	for _, l := range labels {
		m.node.Buttons = append(m.node.Buttons, domain.Button{ID: l, Label: l})
	}
	return m
}

// ReplyTo routes the reply of a blocking message.
func (m *MessageBuilder) ReplyTo(target string) *MessageBuilder {
	m.node.ResponseNodeID = target
	return m
}

// Handoff makes the message hand the chat to a human queue after being sent.
func (m *MessageBuilder) Handoff(reason string) *MessageBuilder {
	m.node.Handoff = true
	m.node.HandoffReason = reason
	return m
}

// Node returns the underlying node.
func (m *MessageBuilder) Node() *domain.MessageNode { return m.node }

// MenuBuilder configures a menu node.
type MenuBuilder struct {
	node *domain.MenuNode
}

// Option appends a choice. An empty id defaults to the 1-based position.
func (m *MenuBuilder) Option(id, label, target string) *MenuBuilder {
	if id == "" {
		id = strconv.Itoa(len(m.node.Options) + 1)
	}
	m.node.Options = append(m.node.Options, domain.MenuOption{ID: id, Label: label, Target: target})
	return m
}

// Node returns the underlying node.
func (m *MenuBuilder) Node() *domain.MenuNode { return m.node }

// InputBuilder configures an input node.
type InputBuilder struct {
	node *domain.InputNode
}

// Into names the variable the reply is stored in.
func (i *InputBuilder) Into(variable string) *InputBuilder {
	i.node.VariableName = variable
	return i
}

// Next sets the node that runs after the reply.
func (i *InputBuilder) Next(target string) *InputBuilder {
	i.node.Next = target
	return i
}

// Node returns the underlying node.
func (i *InputBuilder) Node() *domain.InputNode { return i.node }

// ConditionBuilder configures a condition node.
type ConditionBuilder struct {
	node *domain.ConditionNode
}

// When appends a predicate. Predicates are evaluated in declaration order.
func (c *ConditionBuilder) When(variable, operator string, value any, target string) *ConditionBuilder {
	c.node.Conditions = append(c.node.Conditions, domain.Condition{
		Variable: variable,
		Operator: operator,
		Value:    value,
		Target:   target,
	})
	return c
}

// Default sets the branch taken when no predicate matches.
func (c *ConditionBuilder) Default(target string) *ConditionBuilder {
	c.node.DefaultNodeID = target
	return c
}

// Node returns the underlying node.
func (c *ConditionBuilder) Node() *domain.ConditionNode { return c.node }
