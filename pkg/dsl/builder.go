package dsl

import (
	"github.com/aretw0/ramal/pkg/domain"
)

// Builder manages the flow construction.
type Builder struct {
	flow  domain.FlowDefinition
	nodes []domain.Node
	index map[string]int
}

// New creates a builder for an active flow. The first node added becomes the
// start node unless Start is called.
func New(flowID string) *Builder {
	return &Builder{
		flow:  domain.FlowDefinition{ID: flowID, Name: flowID, Status: domain.FlowActive, Version: 1},
		index: make(map[string]int),
	}
}

// Name sets the human readable flow name.
func (b *Builder) Name(name string) *Builder {
	b.flow.Name = name
	return b
}

// Status sets the publication status.
func (b *Builder) Status(s domain.FlowStatus) *Builder {
	b.flow.Status = s
	return b
}

// Start sets the start node.
func (b *Builder) Start(nodeID string) *Builder {
	b.flow.StartNodeID = nodeID
	return b
}

// Message adds a message node.
func (b *Builder) Message(id, template string) *MessageBuilder {
	n := &domain.MessageNode{NodeBase: b.base(id), Template: template}
	b.add(n)
	return &MessageBuilder{node: n}
}

// Menu adds a menu node.
func (b *Builder) Menu(id, prompt string) *MenuBuilder {
	n := &domain.MenuNode{NodeBase: b.base(id), Prompt: prompt}
	b.add(n)
	return &MenuBuilder{node: n}
}

// Input adds an input node.
func (b *Builder) Input(id, prompt string) *InputBuilder {
	n := &domain.InputNode{NodeBase: b.base(id), Prompt: prompt}
	b.add(n)
	return &InputBuilder{node: n}
}

// Condition adds a condition node.
func (b *Builder) Condition(id string) *ConditionBuilder {
	n := &domain.ConditionNode{NodeBase: b.base(id)}
	b.add(n)
	return &ConditionBuilder{node: n}
}

// Flow returns the flow definition as built so far.
func (b *Builder) Flow() domain.FlowDefinition {
	return b.flow
}

// Nodes returns the nodes in insertion order.
func (b *Builder) Nodes() []domain.Node {
	out := make([]domain.Node, len(b.nodes))
	copy(out, b.nodes)
	return out
}

// Graph validates and compiles the flow.
func (b *Builder) Graph() (*domain.Graph, error) {
	return domain.NewGraph(b.flow, b.Nodes())
}

// MustGraph is like Graph but panics on error. Intended for tests and examples.
func (b *Builder) MustGraph() *domain.Graph {
	g, err := b.Graph()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) base(id string) domain.NodeBase {
	return domain.NodeBase{ID: id, FlowID: b.flow.ID}
}

// add registers n, replacing an earlier node with the same ID.
func (b *Builder) add(n domain.Node) {
	id := n.Base().ID
	if i, ok := b.index[id]; ok {
		b.nodes[i] = n
		return
	}
	if b.flow.StartNodeID == "" {
		b.flow.StartNodeID = id
	}
	b.index[id] = len(b.nodes)
	b.nodes = append(b.nodes, n)
}
