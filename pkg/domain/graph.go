package domain

import (
	"fmt"
	"sort"
)

// EdgeKind names the field a reference comes from.
type EdgeKind string

const (
	EdgeStart     EdgeKind = "start"
	EdgeNext      EdgeKind = "next"
	EdgeResponse  EdgeKind = "response"
	EdgeOption    EdgeKind = "option"
	EdgeCondition EdgeKind = "condition"
	EdgeDefault   EdgeKind = "default"
	EdgeCursor    EdgeKind = "cursor"
)

// Edge is a typed, directed reference from one node to another.
type Edge struct {
	From   string
	To     string
	Kind   EdgeKind
	Label  string
	Detail string
}

// Edges lists the outgoing references of a node in declaration order.
func Edges(n Node) []Edge {
	base := n.Base()
	var edges []Edge
	switch node := n.(type) {
	case *MessageNode:
		if node.Blocking() && node.ResponseNodeID != "" {
			edges = append(edges, Edge{From: base.ID, To: node.ResponseNodeID, Kind: EdgeResponse})
		}
	case *MenuNode:
		for _, opt := range node.Options {
			edges = append(edges, Edge{From: base.ID, To: opt.Target, Kind: EdgeOption, Label: opt.Label})
		}
	case *ConditionNode:
		for _, c := range node.Conditions {
			edges = append(edges, Edge{
				From:   base.ID,
				To:     c.Target,
				Kind:   EdgeCondition,
				Label:  fmt.Sprintf("%s %s %v", c.Variable, c.Operator, c.Value),
				Detail: c.Operator,
			})
		}
		if node.DefaultNodeID != "" {
			edges = append(edges, Edge{From: base.ID, To: node.DefaultNodeID, Kind: EdgeDefault})
		}
	case *InputNode:
	}
	if base.Next != "" && followsNext(n) {
		edges = append(edges, Edge{From: base.ID, To: base.Next, Kind: EdgeNext})
	}
	return edges
}

// Graph is an immutable, validated snapshot of one flow.
// It is safe for concurrent reads.
type Graph struct {
	Flow  FlowDefinition
	nodes map[string]Node
	order []string
}

// NewGraph validates the nodes of a flow and returns a read-only graph.
// All configuration problems are reported together in a *GraphError.
func NewGraph(flow FlowDefinition, nodes []Node) (*Graph, error) {
	g := &Graph{
		Flow:  flow,
		nodes: make(map[string]Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
	}

	var problems []error
	if flow.ID == "" {
		problems = append(problems, fmt.Errorf("flow is missing an ID"))
	}
	if !flow.Status.Valid() {
		problems = append(problems, fmt.Errorf("flow '%s' has unknown status '%s'", flow.ID, flow.Status))
	}

	for _, n := range nodes {
		if n == nil {
			problems = append(problems, fmt.Errorf("flow '%s' contains a nil node", flow.ID))
			continue
		}
		base := n.Base()
		if base.ID == "" {
			problems = append(problems, fmt.Errorf("flow '%s' contains a %s node without ID", flow.ID, n.Kind()))
			continue
		}
		if base.FlowID != "" && base.FlowID != flow.ID {
			problems = append(problems, fmt.Errorf("node '%s' belongs to flow '%s', not '%s'", base.ID, base.FlowID, flow.ID))
			continue
		}
		if _, dup := g.nodes[base.ID]; dup {
			problems = append(problems, fmt.Errorf("flow '%s' declares node '%s' twice", flow.ID, base.ID))
			continue
		}
		g.nodes[base.ID] = n
		g.order = append(g.order, base.ID)
	}

	if flow.StartNodeID == "" {
		if flow.Status == FlowActive {
			problems = append(problems, fmt.Errorf("active flow '%s' has no start node", flow.ID))
		}
	} else if _, ok := g.nodes[flow.StartNodeID]; !ok {
		problems = append(problems, &BrokenGraphError{FlowID: flow.ID, Ref: flow.StartNodeID, Edge: EdgeStart})
	}

	for _, id := range g.order {
		n := g.nodes[id]
		problems = append(problems, checkNode(flow.ID, n)...)
		for _, e := range Edges(n) {
			if _, ok := g.nodes[e.To]; !ok {
				problems = append(problems, &BrokenGraphError{FlowID: flow.ID, NodeID: id, Ref: e.To, Edge: e.Kind})
			}
		}
	}

	if len(problems) > 0 {
		return nil, &GraphError{FlowID: flow.ID, Problems: problems}
	}
	return g, nil
}

// checkNode verifies per-kind invariants that are not plain references.
func checkNode(flowID string, n Node) []error {
	var problems []error
	id := n.Base().ID
	switch node := n.(type) {
	case *MessageNode:
		if node.Blocking() && node.ReplyTarget() == "" && !node.Handoff {
			problems = append(problems, fmt.Errorf("flow '%s': message '%s' waits for a reply but has no response or next node", flowID, id))
		}
	case *MenuNode:
		if len(node.Options) == 0 {
			problems = append(problems, fmt.Errorf("flow '%s': menu '%s' has no options", flowID, id))
		}
		for i, opt := range node.Options {
			if opt.Target == "" {
				problems = append(problems, fmt.Errorf("flow '%s': menu '%s' option %d has no target", flowID, id, i+1))
			}
		}
	case *InputNode:
		if node.Next == "" {
			problems = append(problems, fmt.Errorf("flow '%s': input '%s' has no next node", flowID, id))
		}
	case *ConditionNode:
		if len(node.Conditions) == 0 && node.DefaultNodeID == "" {
			problems = append(problems, fmt.Errorf("flow '%s': condition '%s' has neither predicates nor default", flowID, id))
		}
		for i, c := range node.Conditions {
			if c.Target == "" {
				problems = append(problems, fmt.Errorf("flow '%s': condition '%s' predicate %d has no target", flowID, id, i+1))
			}
		}
	}
	return problems
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// IDs returns the sorted node IDs.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	sort.Strings(ids)
	return ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// followsNext reports whether the node's Next is ever taken. Condition
// nodes only branch, a handoff message ends the flow, and a blocking
// message with a reply target ignores Next.
func followsNext(n Node) bool {
	switch node := n.(type) {
	case *ConditionNode:
		return false
	case *MessageNode:
		if node.Handoff {
			return false
		}
		return !node.Blocking() || node.ResponseNodeID == ""
	}
	return true
}
