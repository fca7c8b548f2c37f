// Package validator lints flows beyond what domain.NewGraph rejects:
// nodes no chat can reach, author fields the engine ignores and loops that
// never wait for the user and can only end at the step cap.
package validator

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/ports"
)

// Report is the outcome of validating one flow.
type Report struct {
	FlowID string

	// Err holds the structural problems; a flow with Err cannot be served.
	Err error

	Unreachable []string
	Warnings    []string
}

// OK reports whether the flow can be served.
func (r *Report) OK() bool { return r.Err == nil }

// ValidateFlow loads a flow from the store and validates it.
func ValidateFlow(ctx context.Context, store ports.GraphStore, flowID string) (*Report, error) {
	flow, err := store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}
	nodes, err := store.GetNodes(ctx, flowID)
	if err != nil {
		return &Report{FlowID: flowID, Err: err}, nil
	}
	return Validate(*flow, nodes), nil
}

// Validate compiles the flow and lints the result.
func Validate(flow domain.FlowDefinition, nodes []domain.Node) *Report {
	report := &Report{FlowID: flow.ID}
	g, err := domain.NewGraph(flow, nodes)
	if err != nil {
		report.Err = err
		return report
	}

	report.Unreachable = unreachable(g)
	for _, n := range g.Nodes() {
		report.Warnings = append(report.Warnings, lint(n)...)
	}
	report.Warnings = append(report.Warnings, loops(g)...)
	return report
}

// unreachable crawls the graph from the start node.
func unreachable(g *domain.Graph) []string {
	if g.Flow.StartNodeID == "" {
		return nil
	}
	visited := map[string]bool{}
	queue := []string{g.Flow.StartNodeID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n, _ := g.Node(id)
		for _, e := range domain.Edges(n) {
			if !visited[e.To] {
				queue = append(queue, e.To)
			}
		}
	}

	var out []string
	for _, id := range g.IDs() {
		if !visited[id] {
			out = append(out, id)
		}
	}
	return out
}

func lint(n domain.Node) []string {
	var warnings []string
	base := n.Base()
	switch node := n.(type) {
	case *domain.ConditionNode:
		if node.DefaultNodeID == "" {
			warnings = append(warnings, fmt.Sprintf("condition '%s' has no default branch; an unmatched reply hands the chat off", base.ID))
		}
		if base.Next != "" {
			warnings = append(warnings, fmt.Sprintf("condition '%s' sets nextNodeId '%s', which is never followed", base.ID, base.Next))
		}
	case *domain.MessageNode:
		switch {
		case node.Handoff && base.Next != "":
			warnings = append(warnings, fmt.Sprintf("message '%s' hands off; nextNodeId '%s' is never followed", base.ID, base.Next))
		case node.Blocking() && node.ResponseNodeID != "" && base.Next != "" && base.Next != node.ResponseNodeID:
			warnings = append(warnings, fmt.Sprintf("message '%s' has buttons; replies go to '%s' and nextNodeId '%s' is ignored",
				base.ID, node.ResponseNodeID, base.Next))
		}
	}
	return warnings
}

// waits reports whether executing the node can stop for a reply.
func waits(n domain.Node) bool {
	switch node := n.(type) {
	case *domain.MenuNode, *domain.InputNode:
		return true
	case *domain.MessageNode:
		return node.Blocking()
	}
	return false
}

// loops finds cycles made only of nodes that never wait for input.
func loops(g *domain.Graph) []string {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var found [][]string
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		n, _ := g.Node(id)
		for _, e := range domain.Edges(n) {
			next, _ := g.Node(e.To)
			if waits(next) {
				continue
			}
			switch color[e.To] {
			case white:
				visit(e.To)
			case grey:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == e.To {
						found = append(found, append([]string(nil), stack[i:]...))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, n := range g.Nodes() {
		if !waits(n) && color[n.Base().ID] == white {
			visit(n.Base().ID)
		}
	}

	warnings := make([]string, 0, len(found))
	for _, cycle := range found {
		warnings = append(warnings, fmt.Sprintf("nodes %v form a loop that never waits for the user", cycle))
	}
	sort.Strings(warnings)
	return warnings
}
