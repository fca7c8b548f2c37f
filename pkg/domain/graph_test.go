package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyFlow() (FlowDefinition, []Node) {
	flow := FlowDefinition{ID: "policy", Name: "Data policy", Status: FlowActive, StartNodeID: "start"}
	nodes := []Node{
		&MessageNode{
			NodeBase:       NodeBase{ID: "start", FlowID: "policy"},
			Template:       "Accept data policy?",
			Buttons:        []Button{{ID: "si", Label: "Sí"}, {ID: "no", Label: "No"}},
			ResponseNodeID: "condCheck",
		},
		&ConditionNode{
			NodeBase: NodeBase{ID: "condCheck", FlowID: "policy"},
			Conditions: []Condition{
				{Variable: UserResponseKey, Operator: "contains_ignore_case", Value: "si", Target: "accepted"},
			},
			DefaultNodeID: "rejected",
		},
		&MessageNode{NodeBase: NodeBase{ID: "accepted"}, Template: "Thanks"},
		&MessageNode{NodeBase: NodeBase{ID: "rejected"}, Template: "Bye"},
	}
	return flow, nodes
}

func TestNewGraph_Valid(t *testing.T) {
	flow, nodes := policyFlow()

	g, err := NewGraph(flow, nodes)
	require.NoError(t, err)

	assert.Equal(t, 4, g.Len())
	n, ok := g.Node("condCheck")
	require.True(t, ok)
	assert.Equal(t, KindCondition, n.Kind())
	assert.Equal(t, []string{"accepted", "condCheck", "rejected", "start"}, g.IDs())
	assert.Equal(t, "start", g.Nodes()[0].Base().ID)
}

func TestNewGraph_DanglingReferences(t *testing.T) {
	flow, nodes := policyFlow()
	flow.StartNodeID = "missing-start"
	nodes[1].(*ConditionNode).DefaultNodeID = "nowhere"

	_, err := NewGraph(flow, nodes)
	require.Error(t, err)

	var graphErr *GraphError
	require.ErrorAs(t, err, &graphErr)
	assert.Len(t, graphErr.Problems, 2)

	var broken *BrokenGraphError
	require.ErrorAs(t, err, &broken)
	assert.Equal(t, "policy", broken.FlowID)
	assert.Equal(t, EdgeStart, broken.Edge)

	edges := 0
	for _, p := range graphErr.Problems {
		var b *BrokenGraphError
		if errors.As(p, &b) && b.Edge == EdgeDefault {
			edges++
			assert.Equal(t, "condCheck", b.NodeID)
			assert.Equal(t, "nowhere", b.Ref)
		}
	}
	assert.Equal(t, 1, edges)
}

func TestNewGraph_ShapeProblems(t *testing.T) {
	flow := FlowDefinition{ID: "f", Status: FlowActive, StartNodeID: "menu"}
	nodes := []Node{
		&MenuNode{NodeBase: NodeBase{ID: "menu"}},
		&InputNode{NodeBase: NodeBase{ID: "ask"}, VariableName: "dni"},
		&ConditionNode{NodeBase: NodeBase{ID: "cond"}},
		&MessageNode{NodeBase: NodeBase{ID: "menu"}},
		&MessageNode{NodeBase: NodeBase{ID: "other", FlowID: "g"}},
	}

	_, err := NewGraph(flow, nodes)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "menu 'menu' has no options")
	assert.Contains(t, msg, "input 'ask' has no next node")
	assert.Contains(t, msg, "neither predicates nor default")
	assert.Contains(t, msg, "declares node 'menu' twice")
	assert.Contains(t, msg, "belongs to flow 'g'")
}

func TestNewGraph_DraftWithoutStart(t *testing.T) {
	_, err := NewGraph(FlowDefinition{ID: "d", Status: FlowDraft}, nil)
	assert.NoError(t, err)

	_, err = NewGraph(FlowDefinition{ID: "d", Status: FlowActive}, nil)
	assert.Error(t, err)
}

func TestEdges(t *testing.T) {
	msg := &MessageNode{
		NodeBase:       NodeBase{ID: "m", Next: "n"},
		Buttons:        []Button{{ID: "1", Label: "ok"}},
		ResponseNodeID: "r",
	}
	edges := Edges(msg)
	require.Len(t, edges, 1, "buttons with a reply target ignore Next")
	assert.Equal(t, EdgeResponse, edges[0].Kind)

	msg.ResponseNodeID = ""
	edges = Edges(msg)
	require.Len(t, edges, 1)
	assert.Equal(t, EdgeNext, edges[0].Kind, "Next is the reply fallback")

	cond := &ConditionNode{
		NodeBase:      NodeBase{ID: "c", Next: "ignored"},
		Conditions:    []Condition{{Variable: "x", Operator: "equals", Value: "1", Target: "a"}},
		DefaultNodeID: "b",
	}
	edges = Edges(cond)
	require.Len(t, edges, 2)
	assert.Equal(t, "x equals 1", edges[0].Label)
	assert.Equal(t, EdgeDefault, edges[1].Kind)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "broken_graph", ErrorKind(&BrokenGraphError{}))
	assert.Equal(t, "step_cap_exceeded", ErrorKind(&StepCapExceededError{Limit: 2}))
	assert.Equal(t, "missing_default_branch", ErrorKind(&MissingDefaultBranchError{NodeID: "c"}))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}
