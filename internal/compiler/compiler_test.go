package compiler

import (
	"testing"

	"github.com/aretw0/ramal/internal/dto"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const policyDoc = `
id: politica-datos
name: Politica de datos
status: active
startNodeId: start
nodes:
  - id: start
    type: message
    nextNodeId: ignored-next
    config:
      message: "Hola {{ debtor.name | cliente }}, aceptas la politica de datos?"
      useButtons: true
      buttons: ["Sí", "No"]
      responseNodeId: condCheck
  - id: condCheck
    type: condition
    config:
      conditions:
        - variable: user_response
          operator: contains_ignore_case
          value: si
          targetNodeId: accepted
      defaultNodeId: rejected
  - id: accepted
    type: menu
    config:
      message: Elige una opcion
      options:
        - id: pay
          label: Pagar
          targetNodeId: ask-dni
        - label: Hablar con un asesor
          targetNodeId: agent
  - id: ask-dni
    type: input
    nextNodeId: accepted
    config:
      message: Ingresa tu DNI
      variableName: dni
  - id: agent
    type: message
    config:
      message: Un asesor te atendera
      handoff: true
      handoffReason: user_requested
  - id: rejected
    type: message
    config:
      message: Gracias
  - id: ignored-next
    type: message
    config:
      message: unreachable
`

func TestParseDocument(t *testing.T) {
	flow, nodes, err := ParseDocument([]byte(policyDoc))
	require.NoError(t, err)

	assert.Equal(t, "politica-datos", flow.ID)
	assert.Equal(t, domain.FlowActive, flow.Status)
	assert.Equal(t, "start", flow.StartNodeID)
	require.Len(t, nodes, 7)

	start, ok := nodes[0].(*domain.MessageNode)
	require.True(t, ok)
	assert.Equal(t, "politica-datos", start.FlowID)
	assert.True(t, start.Blocking())
	assert.Equal(t, []domain.Button{{ID: "Sí", Label: "Sí"}, {ID: "No", Label: "No"}}, start.Buttons)
	assert.Equal(t, "condCheck", start.ReplyTarget())

	cond := nodes[1].(*domain.ConditionNode)
	require.Len(t, cond.Conditions, 1)
	assert.Equal(t, "contains_ignore_case", cond.Conditions[0].Operator)
	assert.Equal(t, "si", cond.Conditions[0].Value)
	assert.Equal(t, "rejected", cond.DefaultNodeID)

	menu := nodes[2].(*domain.MenuNode)
	assert.Equal(t, "pay", menu.Options[0].ID)
	assert.Equal(t, "2", menu.Options[1].ID)
	assert.Equal(t, "agent", menu.Options[1].Target)

	input := nodes[3].(*domain.InputNode)
	assert.Equal(t, "dni", input.VariableName)

	agent := nodes[4].(*domain.MessageNode)
	assert.True(t, agent.Handoff)
	assert.Equal(t, "user_requested", agent.HandoffReason)

	_, err = domain.NewGraph(flow, nodes)
	assert.NoError(t, err)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(dto.NodeRecord{Type: "message"})
	assert.ErrorContains(t, err, "missing ID")

	_, err = Compile(dto.NodeRecord{ID: "x", Type: "carousel"})
	assert.ErrorContains(t, err, "unknown node type 'carousel'")

	_, err = CompileAll([]dto.NodeRecord{
		{ID: "a", Type: "video"},
		{ID: "b", Type: "menu", Config: map[string]any{"options": 3}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node a")
	assert.Contains(t, err.Error(), "node b")
}

func TestCompile_UseButtonsFalse(t *testing.T) {
	n, err := Compile(dto.NodeRecord{ID: "m", Type: "message", NextNodeID: "n", Config: map[string]any{
		"message":    "hi",
		"useButtons": false,
		"buttons":    []any{"a", "b"},
	}})
	require.NoError(t, err)
	assert.False(t, n.(*domain.MessageNode).Blocking())
}

func TestCompile_ElseAlias(t *testing.T) {
	n, err := Compile(dto.NodeRecord{ID: "c", Type: "condition", Config: map[string]any{
		"conditions": []any{map[string]any{"operator": "equals", "value": 1, "targetNodeId": "one"}},
		"elseNodeId": "other",
	}})
	require.NoError(t, err)
	cond := n.(*domain.ConditionNode)
	assert.Equal(t, "other", cond.DefaultNodeID)
	assert.Equal(t, domain.UserResponseKey, cond.Conditions[0].Variable)
}

func TestRecordRoundTrip(t *testing.T) {
	flow, nodes, err := ParseDocument([]byte(policyDoc))
	require.NoError(t, err)

	out, err := MarshalDocument(flow, nodes)
	require.NoError(t, err)

	flow2, nodes2, err := ParseDocument(out)
	require.NoError(t, err)
	assert.Equal(t, flow, flow2)
	require.Len(t, nodes2, len(nodes))
	for i := range nodes {
		assert.Equal(t, nodes[i], nodes2[i], "node %s", nodes[i].Base().ID)
	}
}
