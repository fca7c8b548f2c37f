package memory

import (
	"context"
	"testing"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/dsl"
	"github.com/aretw0/ramal/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, NewSessionStore())
}

func TestGraphStore_Contract(t *testing.T) {
	b := dsl.New("policy")
	b.Message("start", "Accept?").Buttons("Sí", "No").ReplyTo("check")
	b.Condition("check").When(domain.UserResponseKey, "contains_ignore_case", "si", "ok").Default("ko")
	b.Message("ok", "ok")
	b.Message("ko", "ko")

	store := NewGraphStore()
	require.NoError(t, store.PutFlow(context.Background(), b.Flow(), b.Nodes()))

	ports.RunGraphStoreContract(t, store, b.Flow(), b.Nodes())

	flows, err := store.ListFlows(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, "policy", flows[0].ID)
}

func TestGraphStore_FromGraphs(t *testing.T) {
	b := dsl.New("g")
	b.Message("start", "hi")
	store := NewGraphStoreFromGraphs(b.MustGraph())

	nodes, err := store.GetNodes(context.Background(), "g")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestEntityStore(t *testing.T) {
	s := NewEntityStore("debtor")
	s.Put("d-1", map[string]any{
		"name":    "Ana",
		"company": map[string]any{"name": "ACME"},
		"dni":     "12345678",
	})
	ctx := context.Background()

	v, ok, err := s.Resolve(ctx, "debtor.name", "d-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ana", v)

	v, ok, _ = s.Resolve(ctx, "debtor.company.name", "d-1")
	assert.True(t, ok)
	assert.Equal(t, "ACME", v)

	_, ok, _ = s.Resolve(ctx, "debtor.missing", "d-1")
	assert.False(t, ok)

	_, ok, _ = s.Resolve(ctx, "debtor.name", "unknown")
	assert.False(t, ok)
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	_ = r.Send(ctx, "a", domain.Effect{Type: domain.EffectText, Text: "1"})
	_ = r.Send(ctx, "b", domain.Effect{Type: domain.EffectText, Text: "2"})
	_ = r.AssignToQueue(ctx, "a", "requested")

	assert.Len(t, r.Sent(""), 2)
	assert.Equal(t, "1", r.Sent("a")[0].Text)
	assert.Equal(t, []Assignment{{ChatID: "a", Reason: "requested"}}, r.Assignments())

	r.Reset()
	assert.Empty(t, r.Sent(""))
}
