package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()
	chatID := "contract-chat-" + time.Now().Format("20060102150405")
	flow := domain.FlowDefinition{ID: "contract-flow", StartNodeID: "start"}

	t.Run("Save and Load", func(t *testing.T) {
		s := domain.NewSession(chatID, flow, "entity-1", time.Now().UTC())
		s.Variables["foo"] = "bar"
		s.Variables["count"] = 42
		s.AwaitingInput = true
		s.ReplyNodeID = "cond"
		s.History = []string{"start"}

		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		loaded, err := store.Load(ctx, chatID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, s.CurrentNodeID, loaded.CurrentNodeID)
		assert.Equal(t, "entity-1", loaded.EntityID)
		assert.Equal(t, "bar", loaded.Variables["foo"])
		// JSON backed stores may turn ints into float64.
		assert.NotNil(t, loaded.Variables["count"])
		assert.True(t, loaded.AwaitingInput)
		assert.Equal(t, "cond", loaded.ReplyNodeID)
		assert.Equal(t, []string{"start"}, loaded.History)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, chatID)
		require.NoError(t, err)
		loaded.Variables["foo"] = "mutated"

		again, err := store.Load(ctx, chatID)
		require.NoError(t, err)
		assert.Equal(t, "bar", again.Variables["foo"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+chatID)
		assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(chatID, flow, "", time.Now())))
		require.NoError(t, store.Delete(ctx, chatID), "Delete should not return error")

		_, err := store.Load(ctx, chatID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, chatID), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := chatID + "-1"
		id2 := chatID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, flow, "", time.Now())))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, flow, "", time.Now())))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		chats, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, chats, id1)
		assert.Contains(t, chats, id2)
	})
}

// RunGraphStoreContract verifies a GraphStore that has been seeded with the
// given flow and nodes.
func RunGraphStoreContract(t *testing.T, store GraphStore, flow domain.FlowDefinition, nodes []domain.Node) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetFlow", func(t *testing.T) {
		got, err := store.GetFlow(ctx, flow.ID)
		require.NoError(t, err)
		assert.Equal(t, flow.ID, got.ID)
		assert.Equal(t, flow.Status, got.Status)
		assert.Equal(t, flow.StartNodeID, got.StartNodeID)
	})

	t.Run("GetNodes", func(t *testing.T) {
		got, err := store.GetNodes(ctx, flow.ID)
		require.NoError(t, err)
		require.Len(t, got, len(nodes))

		byID := make(map[string]domain.Node, len(got))
		for _, n := range got {
			byID[n.Base().ID] = n
		}
		for _, want := range nodes {
			n, ok := byID[want.Base().ID]
			if assert.True(t, ok, "node %s missing", want.Base().ID) {
				assert.Equal(t, want.Kind(), n.Kind())
				assert.Equal(t, domain.Edges(want), domain.Edges(n))
			}
		}
	})

	t.Run("Unknown flow", func(t *testing.T) {
		_, err := store.GetFlow(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)

		_, err = store.GetNodes(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrFlowNotFound)
	})
}
