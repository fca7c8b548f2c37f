package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	base := &Session{
		ChatID:        "chat-1",
		CurrentNodeID: "start",
		Status:        SessionActive,
		Variables:     map[string]any{"a": "1"},
		History:       []string{"start"},
	}

	t.Run("initial load", func(t *testing.T) {
		d := Diff(nil, base)
		require.NotNil(t, d)
		assert.Equal(t, "start", *d.CurrentNodeID)
		assert.Equal(t, SessionActive, *d.Status)
		assert.Equal(t, map[string]any{"a": "1"}, d.Variables)
		assert.Equal(t, []string{"start"}, d.Visited)
	})

	t.Run("no changes", func(t *testing.T) {
		assert.Nil(t, Diff(base, base.Clone()))
	})

	t.Run("advance with reply", func(t *testing.T) {
		next := base.Clone()
		next.CurrentNodeID = "cond"
		next.AwaitingInput = true
		next.Variables[UserResponseKey] = "si"
		delete(next.Variables, "a")
		next.History = append(next.History, "cond")

		d := Diff(base, next)
		require.NotNil(t, d)
		assert.Equal(t, "cond", *d.CurrentNodeID)
		assert.Nil(t, d.Status)
		assert.True(t, *d.AwaitingInput)
		assert.Equal(t, map[string]any{UserResponseKey: "si", "a": nil}, d.Variables)
		assert.Equal(t, []string{"cond"}, d.Visited)

		raw, err := json.Marshal(d)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "status")
	})
}

func TestSessionClone(t *testing.T) {
	s := NewSession("c", FlowDefinition{ID: "f", StartNodeID: "start"}, "debtor-9", time.Unix(10, 0))
	s.Variables["k"] = "v"
	s.History = []string{"start"}

	c := s.Clone()
	c.Variables["k"] = "changed"
	c.History[0] = "x"

	assert.Equal(t, "v", s.Variables["k"])
	assert.Equal(t, "start", s.History[0])
	assert.Equal(t, "debtor-9", c.EntityID)
	assert.False(t, c.Closed())

	c.Status = SessionHandedOff
	assert.True(t, c.Closed())
}
