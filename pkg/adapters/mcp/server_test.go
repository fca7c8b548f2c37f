package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/testutils"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/domain"
)

func newTestServer(t *testing.T) (*Server, *ramal.Bot) {
	t.Helper()
	bot, err := ramal.New(memory.NewGraphStoreFromGraphs(testutils.PolicyGraph(t)))
	require.NoError(t, err)
	return NewServer(bot, bot.Catalog(), nil), bot
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_SessionLifecycle(t *testing.T) {
	s, bot := newTestServer(t)
	ctx := context.Background()

	_, err := bot.Start(ctx, "c1", testutils.PolicyFlowID, "d-1")
	require.NoError(t, err)
	_, err = bot.HandleMessage(ctx, "c1", "si")
	require.NoError(t, err)

	res, err := s.handleGetSession(ctx, call(map[string]any{"chat_id": "c1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var sess domain.Session
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &sess))
	assert.Equal(t, "options", sess.CurrentNodeID)

	res, err = s.handleListSessions(ctx, call(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `["c1"]`, text(t, res))

	res, err = s.handleResetSession(ctx, call(map[string]any{"chat_id": "c1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	current, err := bot.Session(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "welcome", current.CurrentNodeID)
	assert.Equal(t, "d-1", current.EntityID)

	res, err = s.handleReleaseSession(ctx, call(map[string]any{"chat_id": "c1"}))
	require.NoError(t, err)
	assert.Equal(t, "chat c1 released", text(t, res))

	res, err = s.handleGetSession(ctx, call(map[string]any{"chat_id": "c1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "no bot session")
}

func TestTools_MissingArguments(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	for name, handler := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"get_session":     s.handleGetSession,
		"reset_session":   s.handleResetSession,
		"release_session": s.handleReleaseSession,
		"get_flow":        s.handleGetFlow,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := handler(ctx, call(map[string]any{}))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestTools_GetFlow(t *testing.T) {
	s, _ := newTestServer(t)

	res, err := s.handleGetFlow(context.Background(), call(map[string]any{"flow_id": testutils.PolicyFlowID}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var view FlowView
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &view))
	assert.Equal(t, testutils.PolicyFlowID, view.Flow.ID)
	assert.Len(t, view.Nodes, 6)
	assert.Contains(t, view.Mermaid, "graph TD")

	res, err = s.handleGetFlow(context.Background(), call(map[string]any{"flow_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
