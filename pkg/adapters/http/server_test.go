package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/testutils"
	ramalhttp "github.com/aretw0/ramal/pkg/adapters/http"
	"github.com/aretw0/ramal/pkg/adapters/memory"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/observability"
)

type harness struct {
	server  *httptest.Server
	streams *ramalhttp.StreamManager
	bot     *ramal.Bot
}

func newHarness(t *testing.T, opts ...ramalhttp.Option) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg)
	require.NoError(t, err)

	streams := ramalhttp.NewStreamManager(nil)
	bot, err := ramal.New(
		memory.NewGraphStoreFromGraphs(testutils.PolicyGraph(t)),
		ramal.WithChannel(streams),
		ramal.WithLifecycle(streams),
		ramal.WithMetrics(metrics),
	)
	require.NoError(t, err)

	handler := ramalhttp.NewHandler(bot, bot.Catalog(), append([]ramalhttp.Option{
		ramalhttp.WithStreams(streams),
		ramalhttp.WithGatherer(reg),
	}, opts...)...)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &harness{server: srv, streams: streams, bot: bot}
}

func (h *harness) post(t *testing.T, path, body string) (*http.Response, ramalhttp.TransitionResponse) {
	t.Helper()
	resp, err := http.Post(h.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out ramalhttp.TransitionResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestSpec_IsValid(t *testing.T) {
	doc, err := ramalhttp.Spec()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths.Find("/chats/{chatId}/messages"))
}

func TestServer_Conversation(t *testing.T) {
	h := newHarness(t)

	resp, res := h.post(t, "/chats/c1/start", `{"flow_id":"politica-datos"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.SignalAwaitInput, res.Signal)
	require.Len(t, res.Effects, 1)
	assert.Equal(t, domain.EffectMenu, res.Effects[0].Type)

	resp, res = h.post(t, "/chats/c1/messages", `{"text":"Sí"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "options", res.Session.CurrentNodeID)

	resp, res = h.post(t, "/chats/c1/messages", `{"text":"2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.SignalHandoff, res.Signal)
	assert.Equal(t, "requested", res.Reason)

	resp, _ = h.post(t, "/chats/c1/messages", `{"text":"hola"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	get, err := http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer get.Body.Close()
	var sb strings.Builder
	scanner := bufio.NewScanner(get.Body)
	for scanner.Scan() {
		sb.WriteString(scanner.Text() + "\n")
	}
	assert.Contains(t, sb.String(), `ramal_handoff_total{reason="requested"} 1`)
}

func TestServer_Errors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"missing flow id", "/chats/c1/start", `{}`, http.StatusBadRequest},
		{"unknown flow", "/chats/c1/start", `{"flow_id":"nope"}`, http.StatusNotFound},
		{"malformed body", "/chats/c1/start", `{"flow_id":`, http.StatusBadRequest},
		{"unknown field", "/chats/c1/messages", `{"txt":"hola"}`, http.StatusBadRequest},
		{"no session", "/chats/c1/messages", `{"text":"hola"}`, http.StatusNotFound},
		{"oversized input", "/chats/c1/messages", `{"text":"` + strings.Repeat("a", 5000) + `"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := h.post(t, tt.path, tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestServer_SessionEndpoints(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.post(t, "/chats/c1/start", `{"flow_id":"politica-datos","entity_id":"d-9"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	get, err := http.Get(h.server.URL + "/chats/c1/session")
	require.NoError(t, err)
	var sess domain.Session
	require.NoError(t, json.NewDecoder(get.Body).Decode(&sess))
	get.Body.Close()
	assert.Equal(t, "welcome", sess.CurrentNodeID)
	assert.Equal(t, "d-9", sess.EntityID)

	resp, res := h.post(t, "/chats/c1/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "d-9", res.Session.EntityID)

	req, _ := http.NewRequest(http.MethodDelete, h.server.URL+"/chats/c1/session", nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	get, err = http.Get(h.server.URL + "/chats/c1/session")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
}

func TestServer_Flows(t *testing.T) {
	h := newHarness(t)
	_, _ = h.post(t, "/chats/c1/start", `{"flow_id":"politica-datos"}`)

	get, err := http.Get(h.server.URL + "/flows/politica-datos")
	require.NoError(t, err)
	var flow ramalhttp.FlowResponse
	require.NoError(t, json.NewDecoder(get.Body).Decode(&flow))
	get.Body.Close()
	assert.Equal(t, "welcome", flow.Flow.StartNodeID)
	assert.Len(t, flow.Nodes, 6)

	get, err = http.Get(h.server.URL + "/flows/politica-datos/graph?chat_id=c1")
	require.NoError(t, err)
	defer get.Body.Close()
	body := new(strings.Builder)
	_, _ = bufio.NewReader(get.Body).WriteTo(body)
	assert.Contains(t, body.String(), "graph TD")
	assert.Contains(t, body.String(), "class welcome current;")

	missing, err := http.Get(h.server.URL + "/flows/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_Info(t *testing.T) {
	h := newHarness(t)
	get, err := http.Get(h.server.URL + "/info")
	require.NoError(t, err)
	defer get.Body.Close()

	var info map[string]string
	require.NoError(t, json.NewDecoder(get.Body).Decode(&info))
	assert.Equal(t, "ramal-http", info["app"])
	assert.Equal(t, "1.0.0", info["api_version"])
	assert.Equal(t, ramal.Version, info["version"])
}

func TestSubscribeEvents(t *testing.T) {
	h := newHarness(t)

	missing, err := http.Get(h.server.URL + "/events")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, h.server.URL+"/events?chat_id=c1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: ping\n", line)

	require.Eventually(t, func() bool { return h.streams.Subscribers("c1") == 1 }, time.Second, 10*time.Millisecond)
	_, _ = h.post(t, "/chats/c1/start", `{"flow_id":"politica-datos"}`)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: {") {
			break
		}
	}
	var ev ramalhttp.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, ramalhttp.EventEffect, ev.Type)
	require.NotNil(t, ev.Effect)
	assert.Equal(t, domain.EffectMenu, ev.Effect.Type)
}

func TestStreamManager(t *testing.T) {
	sm := ramalhttp.NewStreamManager(nil)
	ch, cancel := sm.Subscribe("c1")

	require.NoError(t, sm.AssignToQueue(context.Background(), "c1", "turn_limit"))
	require.NoError(t, sm.Send(context.Background(), "other", domain.Effect{Type: domain.EffectText, Text: "x"}))

	ev := <-ch
	assert.Equal(t, ramalhttp.EventHandoff, ev.Type)
	assert.Equal(t, "turn_limit", ev.Reason)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, sm.Subscribers("c1"))
}

func TestServer_ChatRateLimit(t *testing.T) {
	h := newHarness(t, ramalhttp.WithChatRateLimit(0.001, 2))

	resp, _ := h.post(t, "/chats/c1/start", `{"flow_id":"politica-datos"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.post(t, "/chats/c1/messages", `{"text":"Sí"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.post(t, "/chats/c1/messages", `{"text":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.post(t, "/chats/c1/messages", `{"text":"otra vez"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Other chats keep their own budget.
	resp, _ = h.post(t, "/chats/c2/messages", `{"text":"hola"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
