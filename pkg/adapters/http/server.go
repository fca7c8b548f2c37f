// Package http exposes a bot over HTTP: chat webhooks for the CRM, operator
// endpoints for sessions and flows, an SSE stream of outbound effects and
// the Prometheus scrape endpoint.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/compiler"
	"github.com/aretw0/ramal/internal/dto"
	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/internal/presentation/graph"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/runner"
)

//go:embed openapi.yaml
var rawSpec []byte

var loadSpec = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
})

// Spec returns the parsed and validated OpenAPI document of the API.
func Spec() (*openapi3.T, error) {
	return loadSpec()
}

// Bot is the conversation surface the server drives. *ramal.Bot satisfies it.
type Bot interface {
	Start(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error)
	HandleMessage(ctx context.Context, chatID, text string) (*domain.TransitionResult, error)
	Reset(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error)
	Release(ctx context.Context, chatID string) error
	Session(ctx context.Context, chatID string) (*domain.Session, error)
}

// Flows resolves compiled flows. *registry.Catalog satisfies it.
type Flows interface {
	Graph(ctx context.Context, flowID string) (*domain.Graph, error)
}

// Server holds the handlers of the API.
type Server struct {
	Bot     Bot
	Flows   Flows
	Streams *StreamManager

	gatherer prometheus.Gatherer
	limiter  *chatLimiter
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithStreams sets the stream manager behind GET /events. It should be the
// same instance the bot delivers effects to.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) { s.Streams = sm }
}

// WithGatherer exposes the given registry on GET /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithChatRateLimit throttles inbound messages to perSecond per chat with
// the given burst. Excess messages get 429 and never reach the bot.
func WithChatRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.limiter = newChatLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the HTTP handler of the API.
func NewHandler(bot Bot, flows Flows, opts ...Option) http.Handler {
	s := &Server{
		Bot:      bot,
		Flows:    flows,
		gatherer: prometheus.DefaultGatherer,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Route("/chats/{chatID}", func(r chi.Router) {
		r.Post("/start", s.StartChat)
		r.With(s.throttle).Post("/messages", s.HandleMessage)
		r.Post("/reset", s.ResetChat)
		r.Get("/session", s.GetSession)
		r.Delete("/session", s.ReleaseChat)
	})
	r.Get("/flows/{flowID}", s.GetFlow)
	r.Get("/flows/{flowID}/graph", s.GetFlowGraph)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StartRequest is the body of the start and reset endpoints.
type StartRequest struct {
	FlowID   string `json:"flow_id"`
	EntityID string `json:"entity_id"`
}

// MessageRequest is the body of an inbound message.
type MessageRequest struct {
	Text string `json:"text"`
}

// TransitionResponse is the JSON view of a domain.TransitionResult.
type TransitionResponse struct {
	Signal  domain.Signal   `json:"signal"`
	Reason  string          `json:"reason,omitempty"`
	Steps   int             `json:"steps"`
	Effects []domain.Effect `json:"effects"`
	Session *domain.Session `json:"session,omitempty"`
}

// FlowResponse is the author-time view of a compiled flow.
type FlowResponse struct {
	Flow  domain.FlowDefinition `json:"flow"`
	Nodes []dto.NodeRecord      `json:"nodes"`
}

// StartChat handles POST /chats/{chatID}/start.
func (s *Server) StartChat(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.FlowID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("flow_id is required"))
		return
	}

	res, err := s.Bot.Start(r.Context(), chi.URLParam(r, "chatID"), body.FlowID, body.EntityID)
	if err != nil {
		s.fail(w, "start chat", err)
		return
	}
	s.writeJSON(w, http.StatusOK, transition(res))
}

// HandleMessage handles POST /chats/{chatID}/messages.
func (s *Server) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.Bot.HandleMessage(r.Context(), chi.URLParam(r, "chatID"), body.Text)
	if err != nil {
		s.fail(w, "handle message", err)
		return
	}
	s.writeJSON(w, http.StatusOK, transition(res))
}

// ResetChat handles POST /chats/{chatID}/reset. The body is optional.
func (s *Server) ResetChat(w http.ResponseWriter, r *http.Request) {
	var body StartRequest
	if err := decode(r, &body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.Bot.Reset(r.Context(), chi.URLParam(r, "chatID"), body.FlowID, body.EntityID)
	if err != nil {
		s.fail(w, "reset chat", err)
		return
	}
	s.writeJSON(w, http.StatusOK, transition(res))
}

// GetSession handles GET /chats/{chatID}/session.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Bot.Session(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.fail(w, "get session", err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

// ReleaseChat handles DELETE /chats/{chatID}/session.
func (s *Server) ReleaseChat(w http.ResponseWriter, r *http.Request) {
	if err := s.Bot.Release(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		s.fail(w, "release chat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFlow handles GET /flows/{flowID}.
func (s *Server) GetFlow(w http.ResponseWriter, r *http.Request) {
	g, err := s.Flows.Graph(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		s.fail(w, "get flow", err)
		return
	}
	resp := FlowResponse{Flow: g.Flow}
	for _, n := range g.Nodes() {
		resp.Nodes = append(resp.Nodes, compiler.Record(n))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GetFlowGraph handles GET /flows/{flowID}/graph. With ?chat_id= the
// chat's path through the flow is highlighted.
func (s *Server) GetFlowGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.Flows.Graph(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		s.fail(w, "get flow graph", err)
		return
	}

	var overlay *graph.GraphOverlay
	if chatID := r.URL.Query().Get("chat_id"); chatID != "" {
		sess, err := s.Bot.Session(r.Context(), chatID)
		if err != nil {
			s.fail(w, "get session", err)
			return
		}
		if sess.FlowID == g.Flow.ID {
			overlay = &graph.GraphOverlay{VisitedNodes: sess.History, CurrentNode: sess.CurrentNodeID}
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(g, overlay))
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("openapi document unavailable", "err", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "ramal-http",
		"version":     strings.TrimSpace(ramal.Version),
		"api_version": apiVersion,
	})
}

// SubscribeEvents handles GET /events?chat_id= (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("chat_id is required"))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.Streams.Subscribe(chatID)
	defer cancel()
	s.logger.Info("SSE: client subscribed", "chat_id", chatID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected", "chat_id", chatID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := ev.encode()
			if err != nil {
				s.logger.Error("SSE: encode event", "chat_id", chatID, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func transition(res *domain.TransitionResult) TransitionResponse {
	effects := res.Effects
	if res.Signal == domain.SignalError {
		// The user was only sent the neutral handoff message.
		effects = nil
	}
	if effects == nil {
		effects = []domain.Effect{}
	}
	return TransitionResponse{
		Signal:  res.Signal,
		Reason:  res.Reason,
		Steps:   res.Steps,
		Effects: effects,
		Session: res.Session,
	}
}

// statusOf maps domain and input errors to HTTP status codes.
func statusOf(err error) int {
	var graphErr *domain.GraphError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrFlowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrFlowNotActive):
		return http.StatusConflict
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		return http.StatusBadRequest
	case errors.As(err, &graphErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "status", status, "err", err)
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
