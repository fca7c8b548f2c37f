// Package mcp exposes operator tools over the Model Context Protocol:
// inspecting, resetting and releasing chat sessions and reading flows.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/compiler"
	"github.com/aretw0/ramal/internal/dto"
	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/internal/presentation/graph"
	"github.com/aretw0/ramal/pkg/domain"
)

// FlowsURI is the resource listing every flow.
const FlowsURI = "ramal://flows"

// Operator is the session surface the tools act on. *ramal.Bot satisfies it.
type Operator interface {
	Session(ctx context.Context, chatID string) (*domain.Session, error)
	Sessions(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error)
	Release(ctx context.Context, chatID string) error
}

// Flows reads compiled flows. *registry.Catalog satisfies it.
type Flows interface {
	Graph(ctx context.Context, flowID string) (*domain.Graph, error)
	Flows(ctx context.Context) ([]domain.FlowDefinition, error)
}

// FlowView is the get_flow payload.
type FlowView struct {
	Flow    domain.FlowDefinition `json:"flow"`
	Nodes   []dto.NodeRecord      `json:"nodes"`
	Mermaid string                `json:"mermaid"`
}

// Server wraps the bot as an MCP server.
type Server struct {
	ops       Operator
	flows     Flows
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates the MCP server and registers its tools and resources.
func NewServer(ops Operator, flows Flows, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		ops:       ops,
		flows:     flows,
		logger:    logger,
		mcpServer: server.NewMCPServer("ramal-mcp", strings.TrimSpace(ramal.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://localhost" + addr
	if !strings.HasPrefix(addr, ":") {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop MCP server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List the chats currently handled by the bot."),
	), s.handleListSessions)

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Get the bot session of a chat: flow, current node, variables and turn count."),
		mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat identifier")),
	), s.handleGetSession)

	s.mcpServer.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Restart a chat at the start of a flow. Without flow_id the chat's current flow is restarted."),
		mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat identifier")),
		mcp.WithString("flow_id", mcp.Description("Flow to start (optional)")),
		mcp.WithString("entity_id", mcp.Description("Entity the session is bound to (optional)")),
	), s.handleResetSession)

	s.mcpServer.AddTool(mcp.NewTool("release_session",
		mcp.WithDescription("Drop a chat's bot session so human agents own it. Sends nothing to the user."),
		mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat identifier")),
	), s.handleReleaseSession)

	s.mcpServer.AddTool(mcp.NewTool("get_flow",
		mcp.WithDescription("Get a flow definition, its nodes and a Mermaid diagram."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Flow identifier")),
	), s.handleGetFlow)
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chats, err := s.ops.Sessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list sessions failed: %v", err)), nil
	}
	return jsonResult(chats)
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := request.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess, err := s.ops.Session(ctx, chatID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("chat %s has no bot session", chatID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get session failed: %v", err)), nil
	}
	return jsonResult(sess)
}

func (s *Server) handleResetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := request.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	flowID := request.GetString("flow_id", "")
	entityID := request.GetString("entity_id", "")

	res, err := s.ops.Reset(ctx, chatID, flowID, entityID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reset failed: %v", err)), nil
	}
	s.logger.Info("session reset by operator", "chat_id", chatID, "flow_id", res.Session.FlowID)
	return jsonResult(res)
}

func (s *Server) handleReleaseSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := request.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.ops.Release(ctx, chatID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("release failed: %v", err)), nil
	}
	s.logger.Info("session released by operator", "chat_id", chatID)
	return mcp.NewToolResultText(fmt.Sprintf("chat %s released", chatID)), nil
}

func (s *Server) handleGetFlow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	flowID, err := request.RequireString("flow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.flows.Graph(ctx, flowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get flow failed: %v", err)), nil
	}
	view := FlowView{Flow: g.Flow, Mermaid: graph.GenerateMermaid(g, nil)}
	for _, n := range g.Nodes() {
		view.Nodes = append(view.Nodes, compiler.Record(n))
	}
	return jsonResult(view)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Flows",
		mcp.WithResourceDescription("Every flow known to the graph store"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		flows, err := s.flows.Flows(ctx)
		if err != nil {
			return nil, fmt.Errorf("list flows: %w", err)
		}
		data, err := json.Marshal(flows)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: FlowsURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
