// Package mcpserver exposes the tool registry to MCP clients over stdio or
// SSE. Every call runs as one configured user, so group access applies
// exactly as it does inside the agent.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/martinemde/vanna/memory"
	"github.com/martinemde/vanna/tool"
	"github.com/martinemde/vanna/user"
)

// Server wraps an MCP server whose tools are the registry's.
type Server struct {
	registry  *tool.Registry
	user      *user.User
	memory    memory.AgentMemory
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithMemory makes m available to memory tools.
func WithMemory(m memory.AgentMemory) Option {
	return func(s *Server) { s.memory = m }
}

// WithLogger sets the logger given to tools.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New registers every tool u may call. Tools registered later are not
// picked up.
func New(name, version string, registry *tool.Registry, u *user.User, opts ...Option) (*Server, error) {
	s := &Server{
		registry:  registry,
		user:      u,
		logger:    slog.Default(),
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, schema := range registry.Schemas(context.Background(), u) {
		params := schema.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", schema.Name, err)
		}
		s.mcpServer.AddTool(mcp.NewToolWithRawSchema(schema.Name, schema.Description, raw), s.handler(schema.Name))
	}
	return s, nil
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := tool.Call{ID: uuid.NewString(), Name: name, Arguments: req.GetArguments()}
		tctx := &tool.Context{
			User:           s.user,
			ConversationID: "mcp",
			RequestID:      call.ID,
			Metadata:       map[string]any{"transport": "mcp"},
			Memory:         s.memory,
			Logger:         s.logger,
		}

		res := s.registry.Execute(ctx, call, tctx)
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = res.ResultForLLM
			}
			return mcp.NewToolResultError(msg), nil
		}
		return mcp.NewToolResultText(res.ResultForLLM), nil
	}
}

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("mcp server listening (sse)", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp shutdown: %w", err)
		}
		return nil
	}
}
