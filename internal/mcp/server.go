package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tabletalk/tabletalk/internal/chat"
)

// Deps are the components the MCP tools are served by. Recorder is
// optional.
type Deps struct {
	Dispatcher chat.ToolDispatcher
	Schema     chat.SchemaSource
	Recorder   chat.Recorder
	Version    string
}

// MCPServer wraps the mcp-go server with the tabletalk tools and resources.
// It lets MCP clients run the same bounded selectSQL the chat model uses.
type MCPServer struct {
	deps   Deps
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer with every tool and resource registered.
// The catalog is read once so the table enum of selectSQL matches the store.
func NewMCPServer(ctx context.Context, deps Deps, logger *slog.Logger) (*MCPServer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &MCPServer{
		deps:   deps,
		logger: logger,
	}

	cat, err := deps.Schema.GetSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	mcpServer := server.NewMCPServer(
		"tabletalk",
		deps.Version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer, cat)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s, nil
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio serves MCP over stdin and stdout, for clients that launch
// tabletalk as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
