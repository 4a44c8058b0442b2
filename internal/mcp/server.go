// Package mcp exposes captured command history, connection profiles and the
// audit assistant to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"

	"github.com/acolita/hydra-sh/internal/audit"
	"github.com/acolita/hydra-sh/internal/history"
	"github.com/acolita/hydra-sh/internal/ports"
	"github.com/acolita/hydra-sh/internal/profiles"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "hydra"

// Auditor answers audit questions about captured history.
type Auditor interface {
	Analyze(ctx context.Context, req audit.Request) (string, error)
}

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	history   *history.Store
	profiles  *profiles.Store
	auditor   Auditor
	dialog    ports.DialogProvider
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithProfiles enables the connection tools.
func WithProfiles(store *profiles.Store) ServerOption {
	return func(s *Server) {
		s.profiles = store
	}
}

// WithAuditor enables audit_analyze.
func WithAuditor(a Auditor) ServerOption {
	return func(s *Server) {
		s.auditor = a
	}
}

// WithDialogProvider sets the dialog provider used by connections_add.
func WithDialogProvider(dp ports.DialogProvider) ServerOption {
	return func(s *Server) {
		s.dialog = dp
	}
}

// NewServer creates an MCP server reading from store.
func NewServer(store *history.Store, version string, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(false),
			server.WithLogging(),
		),
		history: store,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// Run serves on stdio until stdin closes.
func (s *Server) Run() error {
	slog.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}
