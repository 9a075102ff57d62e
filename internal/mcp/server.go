// ABOUTME: MCP server initialization and configuration
// ABOUTME: Exposes the location privacy service to AI agents over stdio

package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"
	"github.com/harper/locguard/internal/obfuscate"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server around the obfuscation service.
type Server struct {
	mcp    *mcp.Server
	svc    *obfuscate.Service
	logger *log.Logger
}

// NewServer creates an MCP server with all tools and resources registered.
func NewServer(svc *obfuscate.Service, logger *log.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("obfuscation service is required")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "locguard",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcp:    mcpServer,
		svc:    svc,
		logger: logger,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}
