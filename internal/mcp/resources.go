// ABOUTME: MCP resource definitions
// ABOUTME: Provides a read-only view of the privacy settings for agents

package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const settingsURI = "locguard://settings"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		Name:        settingsURI,
		Description: "Privacy settings: levels, per-domain overrides, pause and fixed position. Cached positions are not included.",
		URI:         settingsURI,
		MIMEType:    "application/json",
	}, s.handleSettingsResource)
}

func (s *Server) handleSettingsResource(ctx context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	settings, err := s.svc.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(settings.WithoutCache(), "", "  ")
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      settingsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		},
	}, nil
}
