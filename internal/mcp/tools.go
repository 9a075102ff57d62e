// ABOUTME: MCP tool definitions and handlers
// ABOUTME: Serves noisy positions, level resolution and settings changes to agents

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/source"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	s.registerGetNoisyPositionTool()
	s.registerResolveLevelTool()
	s.registerWatchAllowedTool()
	s.registerSetLevelTool()
	s.registerSetPausedTool()
}

// CallInput identifies the page making a geolocation call.
type CallInput struct {
	URL     string `json:"url"`
	TopURL  string `json:"top_url,omitempty"`
	InFrame bool   `json:"in_frame,omitempty"`
	Tab     string `json:"tab,omitempty"`
}

func (c CallInput) call() policy.CallContext {
	top := c.TopURL
	if top == "" && !c.InFrame {
		top = c.URL
	}
	return policy.CallContext{Tab: c.Tab, URL: c.URL, TopURL: top, InFrame: c.InFrame}
}

var callProperties = map[string]any{
	"url": map[string]any{
		"type":        "string",
		"description": "URL of the page (or frame) calling the geolocation API",
	},
	"top_url": map[string]any{
		"type":        "string",
		"description": "URL of the top-level page when the call comes from a frame",
	},
	"in_frame": map[string]any{
		"type":        "boolean",
		"description": "Whether the call comes from an embedded frame",
	},
	"tab": map[string]any{
		"type":        "string",
		"description": "Optional tab identifier used for call accounting",
	},
}

func withCallProperties(extra map[string]any) map[string]any {
	props := make(map[string]any, len(callProperties)+len(extra))
	for k, v := range callProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// GetNoisyPositionInput defines input for the get_noisy_position tool.
type GetNoisyPositionInput struct {
	CallInput
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// PositionOutput is a served position.
type PositionOutput struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) registerGetNoisyPositionTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_noisy_position",
		Description: "Get the position a page would receive under its privacy level. Pass latitude/longitude to obfuscate a specific fix instead of the configured source.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": withCallProperties(map[string]any{
				"latitude": map[string]any{
					"type":        "number",
					"description": "True latitude (-90 to 90)",
				},
				"longitude": map[string]any{
					"type":        "number",
					"description": "True longitude (-180 to 180)",
				},
				"accuracy": map[string]any{
					"type":        "number",
					"description": "Accuracy of the true fix in meters",
				},
			}),
			"required": []string{"url"},
		},
	}, s.handleGetNoisyPosition)
}

func (s *Server) handleGetNoisyPosition(ctx context.Context, _ *mcp.CallToolRequest, input GetNoisyPositionInput) (*mcp.CallToolResult, PositionOutput, error) {
	if input.URL == "" {
		return nil, PositionOutput{}, errors.New("url is required")
	}

	svc := s.svc
	switch {
	case input.Latitude != nil && input.Longitude != nil:
		if err := models.ValidateCoordinates(*input.Latitude, *input.Longitude); err != nil {
			return nil, PositionOutput{}, err
		}
		svc = svc.WithSource(source.NewStatic(*input.Latitude, *input.Longitude, input.Accuracy))
	case input.Latitude != nil || input.Longitude != nil:
		return nil, PositionOutput{}, errors.New("latitude and longitude must be given together")
	}

	pos, err := svc.GetNoisyPosition(ctx, input.call(), source.FetchOptions{})
	if err != nil {
		return nil, PositionOutput{}, err
	}

	output := PositionOutput{
		Latitude:  pos.Coords.Latitude,
		Longitude: pos.Coords.Longitude,
		Accuracy:  pos.Coords.Accuracy,
		Timestamp: pos.Timestamp,
	}
	return jsonResult(output), output, nil
}

// ResolveLevelOutput describes how a page is treated.
type ResolveLevelOutput struct {
	Origin        string  `json:"origin"`
	Level         string  `json:"level"`
	Kind          string  `json:"kind"`
	RadiusMeters  float64 `json:"radius_meters,omitempty"`
	CacheMinutes  float64 `json:"cache_minutes,omitempty"`
	RealPermitted bool    `json:"real_permitted"`
}

func (s *Server) registerResolveLevelTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "resolve_level",
		Description: "Show which privacy level applies to a page and whether it may see the real location.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": withCallProperties(nil),
			"required":   []string{"url"},
		},
	}, s.handleResolveLevel)
}

func (s *Server) handleResolveLevel(ctx context.Context, _ *mcp.CallToolRequest, input CallInput) (*mcp.CallToolResult, ResolveLevelOutput, error) {
	if input.URL == "" {
		return nil, ResolveLevelOutput{}, errors.New("url is required")
	}
	res, err := s.svc.Resolve(ctx, input.call())
	if err != nil {
		return nil, ResolveLevelOutput{}, err
	}

	output := ResolveLevelOutput{
		Origin:        res.Origin,
		Level:         res.Level.Name,
		Kind:          res.Level.Kind.String(),
		RealPermitted: res.RealPermitted,
	}
	if res.Level.IsRadius() {
		output.RadiusMeters = res.Level.Radius
		output.CacheMinutes = res.Level.CacheTTL.Minutes()
	}
	return jsonResult(output), output, nil
}

// WatchAllowedInput defines input for the watch_allowed tool.
type WatchAllowedInput struct {
	CallInput
	FirstCall bool `json:"first_call,omitempty"`
}

// WatchAllowedOutput reports the watch decision.
type WatchAllowedOutput struct {
	Allowed bool `json:"allowed"`
}

func (s *Server) registerWatchAllowedTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "watch_allowed",
		Description: "Check whether a continuous position watch may use the real location. Follow-up calls are counted.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": withCallProperties(map[string]any{
				"first_call": map[string]any{
					"type":        "boolean",
					"description": "True for the initial check when the watch is registered",
				},
			}),
			"required": []string{"url"},
		},
	}, s.handleWatchAllowed)
}

func (s *Server) handleWatchAllowed(ctx context.Context, _ *mcp.CallToolRequest, input WatchAllowedInput) (*mcp.CallToolResult, WatchAllowedOutput, error) {
	if input.URL == "" {
		return nil, WatchAllowedOutput{}, errors.New("url is required")
	}
	allowed, err := s.svc.WatchAllowed(ctx, input.call(), input.FirstCall)
	if err != nil {
		return nil, WatchAllowedOutput{}, err
	}
	output := WatchAllowedOutput{Allowed: allowed}
	return jsonResult(output), output, nil
}

// SetLevelInput defines input for the set_level tool.
type SetLevelInput struct {
	Level  string `json:"level,omitempty"`
	Domain string `json:"domain,omitempty"`
	Clear  bool   `json:"clear,omitempty"`
}

// MessageOutput is a plain confirmation.
type MessageOutput struct {
	Message string `json:"message"`
}

func (s *Server) registerSetLevelTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_level",
		Description: "Set the default privacy level, or the level for one domain. Use clear to remove a domain override.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"level": map[string]any{
					"type":        "string",
					"description": "Level name: real, fixed, or a radius level such as low, medium, high",
				},
				"domain": map[string]any{
					"type":        "string",
					"description": "Domain or URL to configure; omit to change the default level",
				},
				"clear": map[string]any{
					"type":        "boolean",
					"description": "Remove the override for domain",
				},
			},
		},
	}, s.handleSetLevel)
}

func (s *Server) handleSetLevel(ctx context.Context, _ *mcp.CallToolRequest, input SetLevelInput) (*mcp.CallToolResult, MessageOutput, error) {
	var (
		err error
		msg string
	)
	switch {
	case input.Clear:
		if input.Domain == "" {
			return nil, MessageOutput{}, errors.New("clear requires domain")
		}
		err = s.svc.ClearDomainLevel(ctx, input.Domain)
		msg = fmt.Sprintf("cleared level for %s", policy.ExtractDomain(input.Domain))
	case input.Level == "":
		return nil, MessageOutput{}, errors.New("level is required")
	case input.Domain == "":
		err = s.svc.SetDefaultLevel(ctx, input.Level)
		msg = fmt.Sprintf("default level set to %s", input.Level)
	default:
		err = s.svc.SetDomainLevel(ctx, input.Domain, input.Level)
		msg = fmt.Sprintf("level for %s set to %s", policy.ExtractDomain(input.Domain), input.Level)
	}
	if err != nil {
		return nil, MessageOutput{}, err
	}

	output := MessageOutput{Message: msg}
	return jsonResult(output), output, nil
}

// SetPausedInput defines input for the set_paused tool.
type SetPausedInput struct {
	Paused bool `json:"paused"`
}

func (s *Server) registerSetPausedTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "set_paused",
		Description: "Pause or resume protection. While paused, top-level pages receive the real location.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"paused": map[string]any{
					"type":        "boolean",
					"description": "True to pause protection, false to resume",
				},
			},
			"required": []string{"paused"},
		},
	}, s.handleSetPaused)
}

func (s *Server) handleSetPaused(ctx context.Context, _ *mcp.CallToolRequest, input SetPausedInput) (*mcp.CallToolResult, MessageOutput, error) {
	if err := s.svc.SetPaused(ctx, input.Paused); err != nil {
		return nil, MessageOutput{}, err
	}
	msg := "protection resumed"
	if input.Paused {
		msg = "protection paused"
	}
	output := MessageOutput{Message: msg}
	return jsonResult(output), output, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, _ := json.MarshalIndent(v, "", "  ") //nolint:errchkjson // output is always serializable
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(jsonBytes)}},
	}
}
