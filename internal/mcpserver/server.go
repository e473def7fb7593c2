// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the matrix CEC controller for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/renholt/crossbar/internal/cec"
	"github.com/renholt/crossbar/internal/port"
	"github.com/renholt/crossbar/internal/scenes"
)

// Server wraps the MCP server with crossbar tools.
type Server struct {
	mcp    *server.MCPServer
	ctrl   *cec.Controller
	scenes scenes.Store
}

// New creates a new MCP server with all crossbar tools registered.
func New(ctrl *cec.Controller, sceneStore scenes.Store) *Server {
	s := &Server{ctrl: ctrl, scenes: sceneStore}

	s.mcp = server.NewMCPServer(
		"Crossbar",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_cec_targets",
		mcp.WithDescription("Return the currently resolved CEC targets per category "+
			"(navigation, playback, volume, power lists) and the active scene, if any."),
	), s.getTargets)

	s.mcp.AddTool(mcp.NewTool("send_cec_command",
		mcp.WithDescription("Dispatch a CEC command to its resolved target(s). "+
			"Read the crossbar://cec-commands resource for the per-category vocabulary."),
		mcp.WithString("category", mcp.Required(), mcp.Description("One of: power, navigation, playback, volume")),
		mcp.WithString("command", mcp.Required(), mcp.Description("Command name from the category's vocabulary (e.g. select, mute, power_on)")),
	), s.sendCommand)

	s.mcp.AddTool(mcp.NewTool("set_cec_override",
		mcp.WithDescription("Pin a category (navigation, playback, volume) to a fixed port "+
			"like \"input_3\" or \"output_5\", or pass an empty target to restore automatic resolution."),
		mcp.WithString("category", mcp.Required(), mcp.Description("Category to override")),
		mcp.WithString("target", mcp.Description("Port reference, empty to clear the override")),
	), s.setOverride)

	s.mcp.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List saved routing scenes with their IDs."),
	), s.listScenes)

	s.mcp.AddTool(mcp.NewTool("activate_scene",
		mcp.WithDescription("Link a scene's CEC configuration to the controller by scene ID. "+
			"Note: this does not re-route the matrix; use the REST API for full activation."),
		mcp.WithString("scene_id", mcp.Required(), mcp.Description("Scene ID from list_scenes")),
	), s.activateScene)

	// Resource: command vocabulary.
	s.mcp.AddResource(
		mcp.NewResource("crossbar://cec-commands", "CEC Command Vocabulary",
			mcp.WithResourceDescription("Per-category CEC command names accepted by send_cec_command."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readVocabularyResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := map[string]any{
		"targets":      s.ctrl.ResolvedTargets(),
		"active_scene": s.ctrl.ActiveScene(),
	}
	out, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) sendCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawCategory, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := cec.ParseCategory(rawCategory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.ctrl.Execute(ctx, category, command)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Status == cec.StatusNoTarget {
		return mcp.NewToolResultText("no target configured for " + rawCategory), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %d succeeded, %d failed", res.Status, res.Succeeded, res.Failed)), nil
}

func (s *Server) setOverride(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawCategory, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := cec.ParseCategory(rawCategory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var ref *port.Ref
	if target, err := req.RequireString("target"); err == nil && target != "" {
		parsed, err := port.Parse(target)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ref = &parsed
	}

	if err := s.ctrl.SetOverride(category, ref); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("category %s does not support overrides", rawCategory)), nil
	}
	if ref == nil {
		return mcp.NewToolResultText(fmt.Sprintf("override cleared for %s", rawCategory)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s pinned to %s", rawCategory, ref)), nil
}

func (s *Server) listScenes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.scenes.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(list, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) activateScene(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sceneID, err := req.RequireString("scene_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.scenes.Get(ctx, sceneID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scene not found: %s", sceneID)), nil
	}
	s.ctrl.SetActiveScene(ctx, sceneID)
	return mcp.NewToolResultText("scene activated: " + sceneID), nil
}

func (s *Server) readVocabularyResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "crossbar://cec-commands",
			MIMEType: "text/markdown",
			Text:     CommandVocabulary,
		},
	}, nil
}
