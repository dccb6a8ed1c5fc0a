// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes relay state for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/relayservice"
)

const frameFormatURI = "raido://frame-format"

// Server wraps the MCP server with relay tools.
type Server struct {
	mcp *server.MCPServer
	svc *relayservice.Service
}

// New creates a new MCP server with all relay tools registered.
func New(svc *relayservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Return the last published telemetry snapshot: the user aircraft, "+
			"carriers, frigates and AI or multiplayer traffic, as JSON."),
	), s.getSnapshot)

	s.mcp.AddTool(mcp.NewTool("pipeline_stats",
		mcp.WithDescription("Return cache, loader, store, publisher and sampler counters."),
	), s.pipelineStats)

	s.mcp.AddTool(mcp.NewTool("lookup_metadata",
		mcp.WithDescription("Report what the metadata cache knows about an aircraft model file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path of the model file")),
		mcp.WithBoolean("load", mcp.Description("Queue a background load when the file is unknown")),
	), s.lookupMetadata)

	s.mcp.AddTool(mcp.NewTool("invalidate_metadata",
		mcp.WithDescription("Drop cached metadata for a model file so it is reloaded on next use. "+
			"With no path, clears every missing-file marker instead."),
		mcp.WithString("path", mcp.Description("Absolute path of the model file")),
	), s.invalidateMetadata)

	s.mcp.AddTool(mcp.NewTool("get_track",
		mcp.WithDescription("Return archived positions, newest first."),
		mcp.WithString("registration", mcp.Description("Registration to select (empty for the user aircraft)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of points (default 20)")),
	), s.getTrack)

	s.mcp.AddResource(
		mcp.NewResource(frameFormatURI, "Frame Format",
			mcp.WithResourceDescription("Layout of the frames written to the shared transport."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFrameFormatResource,
	)

	return s
}

// Serve runs the MCP server over in and out until ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	err := server.NewStdioServer(s.mcp).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("no snapshot published yet"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(snap)
}

func (s *Server) pipelineStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Stats(ctx))
}

func (s *Server) lookupMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.svc.Metadata(ctx, path, req.GetBool("load", false))
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not cached: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) invalidateMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		n := s.svc.ForgetMissing(ctx)
		return mcp.NewToolResultText(fmt.Sprintf("cleared %d missing markers", n)), nil
	}
	if err := s.svc.Invalidate(ctx, path); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("invalidated: %s", path)), nil
}

func (s *Server) getTrack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := req.GetString("registration", "")
	pts, err := s.svc.Track(ctx, reg, req.GetInt("limit", 20))
	if errors.Is(err, apperr.ErrDisabled) {
		return mcp.NewToolResultError("archive is disabled"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(pts)
}

func (s *Server) readFrameFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      frameFormatURI,
			MIMEType: "text/markdown",
			Text:     FrameFormat,
		},
	}, nil
}
