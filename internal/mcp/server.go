// Package mcp exposes artwork search as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

// Searcher answers similarity queries for the MCP tools.
type Searcher interface {
	ByImage(ctx context.Context, image search.Image, k int) ([]artwork.Match, error)
	ByText(ctx context.Context, text string, k int) ([]artwork.Match, error)
	ByDescription(ctx context.Context, text string, k int) ([]artwork.Match, error)
}

// Server wraps the MCP server with artwork search tools.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	logger    *slog.Logger
}

// NewServer creates an MCP server reporting version in its server info.
func NewServer(searcher Searcher, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	s := &Server{
		searcher: searcher,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"artsearch",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Find museum artworks that look like an image or match a text query. "+
			"Results are JSON arrays ordered by searchScore, highest first."),
	)
	s.registerTools(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	topK := mcp.WithNumber("top_k",
		mcp.Description("Number of results to return (default: server setting)"),
	)

	mcpServer.AddTool(mcp.NewTool("search_by_text",
		mcp.WithDescription("Find artworks whose images match a text description, e.g. 'a ship in a storm'"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("What the artwork should depict"),
		),
		topK,
	), s.handleText)

	mcpServer.AddTool(mcp.NewTool("search_by_image_url",
		mcp.WithDescription("Find artworks that look similar to the image at a URL"),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Publicly reachable image URL"),
		),
		topK,
	), s.handleImageURL)

	mcpServer.AddTool(mcp.NewTool("search_descriptions",
		mcp.WithDescription("Search artwork catalogue text (title, artist, medium, date) semantically"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		topK,
	), s.handleDescriptions)
}

func (s *Server) handleText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	matches, err := s.searcher.ByText(ctx, query, request.GetInt("top_k", 0))
	return s.result(ctx, "search_by_text", matches, err)
}

func (s *Server) handleImageURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil || url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	matches, err := s.searcher.ByImage(ctx, search.ImageFromURL(url), request.GetInt("top_k", 0))
	return s.result(ctx, "search_by_image_url", matches, err)
}

func (s *Server) handleDescriptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	matches, err := s.searcher.ByDescription(ctx, query, request.GetInt("top_k", 0))
	return s.result(ctx, "search_descriptions", matches, err)
}

// result renders matches as a JSON array, or the search error as a tool
// error.
func (s *Server) result(ctx context.Context, tool string, matches []artwork.Match, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp search failed", slog.String("tool", tool), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if matches == nil {
		matches = []artwork.Match{}
	}

	jsonBytes, err := json.Marshal(matches)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MCPServer returns the underlying MCP server for HTTP or stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
