package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

// fakeSearch records the last call and returns canned matches.
type fakeSearch struct {
	matches []artwork.Match
	err     error

	method string
	query  string
	k      int
}

func (f *fakeSearch) ByImage(_ context.Context, image search.Image, k int) ([]artwork.Match, error) {
	f.method, f.query, f.k = "image", image.URL(), k
	return f.matches, f.err
}

func (f *fakeSearch) ByText(_ context.Context, text string, k int) ([]artwork.Match, error) {
	f.method, f.query, f.k = "text", text, k
	return f.matches, f.err
}

func (f *fakeSearch) ByDescription(_ context.Context, text string, k int) ([]artwork.Match, error) {
	f.method, f.query, f.k = "description", text, k
	return f.matches, f.err
}

var _ Searcher = (*fakeSearch)(nil)

// toolResult mirrors the JSON shape of mcp.CallToolResult.
type toolResult struct {
	IsError bool `json:"isError"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (r toolResult) text(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.Content, "no content in result")
	return r.Content[0].Text
}

func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	result := srv.MCPServer().HandleMessage(context.Background(), raw)
	resp, ok := result.(mcp.JSONRPCResponse)
	require.Truef(t, ok, "expected JSONRPCResponse, got %T: %+v", result, result)
	return resp
}

func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

func initialize(t *testing.T, srv *Server) {
	t.Helper()
	sendMessage(t, srv, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test-client", "version": "0.0.1"},
	})
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) toolResult {
	t.Helper()
	initialize(t, srv)
	resp := sendMessage(t, srv, "tools/call", 2, map[string]any{
		"name":      name,
		"arguments": args,
	})
	var result toolResult
	resultJSON(t, resp, &result)
	return result
}

func sampleMatches() []artwork.Match {
	return []artwork.Match{
		{ObjectID: "436535", Title: "Wheat Field with Cypresses", Attribution: "Gogh, Vincent van", SearchScore: 0.91},
		{ObjectID: "45434", Title: "Sunflowers", SearchScore: 0.73},
	}
}

func TestServer_Initialize(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "1.2.3", nil)
	resp := sendMessage(t, srv, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test-client", "version": "0.0.1"},
	})

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)
	assert.Equal(t, "artsearch", result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
	assert.NotNil(t, result.Capabilities.Tools)
}

func TestServer_ListTools(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "", nil)
	initialize(t, srv)

	resp := sendMessage(t, srv, "tools/list", 2, nil)
	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	tools := map[string]mcp.Tool{}
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}
	require.Len(t, tools, 3)

	for name, param := range map[string]string{
		"search_by_text":      "query",
		"search_by_image_url": "url",
		"search_descriptions": "query",
	} {
		tool, ok := tools[name]
		require.Truef(t, ok, "missing tool %s", name)
		assert.Contains(t, tool.InputSchema.Properties, param)
		assert.Contains(t, tool.InputSchema.Properties, "top_k")
		assert.Contains(t, tool.InputSchema.Required, param)
	}
}

func TestServer_SearchByText(t *testing.T) {
	fake := &fakeSearch{matches: sampleMatches()}
	srv := NewServer(fake, "", nil)

	result := callTool(t, srv, "search_by_text", map[string]any{"query": "golden fields", "top_k": 2})
	require.False(t, result.IsError, result.text(t))

	var items []artwork.Match
	require.NoError(t, json.Unmarshal([]byte(result.text(t)), &items))
	require.Len(t, items, 2)
	assert.Equal(t, "436535", items[0].ObjectID)
	assert.InDelta(t, 0.91, items[0].SearchScore, 1e-9)

	assert.Equal(t, "text", fake.method)
	assert.Equal(t, "golden fields", fake.query)
	assert.Equal(t, 2, fake.k)
}

func TestServer_SearchByImageURL(t *testing.T) {
	fake := &fakeSearch{matches: sampleMatches()[:1]}
	srv := NewServer(fake, "", nil)

	result := callTool(t, srv, "search_by_image_url", map[string]any{"url": "https://example.com/a.jpg"})
	require.False(t, result.IsError, result.text(t))

	assert.Equal(t, "image", fake.method)
	assert.Equal(t, "https://example.com/a.jpg", fake.query)
	assert.Equal(t, 0, fake.k)
}

func TestServer_SearchDescriptionsEmpty(t *testing.T) {
	fake := &fakeSearch{}
	srv := NewServer(fake, "", nil)

	result := callTool(t, srv, "search_descriptions", map[string]any{"query": "portrait"})
	require.False(t, result.IsError)
	assert.Equal(t, "[]", result.text(t))
	assert.Equal(t, "description", fake.method)
}

func TestServer_MissingArguments(t *testing.T) {
	srv := NewServer(&fakeSearch{}, "", nil)

	for tool, want := range map[string]string{
		"search_by_text":      "query is required",
		"search_by_image_url": "url is required",
		"search_descriptions": "query is required",
	} {
		t.Run(tool, func(t *testing.T) {
			result := callTool(t, srv, tool, map[string]any{})
			assert.True(t, result.IsError)
			assert.Contains(t, result.text(t), want)
		})
	}
}

func TestServer_SearchError(t *testing.T) {
	srv := NewServer(&fakeSearch{err: errors.New("upstream unavailable")}, "", nil)

	result := callTool(t, srv, "search_by_text", map[string]any{"query": "boats"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.text(t), "search failed: upstream unavailable")
}
