package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postMCP(t *testing.T, handler http.Handler, method string, id int, params map[string]any, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	msg := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		msg["params"] = params
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func initMCPSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	w := postMCP(t, handler, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "artsearch", resp.Result.ServerInfo.Name)
	assert.Equal(t, "9.9.9", resp.Result.ServerInfo.Version)

	sessionID := w.Header().Get("Mcp-Session-Id")
	require.NotEmpty(t, sessionID, "initialize did not return a session ID")
	return sessionID
}

func TestMCPEndpoint_ListTools(t *testing.T) {
	handler := newTestHandler(t)
	sessionID := initMCPSession(t, handler)

	w := postMCP(t, handler, "tools/list", 2, nil, sessionID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"search_by_text", "search_by_image_url", "search_descriptions"}, names)
}

func TestMCPEndpoint_SearchByText(t *testing.T) {
	handler := newTestHandler(t)
	sessionID := initMCPSession(t, handler)

	w := postMCP(t, handler, "tools/call", 3, map[string]any{
		"name":      "search_by_text",
		"arguments": map[string]any{"query": "boats", "top_k": 1},
	}, sessionID)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			IsError bool `json:"isError"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.False(t, resp.Result.IsError)
	require.NotEmpty(t, resp.Result.Content)

	var matches []struct {
		ObjectID string `json:"objectId"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "10", matches[0].ObjectID)
}

func TestMCPEndpoint_RejectsInvalidContentType(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
