// Package e2e_test runs the full ingest and search path against fake
// embedding services.
package e2e_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch"
	"github.com/helixml/artsearch/infrastructure/api"
	"github.com/helixml/artsearch/internal/config"
)

const collectionCSV = "ObjectId,ImageUrl,Artist,Title,CreationDate,Medium,Department\n" +
	"101,https://img.example/harbour.jpg,Turner,Harbour at Night,1840,Oil on canvas,Paintings\n" +
	"102,https://img.example/meadow.jpg,Monet,Meadow in Spring,1886,Oil on canvas,Paintings\n" +
	"103,https://img.example/missing.jpg,Unknown,Lost Sketch,1900,Chalk,Drawings\n"

// uploadedImage is the body the fake vision service recognises for raw
// uploads.
var uploadedImage = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

// visionService fakes the multimodal vectorize endpoints. Unknown images
// get a 400 so the ingestion skips them.
type visionService struct {
	server   *httptest.Server
	throttle atomic.Int32
	calls    atomic.Int32
}

func newVisionService(t *testing.T) *visionService {
	t.Helper()
	v := &visionService{}
	v.server = httptest.NewServer(http.HandlerFunc(v.handle))
	t.Cleanup(v.server.Close)
	return v
}

func (v *visionService) handle(w http.ResponseWriter, r *http.Request) {
	v.calls.Add(1)
	if r.Header.Get("Ocp-Apim-Subscription-Key") != "vision-key" {
		http.Error(w, `{"error":{"code":"401"}}`, http.StatusUnauthorized)
		return
	}
	if v.throttle.Load() > 0 {
		v.throttle.Add(-1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	body, _ := io.ReadAll(r.Body)
	var vector []float32
	switch {
	case strings.HasSuffix(r.URL.Path, ":vectorizeImage") && bytes.Equal(body, uploadedImage):
		vector = []float32{0.1, 0.9, 0}
	case strings.HasSuffix(r.URL.Path, ":vectorizeImage"):
		var req struct {
			URL string `json:"url"`
		}
		_ = json.Unmarshal(body, &req)
		switch req.URL {
		case "https://img.example/harbour.jpg":
			vector = []float32{1, 0, 0}
		case "https://img.example/meadow.jpg":
			vector = []float32{0, 1, 0}
		}
	case strings.HasSuffix(r.URL.Path, ":vectorizeText"):
		var req struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &req)
		if strings.Contains(req.Text, "ship") {
			vector = []float32{0.8, 0.2, 0}
		} else {
			vector = []float32{0, 0.7, 0.3}
		}
	}
	if vector == nil {
		http.Error(w, `{"error":{"code":"InvalidImageUrl"}}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"modelVersion": "2024-02-01", "vector": vector})
}

// newTextService fakes an OpenAI-compatible embeddings endpoint: texts
// mentioning night map to one axis, everything else to the other.
func newTextService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			vector := []float32{0, 1}
			if strings.Contains(strings.ToLower(text), "night") {
				vector = []float32{1, 0}
			}
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vector}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// Env is a client wired to the fake services plus an HTTP server in front
// of it.
type Env struct {
	Client  *artsearch.Client
	Vision  *visionService
	HTTP    *httptest.Server
	CSVPath string
}

func newEnv(t *testing.T) *Env {
	t.Helper()
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "collection.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(collectionCSV), 0o600))

	vision := newVisionService(t)
	text := newTextService(t)

	client, err := artsearch.New(
		artsearch.WithSQLite(filepath.Join(dir, "e2e.db")),
		artsearch.WithDataDir(dir),
		artsearch.WithVisionEndpoint(config.NewVisionEndpointWithOptions(
			config.WithVisionBaseURL(vision.server.URL),
			config.WithVisionAPIKey("vision-key"),
			config.WithVisionMaxRetries(1),
		)),
		artsearch.WithTextEndpoint(config.NewEndpointWithOptions(
			config.WithBaseURL(text.URL),
			config.WithAPIKey("text-key"),
			config.WithMaxRetries(0),
		)),
		artsearch.WithIndexConfig(config.NewIndexConfig().
			WithName("e2e").
			WithDimension(3).
			WithTextDimension(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	httpServer := httptest.NewServer(api.NewAPIServer(client, nil, "e2e").Handler())
	t.Cleanup(httpServer.Close)

	return &Env{Client: client, Vision: vision, HTTP: httpServer, CSVPath: csvPath}
}

func (e *Env) post(t *testing.T, path, contentType string, body []byte) (int, []byte) {
	t.Helper()
	resp, err := http.Post(e.HTTP.URL+path, contentType, bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *Env) postJSON(t *testing.T, path string, body any) (int, []byte) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return e.post(t, path, "application/json", b)
}

// similarImages decodes a search response into object IDs, best first.
func similarImages(t *testing.T, body []byte) []string {
	t.Helper()
	var resp struct {
		SimilarImages []struct {
			ObjectID    string  `json:"objectId"`
			SearchScore float64 `json:"searchScore"`
		} `json:"similarImages"`
	}
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	ids := make([]string, len(resp.SimilarImages))
	for i, m := range resp.SimilarImages {
		ids[i] = m.ObjectID
	}
	return ids
}
