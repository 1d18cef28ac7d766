package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch"
	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/infrastructure/api"
	"github.com/helixml/artsearch/internal/config"
)

// fakeEmbedder maps image URLs and query texts to fixed vectors.
type fakeEmbedder map[string][]float32

func (f fakeEmbedder) EmbedImage(_ context.Context, image search.Image) ([]float32, error) {
	if v, ok := f[image.URL()]; ok {
		return v, nil
	}
	return nil, errors.New("unknown image")
}

func (f fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if v, ok := f[text]; ok {
		return v, nil
	}
	return nil, errors.New("unknown text")
}

type sliceSource []artwork.Record

func (s sliceSource) Records(_ context.Context, limit int) ([]artwork.Record, error) {
	return artwork.Limit(s, limit), nil
}

// newTestClient returns a client whose image index holds two artworks.
func newTestClient(t *testing.T) *artsearch.Client {
	t.Helper()
	dir := t.TempDir()
	client, err := artsearch.New(
		artsearch.WithSQLite(filepath.Join(dir, "test.db")),
		artsearch.WithDataDir(dir),
		artsearch.WithEmbedder(fakeEmbedder{
			"https://img.example/harbour.jpg": {1, 0},
			"https://img.example/meadow.jpg":  {0, 1},
			"boats":                           {0.9, 0.1},
		}),
		artsearch.WithIndexConfig(config.NewIndexConfig().WithName("api-test").WithDimension(2)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Ingest(context.Background(), sliceSource{
		artwork.NewRecord("10", "https://img.example/harbour.jpg", artwork.WithTitle("Harbour at Dawn")),
		artwork.NewRecord("11", "https://img.example/meadow.jpg", artwork.WithTitle("Meadow")),
	})
	require.NoError(t, err)
	return client
}

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	return api.NewAPIServer(newTestClient(t), nil, "9.9.9").Handler()
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}
