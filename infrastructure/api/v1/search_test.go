package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/domain/service"
	"github.com/helixml/artsearch/infrastructure/api/middleware"
	v1 "github.com/helixml/artsearch/infrastructure/api/v1"
	"github.com/helixml/artsearch/infrastructure/api/v1/dto"
	"github.com/helixml/artsearch/infrastructure/vision"
)

type call struct {
	kind  string
	image search.Image
	text  string
	k     int
}

type fakeSearcher struct {
	calls   []call
	matches []artwork.Match
	err     error
}

func (f *fakeSearcher) ByImage(_ context.Context, image search.Image, k int) ([]artwork.Match, error) {
	f.calls = append(f.calls, call{kind: "image", image: image, k: k})
	if err := image.Validate(); err != nil {
		return nil, err
	}
	return f.matches, f.err
}

func (f *fakeSearcher) ByText(_ context.Context, text string, k int) ([]artwork.Match, error) {
	f.calls = append(f.calls, call{kind: "text", text: text, k: k})
	if strings.TrimSpace(text) == "" {
		return nil, search.ErrEmptyQuery
	}
	return f.matches, f.err
}

func (f *fakeSearcher) ByDescription(_ context.Context, text string, k int) ([]artwork.Match, error) {
	f.calls = append(f.calls, call{kind: "description", text: text, k: k})
	return f.matches, f.err
}

func sampleMatches() []artwork.Match {
	return []artwork.Match{
		{ObjectID: "1", Title: "Night Watch", ImageURL: "https://img.example/1.jpg", SearchScore: 0.93},
		{ObjectID: "2", Title: "The Milkmaid", ImageURL: "https://img.example/2.jpg", SearchScore: 0.81},
	}
}

func serve(t *testing.T, searcher v1.Searcher, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	v1.NewSearchRouter(searcher, nil).Routes().ServeHTTP(w, req)
	return w
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeMatches(t *testing.T, w *httptest.ResponseRecorder) []artwork.Match {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.SearchResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.SimilarImages
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorObject {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Errors, 1)
	return resp.Errors[0]
}

func TestSearchRouter_ImageURL(t *testing.T) {
	searcher := &fakeSearcher{matches: sampleMatches()}

	w := serve(t, searcher, jsonRequest("/image-url", `{"url":"https://img.example/q.jpg","top":2}`))

	matches := decodeMatches(t, w)
	assert.Len(t, matches, 2)
	assert.Equal(t, "Night Watch", matches[0].Title)
	require.Len(t, searcher.calls, 1)
	assert.Equal(t, "https://img.example/q.jpg", searcher.calls[0].image.URL())
	assert.Equal(t, 2, searcher.calls[0].k)
}

func TestSearchRouter_ImageURL_ResponseShape(t *testing.T) {
	w := serve(t, &fakeSearcher{matches: sampleMatches()[:1]}, jsonRequest("/image-url", `{"url":"https://img.example/q.jpg"}`))

	var raw map[string][]map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	require.Len(t, raw["similarImages"], 1)
	for _, key := range []string{"objectId", "accessionNum", "title", "attribution", "displayDate", "locationDescription", "medium", "dimensions", "imageUrl", "searchScore"} {
		assert.Contains(t, raw["similarImages"][0], key)
	}
}

func TestSearchRouter_ImageURL_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"top":3}`},
		{"blank url", `{"url":"   "}`},
		{"invalid json", `{"url":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			w := serve(t, searcher, jsonRequest("/image-url", tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "400", decodeError(t, w).Status)
			assert.Empty(t, searcher.calls)
		})
	}
}

func TestSearchRouter_ImageStream_RawBody(t *testing.T) {
	for _, contentType := range []string{"application/octet-stream", "image/png", "image/jpeg", "image/gif"} {
		t.Run(contentType, func(t *testing.T) {
			searcher := &fakeSearcher{matches: sampleMatches()}
			req := httptest.NewRequest(http.MethodPost, "/image-stream?top=1", bytes.NewReader([]byte{0x89, 0x50, 0x4e, 0x47}))
			req.Header.Set("Content-Type", contentType)

			w := serve(t, searcher, req)

			decodeMatches(t, w)
			require.Len(t, searcher.calls, 1)
			got := searcher.calls[0]
			assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, got.image.Bytes())
			assert.Equal(t, contentType, got.image.ContentType())
			assert.Equal(t, 1, got.k)
		})
	}
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSearchRouter_ImageStream_Multipart(t *testing.T) {
	searcher := &fakeSearcher{matches: sampleMatches()}
	body, contentType := multipartBody(t, map[string][]byte{"query.png": []byte("png-bytes")}, map[string]string{"note": "ignored"})
	req := httptest.NewRequest(http.MethodPost, "/image-stream", body)
	req.Header.Set("Content-Type", contentType)

	w := serve(t, searcher, req)

	decodeMatches(t, w)
	require.Len(t, searcher.calls, 1)
	assert.Equal(t, []byte("png-bytes"), searcher.calls[0].image.Bytes())
	assert.Equal(t, 0, searcher.calls[0].k)
}

func TestSearchRouter_ImageStream_MultipartFileCount(t *testing.T) {
	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{"no file", nil},
		{"two files", map[string][]byte{"a.png": []byte("a"), "b.png": []byte("b")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			body, contentType := multipartBody(t, tt.files, map[string]string{"note": "x"})
			req := httptest.NewRequest(http.MethodPost, "/image-stream", body)
			req.Header.Set("Content-Type", contentType)

			w := serve(t, searcher, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decodeError(t, w).Detail, "exactly one file")
			assert.Empty(t, searcher.calls)
		})
	}
}

func TestSearchRouter_ImageStream_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		path        string
	}{
		{"missing content type", "", "data", "/image-stream"},
		{"unsupported content type", "text/plain", "data", "/image-stream"},
		{"empty body", "image/png", "", "/image-stream"},
		{"bad top", "image/png", "data", "/image-stream?top=many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := serve(t, searcher, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, searcher.calls)
		})
	}
}

func TestSearchRouter_Text(t *testing.T) {
	searcher := &fakeSearcher{matches: sampleMatches()}

	w := serve(t, searcher, jsonRequest("/text", `{"text":"a ship in a storm","top":5}`))

	assert.Len(t, decodeMatches(t, w), 2)
	require.Len(t, searcher.calls, 1)
	assert.Equal(t, call{kind: "text", text: "a ship in a storm", k: 5}, searcher.calls[0])
}

func TestSearchRouter_TextEmptyQuery(t *testing.T) {
	w := serve(t, &fakeSearcher{}, jsonRequest("/text", `{"text":""}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchRouter_EmptyResultsEncodeAsList(t *testing.T) {
	w := serve(t, &fakeSearcher{}, jsonRequest("/text", `{"text":"nothing"}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"similarImages":[]}`, w.Body.String())
}

func TestSearchRouter_Description(t *testing.T) {
	searcher := &fakeSearcher{matches: sampleMatches()}

	w := serve(t, searcher, jsonRequest("/description", `{"text":"dutch golden age"}`))

	decodeMatches(t, w)
	require.Len(t, searcher.calls, 1)
	assert.Equal(t, "description", searcher.calls[0].kind)
}

func TestSearchRouter_DescriptionDisabled(t *testing.T) {
	w := serve(t, &fakeSearcher{err: service.ErrDescriptionSearchDisabled}, jsonRequest("/description", `{"text":"x"}`))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSearchRouter_UpstreamFailure(t *testing.T) {
	searcher := &fakeSearcher{err: &vision.UpstreamError{Operation: "vectorizeImage", StatusCode: 500, Message: "internal"}}

	w := serve(t, searcher, jsonRequest("/image-url", `{"url":"https://img.example/q.jpg"}`))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "502", decodeError(t, w).Status)
}
