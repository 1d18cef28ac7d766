// Package v1 implements the version 1 HTTP API.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/infrastructure/api/middleware"
	"github.com/helixml/artsearch/infrastructure/api/v1/dto"
)

// MaxImageBytes is the largest uploaded image accepted.
const MaxImageBytes = 20 << 20

// maxJSONBytes bounds JSON request bodies.
const maxJSONBytes = 1 << 20

// imageContentTypes are the raw body types accepted by image-stream.
var imageContentTypes = map[string]bool{
	"application/octet-stream": true,
	"image/png":                true,
	"image/jpeg":               true,
	"image/gif":                true,
}

// Searcher answers similarity queries.
type Searcher interface {
	ByImage(ctx context.Context, image search.Image, k int) ([]artwork.Match, error)
	ByText(ctx context.Context, text string, k int) ([]artwork.Match, error)
	ByDescription(ctx context.Context, text string, k int) ([]artwork.Match, error)
}

// SearchRouter handles search API endpoints.
type SearchRouter struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchRouter creates a new SearchRouter.
func NewSearchRouter(searcher Searcher, logger *slog.Logger) *SearchRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchRouter{searcher: searcher, logger: logger}
}

// Routes returns the chi router for search endpoints.
func (r *SearchRouter) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/image-url", r.ImageURL)
	router.Post("/image-stream", r.ImageStream)
	router.Post("/text", r.Text)
	router.Post("/description", r.Description)

	return router
}

// ImageURL handles POST /api/v1/search/image-url.
//
//	@Summary		Search by image URL
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.ImageURLRequest	true	"Image URL and result count"
//	@Success		200		{object}	dto.SearchResponse
//	@Failure		400		{object}	middleware.ErrorResponse
//	@Failure		502		{object}	middleware.ErrorResponse
//	@Router			/search/image-url [post]
func (r *SearchRouter) ImageURL(w http.ResponseWriter, req *http.Request) {
	var body dto.ImageURLRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		middleware.WriteError(w, req, middleware.BadRequest("url is required", nil), r.logger)
		return
	}

	matches, err := r.searcher.ByImage(req.Context(), search.ImageFromURL(body.URL), body.Top)
	r.respond(w, req, matches, err)
}

// ImageStream handles POST /api/v1/search/image-stream.
//
//	@Summary		Search by uploaded image
//	@Tags			search
//	@Accept			octet-stream,png,jpeg,gif,mpfd
//	@Produce		json
//	@Param			top	query		int	false	"Number of results"
//	@Success		200	{object}	dto.SearchResponse
//	@Failure		400	{object}	middleware.ErrorResponse
//	@Failure		502	{object}	middleware.ErrorResponse
//	@Router			/search/image-stream [post]
func (r *SearchRouter) ImageStream(w http.ResponseWriter, req *http.Request) {
	top, err := topParam(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	image, err := readImage(req)
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	matches, err := r.searcher.ByImage(req.Context(), image, top)
	r.respond(w, req, matches, err)
}

// Text handles POST /api/v1/search/text.
//
//	@Summary		Search images by text
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.TextRequest	true	"Query text and result count"
//	@Success		200		{object}	dto.SearchResponse
//	@Failure		400		{object}	middleware.ErrorResponse
//	@Failure		502		{object}	middleware.ErrorResponse
//	@Router			/search/text [post]
func (r *SearchRouter) Text(w http.ResponseWriter, req *http.Request) {
	var body dto.TextRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	matches, err := r.searcher.ByText(req.Context(), body.Text, body.Top)
	r.respond(w, req, matches, err)
}

// Description handles POST /api/v1/search/description.
//
//	@Summary		Search descriptions
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		dto.TextRequest	true	"Query text and result count"
//	@Success		200		{object}	dto.SearchResponse
//	@Failure		400		{object}	middleware.ErrorResponse
//	@Failure		503		{object}	middleware.ErrorResponse
//	@Router			/search/description [post]
func (r *SearchRouter) Description(w http.ResponseWriter, req *http.Request) {
	var body dto.TextRequest
	if err := decodeJSON(req, &body); err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}

	matches, err := r.searcher.ByDescription(req.Context(), body.Text, body.Top)
	r.respond(w, req, matches, err)
}

func (r *SearchRouter) respond(w http.ResponseWriter, req *http.Request, matches []artwork.Match, err error) {
	if err != nil {
		middleware.WriteError(w, req, err, r.logger)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, dto.NewSearchResponse(matches))
}

func decodeJSON(req *http.Request, dst any) error {
	if err := json.NewDecoder(io.LimitReader(req.Body, maxJSONBytes)).Decode(dst); err != nil {
		return middleware.BadRequest("invalid JSON body", err)
	}
	return nil
}

func topParam(req *http.Request) (int, error) {
	raw := req.URL.Query().Get("top")
	if raw == "" {
		return 0, nil
	}
	top, err := strconv.Atoi(raw)
	if err != nil || top < 0 {
		return 0, middleware.BadRequest("top must be a non-negative integer", err)
	}
	return top, nil
}

// readImage extracts the uploaded image from a raw body or from a
// multipart form holding exactly one file.
func readImage(req *http.Request) (search.Image, error) {
	header := req.Header.Get("Content-Type")
	if header == "" {
		return search.Image{}, middleware.BadRequest("content type is required", nil)
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return search.Image{}, middleware.BadRequest("invalid content type", err)
	}

	switch {
	case imageContentTypes[mediaType]:
		data, err := readLimited(req.Body)
		if err != nil {
			return search.Image{}, err
		}
		return search.ImageFromBytes(data, mediaType), nil
	case mediaType == "multipart/form-data":
		return readMultipartImage(multipart.NewReader(req.Body, params["boundary"]))
	}
	return search.Image{}, middleware.BadRequest("unsupported content type "+mediaType, nil)
}

func readMultipartImage(mr *multipart.Reader) (search.Image, error) {
	var (
		image search.Image
		files int
	)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return search.Image{}, middleware.BadRequest("invalid multipart body", err)
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		files++
		if files > 1 {
			_ = part.Close()
			return search.Image{}, middleware.BadRequest("exactly one file is required", nil)
		}
		data, err := readLimited(part)
		_ = part.Close()
		if err != nil {
			return search.Image{}, err
		}
		contentType := part.Header.Get("Content-Type")
		if !imageContentTypes[contentType] {
			contentType = search.DefaultImageContentType
		}
		image = search.ImageFromBytes(data, contentType)
	}
	if files == 0 {
		return search.Image{}, middleware.BadRequest("exactly one file is required", nil)
	}
	return image, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, middleware.BadRequest("could not read image", err)
	}
	if len(data) == 0 {
		return nil, middleware.BadRequest("image body is empty", nil)
	}
	if len(data) > MaxImageBytes {
		return nil, middleware.NewAPIError(http.StatusRequestEntityTooLarge, "image exceeds 20 MB", nil)
	}
	return data, nil
}
