package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

// DefaultTopK is the number of matches returned when a caller asks for none.
const DefaultTopK = 3

// ErrDescriptionSearchDisabled indicates no description index is configured.
var ErrDescriptionSearchDisabled = errors.New("description search is not configured")

// Search answers similarity queries against the artwork indexes.
type Search struct {
	images       search.ImageEmbedder
	texts        search.TextEmbedder
	imageIndex   search.Searcher
	descriptions search.TextEmbedder
	descIndex    search.Searcher
	topK         int
}

// SearchOption configures a Search.
type SearchOption func(*Search)

// WithTopK sets the default result count.
func WithTopK(k int) SearchOption {
	return func(s *Search) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithDescriptionIndex enables ByDescription using embedder and index.
func WithDescriptionIndex(embedder search.TextEmbedder, index search.Searcher) SearchOption {
	return func(s *Search) {
		s.descriptions = embedder
		s.descIndex = index
	}
}

// NewSearch creates a search service. images and texts embed into the
// same vector space as the documents in imageIndex.
func NewSearch(images search.ImageEmbedder, texts search.TextEmbedder, imageIndex search.Searcher, opts ...SearchOption) (*Search, error) {
	if images == nil || texts == nil {
		return nil, errors.New("NewSearch: nil embedder")
	}
	if imageIndex == nil {
		return nil, errors.New("NewSearch: nil index")
	}
	s := &Search{
		images:     images,
		texts:      texts,
		imageIndex: imageIndex,
		topK:       DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TopK returns the default result count.
func (s *Search) TopK() int { return s.topK }

// DescriptionsEnabled reports whether ByDescription can be used.
func (s *Search) DescriptionsEnabled() bool {
	return s.descriptions != nil && s.descIndex != nil
}

// ByImage returns the k artworks most similar to image.
func (s *Search) ByImage(ctx context.Context, image search.Image, k int) ([]artwork.Match, error) {
	if err := image.Validate(); err != nil {
		return nil, err
	}
	vector, err := s.images.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	return s.nearest(ctx, s.imageIndex, vector, k)
}

// ByText returns the k artworks whose images best match text.
func (s *Search) ByText(ctx context.Context, text string, k int) ([]artwork.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, search.ErrEmptyQuery
	}
	vector, err := s.texts.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return s.nearest(ctx, s.imageIndex, vector, k)
}

// ByDescription returns the k artworks whose catalogue descriptions best
// match text.
func (s *Search) ByDescription(ctx context.Context, text string, k int) ([]artwork.Match, error) {
	if !s.DescriptionsEnabled() {
		return nil, ErrDescriptionSearchDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, search.ErrEmptyQuery
	}
	vector, err := s.descriptions.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed description query: %w", err)
	}
	return s.nearest(ctx, s.descIndex, vector, k)
}

func (s *Search) nearest(ctx context.Context, index search.Searcher, vector []float32, k int) ([]artwork.Match, error) {
	if k <= 0 {
		k = s.topK
	}
	hits, err := index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	matches := make([]artwork.Match, len(hits))
	for i, h := range hits {
		matches[i] = h.Match()
	}
	return matches, nil
}
