package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

// --- fakes ---

type fakeVision struct {
	images []search.Image
	texts  []string
	err    error
}

func (f *fakeVision) EmbedImage(_ context.Context, img search.Image) ([]float32, error) {
	f.images = append(f.images, img)
	return []float32{1, 0}, f.err
}

func (f *fakeVision) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return []float32{0, 1}, f.err
}

type fakeSearcher struct {
	lastK      int
	lastVector []float32
	hits       []search.Hit
	err        error
}

func (f *fakeSearcher) Search(_ context.Context, vector []float32, k int) ([]search.Hit, error) {
	f.lastK = k
	f.lastVector = vector
	return f.hits, f.err
}

func newTestSearch(t *testing.T, opts ...SearchOption) (*Search, *fakeVision, *fakeSearcher) {
	t.Helper()
	vision := &fakeVision{}
	index := &fakeSearcher{hits: []search.Hit{
		search.NewHit(artwork.Document{ObjectID: "1", Title: "Irises"}, 0.9),
		search.NewHit(artwork.Document{ObjectID: "2", Title: "Poppies"}, 0.7),
	}}
	s, err := NewSearch(vision, vision, index, opts...)
	require.NoError(t, err)
	return s, vision, index
}

// --- tests ---

func TestNewSearch_NilDependencies(t *testing.T) {
	_, err := NewSearch(nil, &fakeVision{}, &fakeSearcher{})
	assert.Error(t, err)
	_, err = NewSearch(&fakeVision{}, &fakeVision{}, nil)
	assert.Error(t, err)
}

func TestSearch_ByImage(t *testing.T) {
	s, vision, index := newTestSearch(t)

	matches, err := s.ByImage(context.Background(), search.ImageFromURL("https://img.example/q.jpg"), 0)
	require.NoError(t, err)

	require.Len(t, matches, 2)
	assert.Equal(t, "Irises", matches[0].Title)
	assert.Equal(t, 0.9, matches[0].SearchScore)
	assert.Equal(t, DefaultTopK, index.lastK)
	assert.Equal(t, []float32{1, 0}, index.lastVector)
	assert.Equal(t, "https://img.example/q.jpg", vision.images[0].URL())
}

func TestSearch_ByImage_Empty(t *testing.T) {
	s, _, _ := newTestSearch(t)

	_, err := s.ByImage(context.Background(), search.ImageFromBytes(nil, "image/png"), 3)
	assert.ErrorIs(t, err, search.ErrEmptyImage)
}

func TestSearch_ByText(t *testing.T) {
	s, vision, index := newTestSearch(t, WithTopK(5))

	_, err := s.ByText(context.Background(), "  sunflowers ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"sunflowers"}, vision.texts)
	assert.Equal(t, 5, index.lastK)

	_, err = s.ByText(context.Background(), "sunflowers", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, index.lastK)

	_, err = s.ByText(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, search.ErrEmptyQuery)
}

func TestSearch_EmbedError(t *testing.T) {
	s, vision, _ := newTestSearch(t)
	vision.err = errors.New("upstream error")

	_, err := s.ByText(context.Background(), "boats", 3)
	assert.ErrorContains(t, err, "embed text")
}

func TestSearch_ByDescription(t *testing.T) {
	s, _, _ := newTestSearch(t)
	_, err := s.ByDescription(context.Background(), "impressionist garden", 3)
	assert.ErrorIs(t, err, ErrDescriptionSearchDisabled)
	assert.False(t, s.DescriptionsEnabled())

	text := &fakeVision{}
	descIndex := &fakeSearcher{hits: []search.Hit{search.NewHit(artwork.Document{ObjectID: "3"}, 0.4)}}
	s, _, imageIndex := newTestSearch(t, WithDescriptionIndex(text, descIndex))

	matches, err := s.ByDescription(context.Background(), "impressionist garden", 2)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "3", matches[0].ObjectID)
	assert.Equal(t, []string{"impressionist garden"}, text.texts)
	assert.Equal(t, 2, descIndex.lastK)
	assert.Zero(t, imageIndex.lastK, "image index must not be queried")
}
