package artsearch_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch"
	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/domain/service"
	"github.com/helixml/artsearch/internal/config"
)

var errNoVector = errors.New("no vector for input")

// fakeEmbedder maps image URLs and query texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f fakeEmbedder) EmbedImage(_ context.Context, image search.Image) ([]float32, error) {
	if v, ok := f.vectors[image.URL()]; ok {
		return v, nil
	}
	return nil, errNoVector
}

func (f fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return nil, errNoVector
}

// fakeDescriptions puts texts mentioning "Night" on one axis and
// everything else on the other.
type fakeDescriptions struct{}

func (fakeDescriptions) EmbedText(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "Night") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type sliceSource []artwork.Record

func (s sliceSource) Records(_ context.Context, limit int) ([]artwork.Record, error) {
	return artwork.Limit(s, limit), nil
}

func testRecords() sliceSource {
	return sliceSource{
		artwork.NewRecord("1", "red.jpg", artwork.WithTitle("Night Watch"), artwork.WithAttribution("Rembrandt")),
		artwork.NewRecord("2", "blue.jpg", artwork.WithTitle("The Milkmaid"), artwork.WithAttribution("Vermeer")),
		artwork.NewRecord("3", "broken.jpg", artwork.WithTitle("Lost Study")),
	}
}

func newTestClient(t *testing.T, opts ...artsearch.Option) *artsearch.Client {
	t.Helper()
	dir := t.TempDir()
	base := []artsearch.Option{
		artsearch.WithSQLite(filepath.Join(dir, "test.db")),
		artsearch.WithDataDir(dir),
		artsearch.WithEmbedder(fakeEmbedder{vectors: map[string][]float32{
			"red.jpg":  {1, 0, 0},
			"blue.jpg": {0, 1, 0},
			"red":      {0.9, 0.1, 0},
		}}),
		artsearch.WithIndexConfig(config.NewIndexConfig().
			WithName("test-index").
			WithDimension(3).
			WithTextDimension(2)),
	}
	client, err := artsearch.New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_IngestAndSearch(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	var failed []string
	report, err := client.Ingest(ctx, testRecords(),
		artsearch.WithRunOptions(search.WithRecordFailure(func(r artwork.Record, _ error) {
			failed = append(failed, r.ID())
		})),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, []string{"3"}, failed)

	matches, err := client.Search.ByText(ctx, "red", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].ObjectID)
	assert.Equal(t, "Night Watch", matches[0].Title)

	matches, err = client.Search.ByImage(ctx, search.ImageFromURL("blue.jpg"), 0)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "2", matches[0].ObjectID)
	assert.InDelta(t, 1.0, matches[0].SearchScore, 1e-6)
}

func TestClient_IngestResetReplacesIndex(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.Ingest(ctx, testRecords())
	require.NoError(t, err)

	only := sliceSource{artwork.NewRecord("9", "blue.jpg")}

	_, err = client.Ingest(ctx, only, artsearch.WithReset(false))
	require.NoError(t, err)
	matches, err := client.Search.ByImage(ctx, search.ImageFromURL("red.jpg"), 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	_, err = client.Ingest(ctx, only)
	require.NoError(t, err)
	matches, err = client.Search.ByImage(ctx, search.ImageFromURL("red.jpg"), 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "9", matches[0].ObjectID)
}

func TestClient_IngestRecordLimit(t *testing.T) {
	client := newTestClient(t)

	report, err := client.Ingest(context.Background(), testRecords(), artsearch.WithRecordLimit(1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Records)
	assert.Equal(t, 1, report.Written)
}

func TestClient_DescriptionTarget(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, artsearch.WithDescriptionEmbedder(fakeDescriptions{}))
	require.NotNil(t, client.DescriptionIndex())

	report, err := client.Ingest(ctx, testRecords(), artsearch.WithTarget(artsearch.TargetDescription))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Written)

	matches, err := client.Search.ByDescription(ctx, "Night", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "1", matches[0].ObjectID)
}

func TestClient_DescriptionTargetNotConfigured(t *testing.T) {
	client := newTestClient(t)
	assert.Nil(t, client.DescriptionIndex())

	_, err := client.Ingest(context.Background(), testRecords(), artsearch.WithTarget(artsearch.TargetDescription))
	assert.ErrorIs(t, err, service.ErrDescriptionSearchDisabled)
}

func TestNew_RequiresVisionEndpoint(t *testing.T) {
	_, err := artsearch.New(artsearch.WithSQLite(filepath.Join(t.TempDir(), "test.db")))
	assert.ErrorIs(t, err, config.ErrMissingVisionEndpoint)
}

func TestNew_InvalidIndexName(t *testing.T) {
	_, err := artsearch.New(
		artsearch.WithEmbedder(fakeEmbedder{}),
		artsearch.WithIndexConfig(config.NewIndexConfig().WithName("1 bad name")),
	)
	assert.ErrorIs(t, err, search.ErrInvalidSchema)
}

func TestClient_Close(t *testing.T) {
	client := newTestClient(t)

	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Ingest(context.Background(), testRecords())
	assert.ErrorIs(t, err, artsearch.ErrClientClosed)
	assert.ErrorIs(t, client.Ping(context.Background()), artsearch.ErrClientClosed)
}

func TestParseTarget(t *testing.T) {
	target, err := artsearch.ParseTarget("Description")
	require.NoError(t, err)
	assert.Equal(t, artsearch.TargetDescription, target)

	target, err = artsearch.ParseTarget("")
	require.NoError(t, err)
	assert.Equal(t, artsearch.TargetImage, target)

	_, err = artsearch.ParseTarget("audio")
	assert.Error(t, err)
}
