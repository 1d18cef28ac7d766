package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

func newTestIndex(t *testing.T, name string, dimension int) *SQLiteIndex {
	t.Helper()
	schema, err := search.NewSchema(name, dimension)
	require.NoError(t, err)
	index := NewSQLiteIndex(newTestDB(t), schema, nil)
	require.NoError(t, index.Reset(context.Background()))
	return index
}

func doc(id, title string, vector ...float32) artwork.Document {
	return artwork.Document{
		ObjectID:            id,
		Title:               title,
		Attribution:         "Winslow Homer",
		DisplayDate:         "1885",
		LocationDescription: "West Building, Gallery 67",
		ImageURL:            "https://images.example.org/" + id + ".jpg",
		Metadata:            map[string]string{"medium": "oil on canvas"},
		Vector:              vector,
	}
}

func TestTableName(t *testing.T) {
	schema, err := search.NewSchema("gallerydata-v-text", 3)
	require.NoError(t, err)
	assert.Equal(t, "artworks_gallerydata_v_text", TableName(schema))
}

func TestSQLiteIndex_UpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 3)

	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{
		doc("1", "The Fog Warning", 1, 0, 0),
		doc("2", "Breezing Up", 0, 1, 0),
		doc("3", "Right and Left", 0.9, 0.1, 0),
	}))

	hits, err := index.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "1", hits[0].Document().ObjectID)
	assert.InDelta(t, 1.0, hits[0].Score(), 1e-6)
	assert.Equal(t, "3", hits[1].Document().ObjectID)
	assert.Greater(t, hits[0].Score(), hits[1].Score())

	got := hits[0].Document()
	assert.Equal(t, "The Fog Warning", got.Title)
	assert.Equal(t, "Winslow Homer", got.Attribution)
	assert.Equal(t, "1885", got.DisplayDate)
	assert.Equal(t, "West Building, Gallery 67", got.LocationDescription)
	assert.Equal(t, "https://images.example.org/1.jpg", got.ImageURL)
	assert.Equal(t, map[string]string{"medium": "oil on canvas"}, got.Metadata)
	assert.Equal(t, []float32{1, 0, 0}, got.Vector)
}

func TestSQLiteIndex_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 2)

	batch := []artwork.Document{doc("1", "First", 1, 0), doc("2", "Second", 0, 1)}
	require.NoError(t, index.BulkUpsert(ctx, batch))
	require.NoError(t, index.BulkUpsert(ctx, batch))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteIndex_UpsertReplaces(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 2)

	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{doc("1", "Old title", 1, 0)}))
	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{doc("1", "New title", 0, 1)}))

	hits, err := index.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "New title", hits[0].Document().Title)
	assert.InDelta(t, 1.0, hits[0].Score(), 1e-6)
}

func TestSQLiteIndex_RejectsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 1)

	docs := make([]artwork.Document, search.MaxBulkSize+1)
	for i := range docs {
		docs[i] = doc(fmt.Sprint(i), "t", 1)
	}

	err := index.BulkUpsert(ctx, docs)
	assert.ErrorIs(t, err, search.ErrBatchTooLarge)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteIndex_AcceptsMaxBatch(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 2)

	docs := make([]artwork.Document, search.MaxBulkSize)
	for i := range docs {
		docs[i] = doc(fmt.Sprint(i), "t", float32(i), 1)
	}
	require.NoError(t, index.BulkUpsert(ctx, docs))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(search.MaxBulkSize), count)
}

func TestSQLiteIndex_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 3)

	err := index.BulkUpsert(ctx, []artwork.Document{doc("1", "ok", 1, 2, 3), doc("2", "short", 1, 2)})
	assert.ErrorIs(t, err, search.ErrDimensionMismatch)

	_, err = index.Search(ctx, []float32{1}, 3)
	assert.ErrorIs(t, err, search.ErrDimensionMismatch)
}

func TestSQLiteIndex_ResetClears(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 1)

	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{doc("1", "t", 1)}))
	require.NoError(t, index.Reset(ctx))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteIndex_EnsureKeepsData(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 1)

	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{doc("1", "t", 1)}))
	require.NoError(t, index.Ensure(ctx))

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteIndex_SearchEmptyAndZeroK(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 2)

	hits, err := index.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{doc("1", "t", 1, 0)}))
	hits, err = index.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSQLiteIndex_SeparateSchemasAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	images, err := search.NewSchema("gallery", 2)
	require.NoError(t, err)
	texts, err := search.NewSchema("gallery-text", 3)
	require.NoError(t, err)

	imageIndex := NewIndex(db, images, nil)
	textIndex := NewIndex(db, texts, nil)
	require.NoError(t, imageIndex.Reset(ctx))
	require.NoError(t, textIndex.Reset(ctx))

	require.NoError(t, imageIndex.BulkUpsert(ctx, []artwork.Document{doc("1", "image", 1, 0)}))
	require.NoError(t, textIndex.BulkUpsert(ctx, []artwork.Document{doc("1", "text", 0, 0, 1)}))

	hits, err := textIndex.Search(ctx, []float32{0, 0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "text", hits[0].Document().Title)
}

// The index document written for a record, read back through a search hit,
// keeps the record's display fields.
func TestSQLiteIndex_RecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	index := newTestIndex(t, "gallery", 2)

	record := artwork.NewRecord("46471", "https://images.example.org/46471.jpg",
		artwork.WithTitle("Wivenhoe Park, Essex"),
		artwork.WithAttribution("John Constable"),
		artwork.WithDisplayDate("1816"),
		artwork.WithLocation("West Building, Gallery 57"),
	)
	embedded, err := artwork.NewEmbeddedRecord(record, []float32{0.6, 0.8})
	require.NoError(t, err)
	require.NoError(t, index.BulkUpsert(ctx, []artwork.Document{embedded.Document()}))

	hits, err := index.Search(ctx, []float32{0.6, 0.8}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	match := hits[0].Match()
	assert.Equal(t, "46471", match.ObjectID)
	assert.Equal(t, "Wivenhoe Park, Essex", match.Title)
	assert.Equal(t, "John Constable", match.Attribution)
	assert.Equal(t, "1816", match.DisplayDate)
	assert.Equal(t, "West Building, Gallery 57", match.LocationDescription)
	assert.Equal(t, "https://images.example.org/46471.jpg", match.ImageURL)
	assert.InDelta(t, 1.0, match.SearchScore, 1e-6)
}
