package artwork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return NewRecord(" 1001 ", "https://images.example/1001.jpg",
		WithAccessionNum("1942.9.97"),
		WithTitle("The Japanese Footbridge"),
		WithDisplayDate("1899"),
		WithMedium("oil on canvas"),
		WithDimensions("81.3 x 101.6 cm"),
		WithAttribution("Claude Monet"),
		WithLocation("West Building, Gallery 85"),
		WithMetadata("styles", "Impressionism"),
		WithMetadata("themes", ""),
	)
}

func TestNewRecord(t *testing.T) {
	r := sampleRecord()

	assert.Equal(t, "1001", r.ID())
	assert.Equal(t, "The Japanese Footbridge", r.Title())
	assert.Equal(t, map[string]string{"styles": "Impressionism"}, r.Metadata())
	assert.NoError(t, r.Validate())
}

func TestRecord_Validate(t *testing.T) {
	assert.ErrorIs(t, NewRecord("", "https://x").Validate(), ErrMissingID)
	assert.ErrorIs(t, NewRecord("1", "  ").Validate(), ErrMissingImage)
}

func TestRecord_MetadataIsCopied(t *testing.T) {
	r := sampleRecord()
	m := r.Metadata()
	m["styles"] = "changed"

	assert.Equal(t, "Impressionism", r.Metadata()["styles"])
}

func TestRecord_Description(t *testing.T) {
	r := sampleRecord()

	assert.Equal(t,
		"The Japanese Footbridge. Claude Monet. 1899. oil on canvas. West Building, Gallery 85. styles: Impressionism",
		r.Description())
	assert.Equal(t, "", NewRecord("1", "u").Description())
}

func TestLimit(t *testing.T) {
	records := []Record{NewRecord("1", "a"), NewRecord("2", "b"), NewRecord("3", "c")}

	assert.Len(t, Limit(records, -1), 3)
	assert.Len(t, Limit(records, 0), 3)
	assert.Len(t, Limit(records, 2), 2)
	assert.Len(t, Limit(records, 10), 3)
}

func TestNewEmbeddedRecord(t *testing.T) {
	_, err := NewEmbeddedRecord(sampleRecord(), nil)
	assert.ErrorIs(t, err, ErrEmptyVector)

	v := []float32{0.1, 0.2}
	e, err := NewEmbeddedRecord(sampleRecord(), v)
	require.NoError(t, err)
	v[0] = 9

	assert.Equal(t, []float32{0.1, 0.2}, e.Vector())
	assert.Equal(t, 2, e.Dimension())
}

func TestRoundTrip_RecordDocumentMatch(t *testing.T) {
	r := sampleRecord()
	e, err := NewEmbeddedRecord(r, []float32{1, 0, 0})
	require.NoError(t, err)

	doc := e.Document()
	assert.Equal(t, r, doc.Record())

	m := doc.Match(0.87)
	assert.Equal(t, r.ID(), m.ObjectID)
	assert.Equal(t, r.Title(), m.Title)
	assert.Equal(t, r.Attribution(), m.Attribution)
	assert.Equal(t, r.DisplayDate(), m.DisplayDate)
	assert.Equal(t, r.Location(), m.LocationDescription)
	assert.Equal(t, r.ImageURL(), m.ImageURL)
	assert.Equal(t, r.AccessionNum(), m.AccessionNum)
	assert.Equal(t, r.Medium(), m.Medium)
	assert.Equal(t, r.Dimensions(), m.Dimensions)
	assert.InDelta(t, 0.87, m.SearchScore, 1e-9)
}
