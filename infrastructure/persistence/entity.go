package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/internal/database"
)

// jsonColumn decodes a JSON column that may arrive as text or bytes.
func jsonColumn(value any, dst any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T as JSON", value)
	}
}

// Float32Slice stores a vector as a JSON array.
type Float32Slice []float32

// Scan implements sql.Scanner.
func (f *Float32Slice) Scan(value any) error {
	*f = nil
	return jsonColumn(value, f)
}

// Value implements driver.Valuer.
func (f Float32Slice) Value() (driver.Value, error) {
	if f == nil {
		return nil, nil
	}
	data, err := json.Marshal([]float32(f))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// StringMap stores metadata as a JSON object.
type StringMap map[string]string

// Scan implements sql.Scanner.
func (m *StringMap) Scan(value any) error {
	*m = nil
	return jsonColumn(value, m)
}

// Value implements driver.Valuer.
func (m StringMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// documentColumns are the non-vector columns shared by every index table.
// Table routing is done with .Table(name) at the call site because GORM
// caches schemas by type.
type documentColumns struct {
	ObjectID            string    `gorm:"column:object_id;primaryKey"`
	AccessionNum        string    `gorm:"column:accession_num"`
	Title               string    `gorm:"column:title"`
	DisplayDate         string    `gorm:"column:display_date"`
	Medium              string    `gorm:"column:medium"`
	Dimensions          string    `gorm:"column:dimensions"`
	Attribution         string    `gorm:"column:attribution"`
	LocationDescription string    `gorm:"column:location_description"`
	ImageURL            string    `gorm:"column:image_url"`
	Metadata            StringMap `gorm:"column:metadata"`
	UpdatedAt           time.Time `gorm:"column:updated_at"`
}

func newDocumentColumns(d artwork.Document, now time.Time) documentColumns {
	return documentColumns{
		ObjectID:            d.ObjectID,
		AccessionNum:        d.AccessionNum,
		Title:               d.Title,
		DisplayDate:         d.DisplayDate,
		Medium:              d.Medium,
		Dimensions:          d.Dimensions,
		Attribution:         d.Attribution,
		LocationDescription: d.LocationDescription,
		ImageURL:            d.ImageURL,
		Metadata:            StringMap(d.Metadata),
		UpdatedAt:           now,
	}
}

func (c documentColumns) document(vector []float32) artwork.Document {
	var metadata map[string]string
	if len(c.Metadata) > 0 {
		metadata = map[string]string(c.Metadata)
	}
	return artwork.Document{
		ObjectID:            c.ObjectID,
		AccessionNum:        c.AccessionNum,
		Title:               c.Title,
		DisplayDate:         c.DisplayDate,
		Medium:              c.Medium,
		Dimensions:          c.Dimensions,
		Attribution:         c.Attribution,
		LocationDescription: c.LocationDescription,
		ImageURL:            c.ImageURL,
		Metadata:            metadata,
		Vector:              vector,
	}
}

// sqliteDocument is an index row with a JSON vector.
type sqliteDocument struct {
	documentColumns
	Vector Float32Slice `gorm:"column:vector"`
}

// pgDocument is an index row with a pgvector vector.
type pgDocument struct {
	documentColumns
	Vector database.PgVector `gorm:"column:vector"`
}

// pgHit is a pgDocument with its cosine distance.
type pgHit struct {
	pgDocument
	Distance float64 `gorm:"column:distance"`
}

// TableName returns the table that backs an index. Hyphens are not valid in
// unquoted identifiers, so they become underscores.
func TableName(schema search.Schema) string {
	return "artworks_" + strings.ToLower(strings.ReplaceAll(schema.Name(), "-", "_"))
}
