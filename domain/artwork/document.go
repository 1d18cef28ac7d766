package artwork

import (
	"errors"
	"fmt"
	"maps"
)

// ErrEmptyVector indicates an embedding with no components.
var ErrEmptyVector = errors.New("empty vector")

// EmbeddedRecord pairs a Record with its embedding vector.
type EmbeddedRecord struct {
	record Record
	vector []float32
}

// NewEmbeddedRecord creates an EmbeddedRecord. The vector is copied.
func NewEmbeddedRecord(r Record, vector []float32) (EmbeddedRecord, error) {
	if len(vector) == 0 {
		return EmbeddedRecord{}, fmt.Errorf("record %s: %w", r.ID(), ErrEmptyVector)
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	return EmbeddedRecord{record: r, vector: v}, nil
}

// Record returns the source record.
func (e EmbeddedRecord) Record() Record { return e.record }

// Vector returns a copy of the embedding.
func (e EmbeddedRecord) Vector() []float32 {
	v := make([]float32, len(e.vector))
	copy(v, e.vector)
	return v
}

// Dimension returns the vector length.
func (e EmbeddedRecord) Dimension() int { return len(e.vector) }

// Document converts the embedded record into its index shape.
func (e EmbeddedRecord) Document() Document {
	r := e.record
	return Document{
		ObjectID:            r.id,
		AccessionNum:        r.accessionNum,
		Title:               r.title,
		DisplayDate:         r.displayDate,
		Medium:              r.medium,
		Dimensions:          r.dimensions,
		Attribution:         r.attribution,
		LocationDescription: r.location,
		ImageURL:            r.imageURL,
		Metadata:            r.Metadata(),
		Vector:              e.Vector(),
	}
}

// Document is one entry in a vector index, keyed by ObjectID.
type Document struct {
	ObjectID            string            `json:"objectId"`
	AccessionNum        string            `json:"accessionNum,omitempty"`
	Title               string            `json:"title,omitempty"`
	DisplayDate         string            `json:"displayDate,omitempty"`
	Medium              string            `json:"medium,omitempty"`
	Dimensions          string            `json:"dimensions,omitempty"`
	Attribution         string            `json:"attribution,omitempty"`
	LocationDescription string            `json:"locationDescription,omitempty"`
	ImageURL            string            `json:"imageUrl"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Vector              []float32         `json:"vector"`
}

// Record rebuilds the Record a document was written from.
func (d Document) Record() Record {
	r := Record{
		id:           d.ObjectID,
		accessionNum: d.AccessionNum,
		title:        d.Title,
		displayDate:  d.DisplayDate,
		medium:       d.Medium,
		dimensions:   d.Dimensions,
		attribution:  d.Attribution,
		location:     d.LocationDescription,
		imageURL:     d.ImageURL,
	}
	if len(d.Metadata) > 0 {
		r.metadata = maps.Clone(d.Metadata)
	}
	return r
}

// Match converts the document into a search result with the given score.
func (d Document) Match(score float64) Match {
	return Match{
		ObjectID:            d.ObjectID,
		AccessionNum:        d.AccessionNum,
		Title:               d.Title,
		Attribution:         d.Attribution,
		DisplayDate:         d.DisplayDate,
		LocationDescription: d.LocationDescription,
		Medium:              d.Medium,
		Dimensions:          d.Dimensions,
		ImageURL:            d.ImageURL,
		SearchScore:         score,
	}
}

// Match is an artwork returned by a search, in display form.
type Match struct {
	ObjectID            string  `json:"objectId"`
	AccessionNum        string  `json:"accessionNum"`
	Title               string  `json:"title"`
	Attribution         string  `json:"attribution"`
	DisplayDate         string  `json:"displayDate"`
	LocationDescription string  `json:"locationDescription"`
	Medium              string  `json:"medium"`
	Dimensions          string  `json:"dimensions"`
	ImageURL            string  `json:"imageUrl"`
	SearchScore         float64 `json:"searchScore"`
}
