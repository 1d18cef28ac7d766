package search

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/helixml/artsearch/domain/artwork"
)

// MaxBulkSize is the largest number of documents one BulkUpsert accepts.
const MaxBulkSize = 1000

// Index errors.
var (
	ErrBatchTooLarge     = errors.New("batch exceeds maximum bulk size")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrInvalidSchema     = errors.New("invalid index schema")
	ErrEmptyQuery        = errors.New("empty query")
)

var indexNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,62}$`)

// Schema names an index and fixes its vector dimension.
type Schema struct {
	name      string
	dimension int
}

// NewSchema creates a Schema, validating the name and dimension.
func NewSchema(name string, dimension int) (Schema, error) {
	if !indexNamePattern.MatchString(name) {
		return Schema{}, fmt.Errorf("%w: name %q", ErrInvalidSchema, name)
	}
	if dimension <= 0 {
		return Schema{}, fmt.Errorf("%w: dimension %d", ErrInvalidSchema, dimension)
	}
	return Schema{name: name, dimension: dimension}, nil
}

// Name returns the index name.
func (s Schema) Name() string { return s.name }

// Dimension returns the vector dimension.
func (s Schema) Dimension() int { return s.dimension }

// Manager creates the index described by its schema.
type Manager interface {
	Schema() Schema
	// Reset drops the index if it exists and creates it empty.
	Reset(ctx context.Context) error
	// Ensure creates the index only when it does not exist.
	Ensure(ctx context.Context) error
}

// Writer stores documents. Writing a document whose ObjectID already
// exists replaces it.
type Writer interface {
	BulkUpsert(ctx context.Context, docs []artwork.Document) error
}

// Searcher finds the documents nearest to a query vector.
type Searcher interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// Index is a vector index opened for one schema.
type Index interface {
	Manager
	Writer
	Searcher
}

// CheckBulk validates a bulk write against the index dimension.
func CheckBulk(docs []artwork.Document, dimension int) error {
	if len(docs) > MaxBulkSize {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(docs), MaxBulkSize)
	}
	for _, d := range docs {
		if len(d.Vector) != dimension {
			return fmt.Errorf("%w: document %s has %d, index expects %d",
				ErrDimensionMismatch, d.ObjectID, len(d.Vector), dimension)
		}
	}
	return nil
}

// Hit is a search result: a document and its similarity score,
// higher is more similar.
type Hit struct {
	document artwork.Document
	score    float64
}

// NewHit creates a Hit.
func NewHit(doc artwork.Document, score float64) Hit {
	return Hit{document: doc, score: score}
}

// Document returns the matched document.
func (h Hit) Document() artwork.Document { return h.document }

// Score returns the similarity score.
func (h Hit) Score() float64 { return h.score }

// Match returns the hit in display form.
func (h Hit) Match() artwork.Match { return h.document.Match(h.score) }
