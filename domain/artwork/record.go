// Package artwork provides the collection record, its embedded form and the
// document and display shapes it takes in the search index.
package artwork

import (
	"errors"
	"maps"
	"slices"
	"strings"
)

// Record validation errors.
var (
	ErrMissingID    = errors.New("record has no id")
	ErrMissingImage = errors.New("record has no image reference")
)

// Record is one artwork in a collection. Records are read from a source and
// never change once built.
type Record struct {
	id           string
	accessionNum string
	title        string
	displayDate  string
	medium       string
	dimensions   string
	attribution  string
	location     string
	imageURL     string
	metadata     map[string]string
}

// RecordOption sets an optional Record field.
type RecordOption func(*Record)

// WithAccessionNum sets the accession number.
func WithAccessionNum(v string) RecordOption {
	return func(r *Record) { r.accessionNum = v }
}

// WithTitle sets the title.
func WithTitle(v string) RecordOption {
	return func(r *Record) { r.title = v }
}

// WithDisplayDate sets the human-readable creation date.
func WithDisplayDate(v string) RecordOption {
	return func(r *Record) { r.displayDate = v }
}

// WithMedium sets the medium.
func WithMedium(v string) RecordOption {
	return func(r *Record) { r.medium = v }
}

// WithDimensions sets the dimensions text.
func WithDimensions(v string) RecordOption {
	return func(r *Record) { r.dimensions = v }
}

// WithAttribution sets the artist attribution.
func WithAttribution(v string) RecordOption {
	return func(r *Record) { r.attribution = v }
}

// WithLocation sets the location description.
func WithLocation(v string) RecordOption {
	return func(r *Record) { r.location = v }
}

// WithMetadata adds one metadata entry. Empty values are ignored.
func WithMetadata(key, value string) RecordOption {
	return func(r *Record) {
		if value == "" {
			return
		}
		if r.metadata == nil {
			r.metadata = make(map[string]string)
		}
		r.metadata[key] = value
	}
}

// NewRecord creates a Record.
func NewRecord(id, imageURL string, opts ...RecordOption) Record {
	r := Record{
		id:       strings.TrimSpace(id),
		imageURL: strings.TrimSpace(imageURL),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// ID returns the stable object identifier.
func (r Record) ID() string { return r.id }

// AccessionNum returns the accession number.
func (r Record) AccessionNum() string { return r.accessionNum }

// Title returns the title.
func (r Record) Title() string { return r.title }

// DisplayDate returns the human-readable creation date.
func (r Record) DisplayDate() string { return r.displayDate }

// Medium returns the medium.
func (r Record) Medium() string { return r.medium }

// Dimensions returns the dimensions text.
func (r Record) Dimensions() string { return r.dimensions }

// Attribution returns the artist attribution.
func (r Record) Attribution() string { return r.attribution }

// Location returns the location description.
func (r Record) Location() string { return r.location }

// ImageURL returns the image reference used for embedding.
func (r Record) ImageURL() string { return r.imageURL }

// Metadata returns a copy of the extra source fields.
func (r Record) Metadata() map[string]string {
	if len(r.metadata) == 0 {
		return nil
	}
	return maps.Clone(r.metadata)
}

// Validate reports whether the record can be embedded.
func (r Record) Validate() error {
	if r.id == "" {
		return ErrMissingID
	}
	if r.imageURL == "" {
		return ErrMissingImage
	}
	return nil
}

// Description renders the textual fields as one line for text embedding.
// Metadata is appended in key order so the output is stable.
func (r Record) Description() string {
	parts := make([]string, 0, 6+len(r.metadata))
	for _, v := range []string{r.title, r.attribution, r.displayDate, r.medium, r.location} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	for _, k := range slices.Sorted(maps.Keys(r.metadata)) {
		parts = append(parts, k+": "+r.metadata[k])
	}
	return strings.Join(parts, ". ")
}

// Limit returns at most n records. n <= 0 means no limit.
func Limit(records []Record, n int) []Record {
	if n <= 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
