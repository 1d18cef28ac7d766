package service

import (
	"context"
	"errors"

	"github.com/helixml/artsearch/domain/artwork"
	"github.com/helixml/artsearch/domain/search"
)

// ErrEmptyDescription indicates a record with no text to embed.
var ErrEmptyDescription = errors.New("record has no descriptive text")

// RecordEmbedder produces the vector stored for a record.
type RecordEmbedder interface {
	Embed(ctx context.Context, record artwork.Record) ([]float32, error)
}

// ImageRecords embeds a record by its image reference.
type ImageRecords struct {
	embedder search.ImageEmbedder
}

// NewImageRecords creates an ImageRecords embedder.
func NewImageRecords(embedder search.ImageEmbedder) ImageRecords {
	return ImageRecords{embedder: embedder}
}

// Embed fetches the vector for the record's image.
func (e ImageRecords) Embed(ctx context.Context, record artwork.Record) ([]float32, error) {
	return e.embedder.EmbedImage(ctx, search.ImageFromURL(record.ImageURL()))
}

// DescriptionRecords embeds a record by its textual description.
type DescriptionRecords struct {
	embedder search.TextEmbedder
}

// NewDescriptionRecords creates a DescriptionRecords embedder.
func NewDescriptionRecords(embedder search.TextEmbedder) DescriptionRecords {
	return DescriptionRecords{embedder: embedder}
}

// Embed fetches the vector for the record's description.
func (e DescriptionRecords) Embed(ctx context.Context, record artwork.Record) ([]float32, error) {
	text := record.Description()
	if text == "" {
		return nil, ErrEmptyDescription
	}
	return e.embedder.EmbedText(ctx, text)
}
