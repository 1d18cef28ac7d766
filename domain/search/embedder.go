package search

import "context"

// ImageEmbedder turns an image into a vector.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, image Image) ([]float32, error)
}

// TextEmbedder turns text into a vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
