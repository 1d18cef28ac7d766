// Package dto holds the request and response bodies of the v1 API.
package dto

import "github.com/helixml/artsearch/domain/artwork"

// ImageURLRequest asks for artworks similar to the image at URL.
type ImageURLRequest struct {
	URL string `json:"url"`
	Top int    `json:"top,omitempty"`
}

// TextRequest asks for artworks matching Text.
type TextRequest struct {
	Text string `json:"text"`
	Top  int    `json:"top,omitempty"`
}

// SearchResponse lists matches, most similar first.
type SearchResponse struct {
	SimilarImages []artwork.Match `json:"similarImages"`
}

// NewSearchResponse wraps matches. A nil slice is encoded as an empty list.
func NewSearchResponse(matches []artwork.Match) SearchResponse {
	if matches == nil {
		matches = []artwork.Match{}
	}
	return SearchResponse{SimilarImages: matches}
}

// HealthResponse reports a probe result.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
