package search

import (
	"errors"
	"strings"
)

// ErrEmptyImage indicates an image with neither a URL nor bytes.
var ErrEmptyImage = errors.New("empty image")

// DefaultImageContentType is used for raw image bytes of unknown type.
const DefaultImageContentType = "application/octet-stream"

// Image is an image to embed, given either by a fetchable URL or by its bytes.
type Image struct {
	url         string
	data        []byte
	contentType string
}

// ImageFromURL references an image by URL.
func ImageFromURL(url string) Image {
	return Image{url: strings.TrimSpace(url)}
}

// ImageFromBytes wraps raw image bytes. An empty content type becomes
// application/octet-stream.
func ImageFromBytes(data []byte, contentType string) Image {
	if contentType == "" {
		contentType = DefaultImageContentType
	}
	return Image{data: data, contentType: contentType}
}

// URL returns the image URL, empty for byte images.
func (i Image) URL() string { return i.url }

// Bytes returns the image bytes, nil for URL images.
func (i Image) Bytes() []byte { return i.data }

// ContentType returns the content type of byte images.
func (i Image) ContentType() string { return i.contentType }

// IsURL reports whether the image is referenced by URL.
func (i Image) IsURL() bool { return i.url != "" }

// Validate reports whether the image carries any content.
func (i Image) Validate() error {
	if i.url == "" && len(i.data) == 0 {
		return ErrEmptyImage
	}
	return nil
}
