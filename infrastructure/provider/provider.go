// Package provider embeds artwork descriptions with an OpenAI-compatible
// embeddings API.
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors.
var (
	// ErrNotConfigured indicates no text embedding endpoint is configured.
	ErrNotConfigured = errors.New("text embedding endpoint not configured")

	// ErrProviderError indicates a general provider error.
	ErrProviderError = errors.New("provider error")
)

// ProviderError wraps provider errors with additional context.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.operation, e.message)
	if e.statusCode > 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.statusCode)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Is matches ErrProviderError.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderError }

// Operation returns the operation that failed.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code if available.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// IsRateLimited reports whether the provider throttled the request.
func (e *ProviderError) IsRateLimited() bool {
	return e.statusCode == http.StatusTooManyRequests
}
