package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/helixml/artsearch/domain/search"
	"github.com/helixml/artsearch/domain/service"
	"github.com/helixml/artsearch/infrastructure/provider"
	"github.com/helixml/artsearch/infrastructure/vision"
)

// APIError is an error with an HTTP status code.
type APIError struct {
	code    int
	message string
	cause   error
}

// NewAPIError creates a new APIError.
func NewAPIError(code int, message string, cause error) *APIError {
	return &APIError{
		code:    code,
		message: message,
		cause:   cause,
	}
}

// BadRequest creates a 400 APIError.
func BadRequest(message string, cause error) *APIError {
	return NewAPIError(http.StatusBadRequest, message, cause)
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("api error %d: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("api error %d: %s", e.code, e.message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.cause
}

// Code returns the HTTP status code.
func (e *APIError) Code() int {
	return e.code
}

// Message returns the client-facing message.
func (e *APIError) Message() string {
	return e.message
}

// ErrorObject is one entry of an error response.
type ErrorObject struct {
	Status string `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	ID     string `json:"id,omitempty"`
}

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Errors []ErrorObject `json:"errors"`
}

// classify maps an error to a status code, a title and the detail shown to
// the client.
func classify(err error) (int, string, string) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code(), http.StatusText(apiErr.Code()), apiErr.Message()
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrEmptyImage):
		return http.StatusBadRequest, "Validation Error", err.Error()
	case errors.Is(err, service.ErrDescriptionSearchDisabled):
		return http.StatusServiceUnavailable, "Not Available", err.Error()
	case errors.Is(err, vision.ErrUpstream),
		errors.Is(err, vision.ErrMalformedResponse),
		errors.Is(err, provider.ErrProviderError):
		return http.StatusBadGateway, "Upstream Error", "the embedding service could not process the request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout", "the request timed out"
	}
	return http.StatusInternalServerError, "Internal Server Error", "internal error"
}

// WriteError writes an error response. Server-side failures are logged at
// ERROR, client errors at WARN.
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status, title, detail := classify(err)
	correlationID := GetCorrelationID(r)

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request error",
			"status", status,
			"error", err.Error(),
			"path", r.URL.Path,
		)
	}

	resp := ErrorResponse{
		Errors: []ErrorObject{
			{
				Status: strconv.Itoa(status),
				Title:  title,
				Detail: detail,
				ID:     correlationID,
			},
		},
	}
	WriteJSON(w, status, resp)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
