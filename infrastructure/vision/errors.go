package vision

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Sentinel errors for errors.Is checks.
var (
	ErrUpstream          = errors.New("upstream error")
	ErrThrottled         = errors.New("throttled")
	ErrMalformedResponse = errors.New("malformed response")
)

// UpstreamError is a failed call to the embedding service: a non-success
// status, a transport failure, or throttling that outlasted the retry budget.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements error.
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: upstream error", e.Operation)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *UpstreamError) Unwrap() error { return e.Cause }

// Is matches ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// ThrottledError is a 429 response that named a delay before retrying.
type ThrottledError struct {
	Operation  string
	RetryAfter time.Duration
}

// Error implements error.
func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s: throttled, retry after %s", e.Operation, e.RetryAfter)
}

// Is matches ErrThrottled.
func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }

// MalformedResponseError is a success response whose body is not a vector.
type MalformedResponseError struct {
	Operation string
	Body      string
	Cause     error
}

// Error implements error.
func (e *MalformedResponseError) Error() string {
	msg := fmt.Sprintf("%s: malformed response", e.Operation)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.Body != "" {
		msg += fmt.Sprintf(" (body %q)", e.Body)
	}
	return msg
}

// Unwrap returns the cause.
func (e *MalformedResponseError) Unwrap() error { return e.Cause }

// Is matches ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// truncate shortens s to at most n bytes for error messages without
// splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
