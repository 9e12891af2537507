// Package api holds the HTTP clients for the engine's external
// collaborators: the streaming chat endpoint, the session persistence
// endpoint, and the title/summarization endpoints.
package api

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a persisted resource does not exist. Callers
// on the read path resolve it to an empty result rather than a failure.
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx response from a JSON endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// Retryable reports whether the status indicates a transient failure.
func (e *HTTPError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// StreamError is a failure during token streaming, preserving any partial
// content received before the error.
type StreamError struct {
	Partial string
	Err     error
}

func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether an error is worth another attempt: network
// failures and 5xx/429 responses are, 4xx responses and not-found are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retryable()
	}
	return true
}
