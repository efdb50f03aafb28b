package dblp

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the DBLP client.
var (
	// ErrNotFound indicates the record was not found.
	ErrNotFound = errors.New("record not found in DBLP")

	// ErrRateLimited indicates the server answered 429 Too Many Requests.
	ErrRateLimited = errors.New("DBLP rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with DBLP")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from DBLP")
)

// APIError represents a non-success HTTP status from DBLP.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
	RetryAfter time.Duration // Server-requested wait, set for 429 responses
}

func (e *APIError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("DBLP API error (status %d): %s (url: %s)", e.StatusCode, e.Message, e.URL)
	}
	return fmt.Sprintf("DBLP API error (status %d): %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match the sentinel for well-known statuses.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RetryAfter returns the wait requested by a rate-limited response.
func RetryAfter(err error) (time.Duration, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return apiErr.RetryAfter, true
	}
	return 0, false
}
