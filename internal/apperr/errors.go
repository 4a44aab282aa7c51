// Package apperr defines the structured error taxonomy shared by the
// dispatcher, the endpoint pool, and the provider client. Every failure a
// caller can observe is one of these types so that handlers and logs can
// branch on errors.As instead of string matching.
package apperr

import (
	"fmt"
	"time"
)

// ConnectionError reports a transport-level failure reaching an endpoint.
type ConnectionError struct {
	// URL is the endpoint base URL the request targeted.
	URL string
	// StatusCode is the HTTP status returned by the endpoint, or 0 when the
	// request never produced a response.
	StatusCode int
	// Err is the underlying transport error, if any.
	Err error
}

func (e *ConnectionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("connection to %s failed with status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("connection to %s failed", e.URL)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// ResponseError reports that an endpoint was reachable but returned a payload
// the client could not use. Raw carries the response body for diagnostics.
type ResponseError struct {
	URL string
	Raw string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unusable response from %s: %s", e.URL, truncate(e.Raw, 200))
}

// TimeoutError reports that a provider call exceeded its configured timeout.
type TimeoutError struct {
	// Timeout is the configured per-call deadline.
	Timeout time.Duration
	// Attempt is the dispatch attempt index (1-based) the timeout occurred on.
	Attempt int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s on attempt %d", e.Timeout, e.Attempt)
}

// RateLimitError is a connection failure with HTTP 429 semantics. RetryAfter
// carries the provider-supplied hint when present; it is surfaced to logging
// but never required for correctness.
type RateLimitError struct {
	ConnectionError
	// RetryAfter is the provider-supplied wait hint, nil when absent.
	RetryAfter *time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != nil {
		return fmt.Sprintf("rate limited by %s, retry after %s", e.URL, *e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.URL)
}

// ConfigError reports malformed or missing endpoint configuration. It is
// fatal: the dispatcher never retries it.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// NewConfigError constructs a ConfigError from a format string.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ExhaustedError is the terminal failure returned after the dispatch retry
// budget is spent. It wraps whichever per-attempt error occurred last.
type ExhaustedError struct {
	// Attempts is the number of attempts made before giving up.
	Attempts int
	// Last is the final underlying failure.
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("translation failed after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the last underlying failure.
func (e *ExhaustedError) Unwrap() error { return e.Last }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
