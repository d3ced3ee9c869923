package data

import (
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// CodeMissingKey marks a source that was configured without credentials.
const CodeMissingKey = "MISSING_API_KEY"

// SourceError represents a failed request to an upstream market or news API.
type SourceError struct {
	Source     string
	StatusCode int
	Code       string
	Message    string
	RetryAfter string // For rate limit errors
}

func (e *SourceError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Source, e.Message, e.StatusCode)
}

// Retryable reports whether the same request may succeed later.
func (e *SourceError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// StatusError maps a non-2xx response to a SourceError.
func StatusError(source string, resp *resty.Response) *SourceError {
	code := resp.StatusCode()
	switch code {
	case http.StatusUnauthorized:
		return &SourceError{
			Source:     source,
			StatusCode: code,
			Code:       "UNAUTHORIZED",
			Message:    "Unauthorized: invalid API key",
		}
	case http.StatusForbidden:
		return &SourceError{
			Source:     source,
			StatusCode: code,
			Code:       "INVALID_API_KEY",
			Message:    "Invalid API key or insufficient permissions",
		}
	case http.StatusNotFound:
		return &SourceError{
			Source:     source,
			StatusCode: code,
			Code:       "NOT_FOUND",
			Message:    "Resource not found",
		}
	case http.StatusTooManyRequests:
		retryAfter := resp.Header().Get("Retry-After")
		return &SourceError{
			Source:     source,
			StatusCode: code,
			Code:       "RATE_LIMIT_EXCEEDED",
			Message:    fmt.Sprintf("Rate limit exceeded. Retry after: %s", retryAfter),
			RetryAfter: retryAfter,
		}
	default:
		return &SourceError{
			Source:     source,
			StatusCode: code,
			Code:       "API_ERROR",
			Message:    fmt.Sprintf("API returned status %d: %s", code, resp.Status()),
		}
	}
}

// MissingKeyError is returned by sources that need credentials they were not given.
func MissingKeyError(source string) *SourceError {
	return &SourceError{
		Source:  source,
		Code:    CodeMissingKey,
		Message: "API key is required",
	}
}
