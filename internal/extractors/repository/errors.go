package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// ErrNotRepositoryURL indicates a location that does not name a repository.
var ErrNotRepositoryURL = errors.New("repository: not a repository URL")

// RateLimitError reports an exhausted API quota.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("repository: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// Unwrap exposes the rate limit as a retryable HTTP 429.
func (e *RateLimitError) Unwrap() error {
	return &domain.FetchError{Kind: domain.FetchStatus, StatusCode: 429, Err: errors.New("api rate limit")}
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("repository: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the response onto a FetchError so failure codes and
// retryability follow the status.
func (e *APIError) Unwrap() error {
	return &domain.FetchError{Kind: domain.FetchStatus, URL: e.URL, StatusCode: e.StatusCode, Err: errors.New(e.Message)}
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited reports whether err is a quota error.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}
