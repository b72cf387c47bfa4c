package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown format or backend type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrStoreUnavailable indicates the chunk store cannot be reached.
	// Callers must treat it as distinct from an empty result.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEmbeddingUnavailable indicates the embedding backend is not configured
	// or could not be loaded.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrParserUnavailable indicates a required document parser is missing.
	ErrParserUnavailable = errors.New("parser unavailable")

	// ErrParse indicates content could not be parsed (corrupt document).
	ErrParse = errors.New("parse failed")

	// ErrDimensionMismatch indicates two vectors have different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrRobotsDisallowed indicates robots.txt forbids fetching a URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrRenderUnavailable indicates no JS-capable fetch path is configured.
	ErrRenderUnavailable = errors.New("render path unavailable")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchNetwork FetchErrorKind = "network"
	FetchTimeout FetchErrorKind = "timeout"
	FetchStatus  FetchErrorKind = "status"
)

// FetchError is returned by fetchers for every transport-level failure.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes a 404 match ErrNotFound.
func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == FetchStatus && e.StatusCode == http.StatusNotFound
}

// Retryable reports whether a caller may retry the fetch.
// Timeouts, network errors, 429 and 5xx are transient.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FetchNetwork, FetchTimeout:
		return true
	case FetchStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// Stable failure codes recorded in the failure log.
const (
	CodeFetchTimeout = "FETCH_TIMEOUT"
	CodeFetchNetwork = "FETCH_NETWORK"
	CodeHTTP404      = "HTTP_404"
	CodeHTTP429      = "HTTP_429"
	CodeHTTP5xx      = "HTTP_5XX"
	CodeHTTP4xx      = "HTTP_4XX"
	CodeRobots       = "ROBOTS_DISALLOWED"
	CodeParse        = "PARSE_ERROR"
	CodeStorage      = "STORAGE_ERROR"
	CodeCancelled    = "CANCELLED"
	CodeInvalid      = "INVALID_SOURCE"
	CodeUnknown      = "UNKNOWN"
)

// ErrorCode maps an error onto a stable failure code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		switch {
		case fe.Kind == FetchTimeout:
			return CodeFetchTimeout
		case fe.Kind == FetchNetwork:
			return CodeFetchNetwork
		case fe.StatusCode == http.StatusNotFound:
			return CodeHTTP404
		case fe.StatusCode == http.StatusTooManyRequests:
			return CodeHTTP429
		case fe.StatusCode >= 500:
			return CodeHTTP5xx
		default:
			return CodeHTTP4xx
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeFetchTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, ErrStoreUnavailable):
		return CodeStorage
	case errors.Is(err, ErrParse):
		return CodeParse
	case errors.Is(err, ErrRobotsDisallowed):
		return CodeRobots
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedType):
		return CodeInvalid
	default:
		return CodeUnknown
	}
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
