package driven

import (
	"context"
	"time"
)

// WaitCondition is the readiness condition for a rendered fetch.
type WaitCondition string

// Readiness conditions.
const (
	// WaitLoad waits for the document body to be ready.
	WaitLoad WaitCondition = "load"

	// WaitNetworkIdle additionally waits for outstanding requests to settle.
	WaitNetworkIdle WaitCondition = "networkidle"
)

// FetchOptions controls a single fetch.
type FetchOptions struct {
	// Render forces the JS-capable path.
	Render bool

	// WaitFor is the readiness condition when rendering.
	WaitFor WaitCondition

	// Timeout overrides the fetcher default when > 0.
	Timeout time.Duration

	// WaitForImages waits for every <img> to finish loading when rendering.
	WaitForImages bool
}

// FetchResponse is a successfully fetched document.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL string

	StatusCode  int
	ContentType string
	Body        []byte

	// Rendered is true if the body came from the JS-capable path.
	Rendered bool
}

// Fetcher retrieves documents. Failures are *domain.FetchError values so
// callers can tell network, status and timeout failures apart.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (*FetchResponse, error)
}

// Renderer fetches a page through a headless browser.
type Renderer interface {
	Render(ctx context.Context, url string, opts FetchOptions) (*FetchResponse, error)

	// Close releases the browser.
	Close() error
}
