package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
	"github.com/custodia-labs/sentinel/internal/logger"
)

// Ensure HTTPFetcher implements the interface.
var _ driven.Fetcher = (*HTTPFetcher)(nil)

// ErrBodyTooLarge indicates a response exceeded the configured size cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Config configures an HTTPFetcher.
type Config struct {
	UserAgent         string
	Timeout           time.Duration
	MaxBodyBytes      int64
	RequestsPerSecond float64
	Burst             int
	RespectRobots     bool
	RobotsTTL         time.Duration
}

// ConfigFromSettings maps fetch settings onto a Config.
func ConfigFromSettings(s domain.FetchSettings) Config {
	return Config{
		UserAgent:         s.UserAgent,
		Timeout:           s.Timeout,
		MaxBodyBytes:      s.MaxBodyBytes,
		RequestsPerSecond: s.RequestsPerSecond,
		Burst:             s.Burst,
		RespectRobots:     s.RespectRobots,
		RobotsTTL:         s.RobotsTTL,
	}
}

// HTTPFetcher fetches documents over HTTP and delegates rendering.
type HTTPFetcher struct {
	client   *http.Client
	cfg      Config
	limiter  *HostLimiter
	robots   *RobotsCache
	renderer driven.Renderer
	now      Clock
}

// Option configures the fetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithRenderer enables the JS-capable path.
func WithRenderer(r driven.Renderer) Option {
	return func(f *HTTPFetcher) {
		f.renderer = r
	}
}

// WithClock sets the clock used by the robots.txt cache.
func WithClock(now Clock) Option {
	return func(f *HTTPFetcher) {
		f.now = now
	}
}

// New creates an HTTP fetcher.
func New(cfg Config, opts ...Option) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = domain.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = domain.DefaultFetchTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = domain.DefaultMaxBodyBytes
	}
	if cfg.RobotsTTL <= 0 {
		cfg.RobotsTTL = domain.DefaultRobotsTTL
	}

	f := &HTTPFetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: NewHostLimiter(cfg.RequestsPerSecond, cfg.Burst),
	}
	for _, opt := range opts {
		opt(f)
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsCache(f.client, cfg.UserAgent, cfg.RobotsTTL, f.now)
	}
	return f
}

// HasRenderer returns true if the JS-capable path is configured.
func (f *HTTPFetcher) HasRenderer() bool {
	return f.renderer != nil
}

// Fetch retrieves rawURL. opts.Render routes through the renderer.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, opts driven.FetchOptions) (*driven.FetchResponse, error) {
	target, err := url.Parse(rawURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("%w: url %q", domain.ErrInvalidInput, rawURL)
	}

	if f.robots != nil && !f.robots.Allowed(ctx, target) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRobotsDisallowed, rawURL)
	}

	if err := f.limiter.Wait(ctx, target.Host); err != nil {
		return nil, classify(rawURL, err)
	}

	if opts.Render {
		if f.renderer == nil {
			return nil, domain.ErrRenderUnavailable
		}
		logger.Debug("rendering %s", rawURL)
		return f.renderer.Render(ctx, rawURL, opts)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	return f.get(ctx, rawURL)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*driven.FetchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &domain.FetchError{Kind: domain.FetchStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(rawURL, err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", rawURL, ErrBodyTooLarge, f.cfg.MaxBodyBytes)
	}

	logger.Debug("fetched %s: %d bytes (%s)", rawURL, len(body), resp.Header.Get("Content-Type"))

	return &driven.FetchResponse{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classify converts transport errors into *domain.FetchError.
func classify(rawURL string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.FetchError{Kind: domain.FetchTimeout, URL: rawURL, Err: err}
	}
	return &domain.FetchError{Kind: domain.FetchNetwork, URL: rawURL, Err: err}
}
