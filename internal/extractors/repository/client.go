package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/sentinel/internal/core/domain"
)

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// Config configures the API client.
type Config struct {
	// Token is optional. Anonymous access works for public repositories
	// at a lower quota.
	Token string

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string

	// RequestsPerSecond throttles calls. Zero uses DefaultRate.
	RequestsPerSecond float64

	Timeout time.Duration
}

// ConfigFromSettings maps GitHub settings onto a Config.
func ConfigFromSettings(s domain.GitHubSettings) Config {
	return Config{Token: s.Token, BaseURL: s.BaseURL}
}

// Readme is a decoded README file.
type Readme struct {
	Name    string
	Path    string
	HTMLURL string
	Content string
}

// Client reads repository files through the GitHub API.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
}

// NewClient creates an API client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(ctx, ts)
	} else {
		hc = &http.Client{}
	}
	hc.Timeout = timeout

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("%w: github base url: %w", domain.ErrInvalidInput, err)
		}
		client.BaseURL = u
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = DefaultRate
	}
	return &Client{gh: client, rateLimiter: NewRateLimiter(rps)}, nil
}

// GetReadme fetches and decodes the repository's primary README.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (*Readme, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	content, resp, err := c.gh.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return nil, c.wrapError(err, resp, "get readme")
	}
	c.rateLimiter.Update(resp.Response)

	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("%w: decode readme: %w", domain.ErrParse, err)
	}
	return &Readme{
		Name:    content.GetName(),
		Path:    content.GetPath(),
		HTMLURL: content.GetHTMLURL(),
		Content: decoded,
	}, nil
}

// wrapError converts go-github errors to package error types.
func (c *Client) wrapError(err error, resp *gh.Response, operation string) error {
	if resp != nil {
		if rlErr := c.rateLimiter.Check(resp.Response); rlErr != nil {
			return rlErr
		}
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{
			ResetAt:   rateErr.Rate.Reset.Time,
			Remaining: rateErr.Rate.Remaining,
			Limit:     rateErr.Rate.Limit,
		}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %w", operation, &domain.FetchError{Kind: domain.FetchNetwork, Err: err})
}

// ParseRepoURL extracts owner and repository from a github.com URL or an
// "owner/repo" shorthand.
func ParseRepoURL(location string) (owner, repo string, err error) {
	path := location
	if strings.Contains(location, "://") {
		u, perr := url.Parse(location)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %s", ErrNotRepositoryURL, location)
		}
		host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
		if host != "github.com" {
			return "", "", fmt.Errorf("%w: %s", ErrNotRepositoryURL, location)
		}
		path = u.Path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrNotRepositoryURL, location)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
