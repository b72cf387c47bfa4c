package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sentinel/internal/core/domain"
	"github.com/custodia-labs/sentinel/internal/core/ports/driven"
)

func newServer(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		if robots == "" {
			http.NotFound(w, nil)
			return
		}
		_, _ = w.Write([]byte(robots))
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body>ua=" + r.Header.Get("User-Agent") + "</body></html>"))
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 2048)))
	})
	mux.HandleFunc("/private/doc", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secret"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPFetcher_Success(t *testing.T) {
	srv := newServer(t, "")
	f := New(Config{UserAgent: "sentinel-test"})

	resp, err := f.Fetch(context.Background(), srv.URL+"/ok", driven.FetchOptions{})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Contains(t, string(resp.Body), "ua=sentinel-test")
	assert.False(t, resp.Rendered)
}

func TestHTTPFetcher_StatusErrors(t *testing.T) {
	srv := newServer(t, "")
	f := New(Config{})

	t.Run("404 is not found and permanent", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/missing.pdf", driven.FetchOptions{})

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.False(t, domain.IsRetryable(err))
		assert.Equal(t, domain.CodeHTTP404, domain.ErrorCode(err))
	})

	t.Run("503 is retryable", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/flaky", driven.FetchOptions{})

		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrNotFound))
		assert.True(t, domain.IsRetryable(err))
		assert.Equal(t, domain.CodeHTTP5xx, domain.ErrorCode(err))
	})
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	srv := newServer(t, "")
	f := New(Config{})

	_, err := f.Fetch(context.Background(), srv.URL+"/slow", driven.FetchOptions{Timeout: 50 * time.Millisecond})

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.FetchTimeout, fe.Kind)
	assert.True(t, fe.Retryable())
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New(Config{}).Fetch(context.Background(), addr+"/gone", driven.FetchOptions{})

	var fe *domain.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, domain.FetchNetwork, fe.Kind)
}

func TestHTTPFetcher_InvalidURL(t *testing.T) {
	_, err := New(Config{}).Fetch(context.Background(), "not a url", driven.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHTTPFetcher_BodyTooLarge(t *testing.T) {
	srv := newServer(t, "")
	f := New(Config{MaxBodyBytes: 1024})

	_, err := f.Fetch(context.Background(), srv.URL+"/big", driven.FetchOptions{})

	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestHTTPFetcher_RenderWithoutRenderer(t *testing.T) {
	srv := newServer(t, "")
	f := New(Config{})

	assert.False(t, f.HasRenderer())
	_, err := f.Fetch(context.Background(), srv.URL+"/ok", driven.FetchOptions{Render: true})
	assert.ErrorIs(t, err, domain.ErrRenderUnavailable)
}

type stubRenderer struct {
	calls int
}

func (s *stubRenderer) Render(_ context.Context, u string, opts driven.FetchOptions) (*driven.FetchResponse, error) {
	s.calls++
	return &driven.FetchResponse{URL: u, StatusCode: 200, Body: []byte("<html>rendered</html>"), Rendered: opts.Render}, nil
}

func (s *stubRenderer) Close() error { return nil }

func TestHTTPFetcher_RenderDelegates(t *testing.T) {
	srv := newServer(t, "")
	r := &stubRenderer{}
	f := New(Config{}, WithRenderer(r))

	resp, err := f.Fetch(context.Background(), srv.URL+"/ok", driven.FetchOptions{Render: true, WaitFor: driven.WaitNetworkIdle})

	require.NoError(t, err)
	assert.True(t, resp.Rendered)
	assert.Equal(t, 1, r.calls)
}

func TestHTTPFetcher_Robots(t *testing.T) {
	srv := newServer(t, "User-agent: *\nDisallow: /private/\n")
	f := New(Config{RespectRobots: true, UserAgent: "sentinel-test"})

	_, err := f.Fetch(context.Background(), srv.URL+"/private/doc", driven.FetchOptions{})
	assert.ErrorIs(t, err, domain.ErrRobotsDisallowed)
	assert.Equal(t, domain.CodeRobots, domain.ErrorCode(err))

	_, err = f.Fetch(context.Background(), srv.URL+"/ok", driven.FetchOptions{})
	assert.NoError(t, err)
}

func TestRobotsCache_TTL(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /x\n"))
		}
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := NewRobotsCache(srv.Client(), "bot", time.Hour, clock)
	target, _ := url.Parse(srv.URL + "/x")

	assert.False(t, cache.Allowed(context.Background(), target))
	assert.False(t, cache.Allowed(context.Background(), target))
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, cache.Len())

	now = now.Add(59 * time.Minute)
	cache.Allowed(context.Background(), target)
	assert.Equal(t, int32(1), hits.Load())

	now = now.Add(2 * time.Minute)
	cache.Allowed(context.Background(), target)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRobotsCache_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewRobotsCache(srv.Client(), "bot", time.Hour, nil)
	target, _ := url.Parse(srv.URL + "/anything")

	assert.True(t, cache.Allowed(context.Background(), target))
}

func TestHostLimiter(t *testing.T) {
	l := NewHostLimiter(0, 0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "example.com"))
	}

	slow := NewHostLimiter(0.001, 1)
	require.NoError(t, slow.Wait(ctx, "a.com"))
	require.NoError(t, slow.Wait(ctx, "b.com"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, slow.Wait(cancelled, "a.com"))
}
