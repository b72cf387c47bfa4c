package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/custodia-labs/sentinel/internal/logger"
)

// maxRobotsBytes caps robots.txt reads.
const maxRobotsBytes = 512 << 10

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// RobotsCache fetches and caches robots.txt per origin for a fixed TTL.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	now       Clock

	mu      sync.Mutex
	entries map[string]robotsEntry
}

// NewRobotsCache creates a cache. A nil clock uses time.Now.
func NewRobotsCache(client *http.Client, userAgent string, ttl time.Duration, now Clock) *RobotsCache {
	if now == nil {
		now = time.Now
	}
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		ttl:       ttl,
		now:       now,
		entries:   make(map[string]robotsEntry),
	}
}

// Allowed reports whether the user agent may fetch target.
// An unreachable robots.txt allows everything.
func (c *RobotsCache) Allowed(ctx context.Context, target *url.URL) bool {
	origin := target.Scheme + "://" + target.Host

	c.mu.Lock()
	entry, ok := c.entries[origin]
	c.mu.Unlock()

	if !ok || !c.now().Before(entry.expires) {
		entry = robotsEntry{data: c.load(ctx, origin), expires: c.now().Add(c.ttl)}
		c.mu.Lock()
		c.entries[origin] = entry
		c.mu.Unlock()
	}

	if entry.data == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return entry.data.TestAgent(path, c.userAgent)
}

// Len returns the number of cached origins.
func (c *RobotsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *RobotsCache) load(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Debug("robots.txt unreachable for %s: %v", origin, err)
		return nil
	}
	defer resp.Body.Close()

	// Server errors are treated as "no robots.txt" rather than disallow-all.
	if resp.StatusCode >= 500 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		logger.Debug("robots.txt unparseable for %s: %v", origin, err)
		return nil
	}
	return data
}
