package repository

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRate is the proactive request rate against the API.
	DefaultRate = 1.2

	// MinBuffer is the number of remaining requests below which calls wait
	// for the quota reset.
	MinBuffer = 10

	HeaderRateLimit     = "X-RateLimit-Limit"
	HeaderRateRemaining = "X-RateLimit-Remaining"
	HeaderRateReset     = "X-RateLimit-Reset"
	HeaderRetryAfter    = "Retry-After"
)

// RateLimiter combines a token bucket with the quota reported in
// X-RateLimit headers.
type RateLimiter struct {
	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	now       func() time.Time
}

// NewRateLimiter creates a limiter issuing at most rps requests per second.
// A non-positive rps disables proactive throttling.
func NewRateLimiter(rps float64) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		remaining: -1,
		bucket:    rate.NewLimiter(limit, 1),
		now:       time.Now,
	}
}

// Wait blocks until a request may be sent.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining, reset := r.remaining, r.resetTime
	now := r.now()
	r.mu.Unlock()

	if remaining < 0 || remaining >= MinBuffer || !now.Before(reset) {
		return nil
	}
	timer := time.NewTimer(reset.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Update records quota headers from resp.
func (r *RateLimiter) Update(resp *http.Response) {
	if resp == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, err := strconv.Atoi(resp.Header.Get(HeaderRateRemaining)); err == nil {
		r.remaining = v
	}
	if v, err := strconv.Atoi(resp.Header.Get(HeaderRateLimit)); err == nil {
		r.limit = v
	}
	if v, err := strconv.ParseInt(resp.Header.Get(HeaderRateReset), 10, 64); err == nil {
		r.resetTime = time.Unix(v, 0)
	}
}

// Check returns a RateLimitError when resp signals an exhausted quota.
func (r *RateLimiter) Check(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	r.Update(resp)

	r.mu.Lock()
	defer r.mu.Unlock()
	if resp.StatusCode != http.StatusTooManyRequests && (resp.StatusCode != http.StatusForbidden || r.remaining != 0) {
		return nil
	}
	reset := r.resetTime
	if secs, err := strconv.Atoi(resp.Header.Get(HeaderRetryAfter)); err == nil {
		reset = r.now().Add(time.Duration(secs) * time.Second)
	}
	return &RateLimitError{ResetAt: reset, Remaining: r.remaining, Limit: r.limit}
}

// Remaining returns the last reported quota, or -1 if unknown.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}
