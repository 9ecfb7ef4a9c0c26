package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRequestsPerSecond paces the REST API (~4680/hr, under 5000/hr).
	DefaultRequestsPerSecond = 1.3

	// DefaultQueriesPerSecond paces the GraphQL API.
	DefaultQueriesPerSecond = 30

	// HeaderRateLimit is the rate limit header.
	HeaderRateLimit = "X-RateLimit-Limit"

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRateResource names the quota pool a response counted against.
	HeaderRateResource = "X-RateLimit-Resource"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// window is the quota state of one rate-limit resource (core, search, graphql).
type window struct {
	remaining int
	limit     int
	reset     time.Time
}

// RateLimiter paces requests for one API client. All concurrent callers
// share it, so parallel workers overlap I/O but never request timing.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string]window // From API headers, keyed by resource
	pausedUntil time.Time         // Set after a rate-limit response
	bucket      *rate.Limiter     // Steady pacing
	minBuffer   int               // Reserve requests
	now         func() time.Time
}

// NewRateLimiter creates a limiter that allows at most rps requests per
// second with no bursting.
func NewRateLimiter(rps float64) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	return &RateLimiter{
		windows: make(map[string]window),
		bucket:  rate.NewLimiter(rate.Limit(rps), 1),
		now:     time.Now,
	}
}

// Wait blocks until it's safe to make a request against resource.
// It honours any active pause, the steady pace, and the quota reported by
// the last response for that resource.
func (r *RateLimiter) Wait(ctx context.Context, resource string) error {
	// 1. Shared pause after a rate-limit response
	if err := r.sleepUntil(ctx, r.PausedUntil()); err != nil {
		return err
	}

	// 2. Token bucket (steady pacing)
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	// 3. Quota reported by the API (reactive)
	r.mu.Lock()
	w, ok := r.windows[resource]
	r.mu.Unlock()

	if ok && w.remaining <= r.minBuffer && r.now().Before(w.reset) {
		return r.sleepUntil(ctx, w.reset)
	}
	return nil
}

func (r *RateLimiter) sleepUntil(ctx context.Context, t time.Time) error {
	d := t.Sub(r.now())
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PauseUntil blocks every caller of Wait until t.
func (r *RateLimiter) PauseUntil(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.After(r.pausedUntil) {
		r.pausedUntil = t
	}
}

// PausedUntil returns the end of the current pause, or the zero time.
func (r *RateLimiter) PausedUntil() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pausedUntil
}

// WaitingFor returns how much of the current pause remains.
func (r *RateLimiter) WaitingFor() time.Duration {
	d := r.PausedUntil().Sub(r.now())
	if d < 0 {
		return 0
	}
	return d
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	resource := resp.Header.Get(HeaderRateResource)
	if resource == "" {
		resource = "core"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.windows[resource]
	if !ok {
		w.remaining = -1
	}
	seen := false

	// Parse X-RateLimit-Remaining
	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			w.remaining = val
			seen = true
		}
	}

	// Parse X-RateLimit-Limit
	if limit := resp.Header.Get(HeaderRateLimit); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			w.limit = val
		}
	}

	// Parse X-RateLimit-Reset (Unix timestamp)
	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			w.reset = time.Unix(val, 0)
		}
	}

	if seen {
		r.windows[resource] = w
	}
}

// Remaining returns the remaining requests for resource, or -1 if unknown.
func (r *RateLimiter) Remaining(resource string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[resource]
	if !ok {
		return -1
	}
	return w.remaining
}

// ResetTime returns the reset time for resource.
func (r *RateLimiter) ResetTime(resource string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.windows[resource].reset
}

// retryAfter parses a Retry-After header in seconds.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := resp.Header.Get(HeaderRetryAfter)
	if v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
