package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/retry"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// Resource names as reported in X-RateLimit-Resource.
	resourceCore    = "core"
	resourceSearch  = "search"
	resourceGraphQL = "graphql"
)

// ClientConfig tunes pacing and retries of one client.
type ClientConfig struct {
	// RequestsPerSecond is the steady request rate.
	RequestsPerSecond float64
	// MaxRetries bounds retries of transient failures.
	MaxRetries int
	// BaseDelay is the first transient backoff.
	BaseDelay time.Duration
	// Factor multiplies the backoff (and the rate-limit fallback wait).
	Factor float64
	// BaseURL overrides the API root, e.g. for GitHub Enterprise.
	BaseURL string
}

// DefaultRESTConfig returns the REST client defaults.
func DefaultRESTConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: DefaultRequestsPerSecond,
		MaxRetries:        30,
		BaseDelay:         5 * time.Second,
		Factor:            1.5,
	}
}

// DefaultGraphQLConfig returns the GraphQL client defaults.
func DefaultGraphQLConfig() ClientConfig {
	return ClientConfig{
		RequestsPerSecond: DefaultQueriesPerSecond,
		MaxRetries:        10,
		BaseDelay:         time.Second,
		Factor:            2,
	}
}

func (c ClientConfig) retryConfig() retry.Config {
	return retry.Config{
		MaxRetries: c.MaxRetries,
		BaseDelay:  c.BaseDelay,
		Factor:     c.Factor,
		MaxDelay:   5 * time.Minute,
	}
}

// counters are the request statistics of one client.
type counters struct {
	requests      atomic.Int64
	retries       atomic.Int64
	rateLimitHits atomic.Int64
	totalNanos    atomic.Int64
}

func (s *counters) observe(d time.Duration) {
	s.requests.Add(1)
	s.totalNanos.Add(int64(d))
}

func (s *counters) snapshot(limiter *RateLimiter) domain.ClientStats {
	return domain.ClientStats{
		Requests:         s.requests.Load(),
		Retries:          s.retries.Load(),
		RateLimitHits:    s.rateLimitHits.Load(),
		RateLimitedUntil: limiter.PausedUntil(),
		RateLimitWait:    limiter.WaitingFor(),
		TotalTime:        time.Duration(s.totalNanos.Load()),
	}
}

// Client is the REST API client. It is safe for concurrent use.
type Client struct {
	gh          *gh.Client
	cache       driven.ResponseCache
	rateLimiter *RateLimiter
	retry       retry.Config
	factor      float64
	stats       counters
}

// Verify interface compliance.
var (
	_ driven.CodeSearcher    = (*Client)(nil)
	_ driven.ContentFetcher  = (*Client)(nil)
	_ driven.MetadataFetcher = (*Client)(nil)
	_ driven.HistoryFetcher  = (*Client)(nil)
	_ driven.RawAPI          = (*Client)(nil)
)

// NewClientWithHTTPClient creates a REST client over a custom http.Client.
func NewClientWithHTTPClient(httpClient *http.Client, cache driven.ResponseCache, cfg ClientConfig) (*Client, error) {
	client, err := newGitHub(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		gh:          client,
		cache:       cache,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
		retry:       cfg.retryConfig(),
		factor:      cfg.Factor,
	}, nil
}

// NewClientWithToken creates a REST client with a static access token.
// Works for both PAT and OAuth access tokens.
func NewClientWithToken(ctx context.Context, token string, cache driven.ResponseCache, cfg ClientConfig) (*Client, error) {
	return NewClientWithHTTPClient(tokenHTTPClient(ctx, token), cache, cfg)
}

func tokenHTTPClient(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = DefaultTimeout
	return tc
}

func newGitHub(httpClient *http.Client, baseURL string) (*gh.Client, error) {
	client := gh.NewClient(httpClient)
	if baseURL == "" {
		return client, nil
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	client.BaseURL = u
	return client, nil
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Stats returns a snapshot of the request counters.
func (c *Client) Stats() domain.ClientStats {
	return c.stats.snapshot(c.rateLimiter)
}

// call runs one API operation under the rate limiter and retry driver.
// fn performs a single attempt and returns its response.
func (c *Client) call(ctx context.Context, op, resource string, fn func(ctx context.Context) (*gh.Response, error)) error {
	cfg := c.retry
	cfg.OnRetry = onRetry(op, c.rateLimiter, &c.stats)

	_, err := retry.Do(ctx, cfg,
		func(ctx context.Context) (*gh.Response, error) {
			if err := c.rateLimiter.Wait(ctx, resource); err != nil {
				return nil, err
			}
			start := time.Now()
			resp, err := fn(ctx)
			c.stats.observe(time.Since(start))
			c.updateRateLimitFromResponse(resp)
			return resp, err
		},
		func(attempt int, _ *gh.Response, err error) retry.Decision {
			return classifyError(attempt, c.factor, err)
		},
	)
	return err
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	// Out of retries or cancelled: keep the chain intact
	if retry.IsExhausted(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	// Check for rate limit error
	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &RateLimitError{
			ResetAt:   rateLimitErr.Rate.Reset.Time,
			Remaining: rateLimitErr.Rate.Remaining,
			Limit:     rateLimitErr.Rate.Limit,
		}
	}

	// Check for GitHub error response
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return apiErr
	}

	return fmt.Errorf("%s: %w", operation, err)
}
