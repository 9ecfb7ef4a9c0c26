package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/retry"
)

const graphqlEndpoint = "graphql"

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors GraphQLErrors   `json:"errors,omitempty"`
}

func (r *graphQLResponse) hasData() bool {
	return len(r.Data) > 0 && string(r.Data) != "null"
}

// GraphQLClient runs GraphQL queries under its own rate limiter.
// It is safe for concurrent use.
type GraphQLClient struct {
	gh          *gh.Client
	cache       driven.ResponseCache
	rateLimiter *RateLimiter
	retry       retry.Config
	factor      float64
	stats       counters
}

// Verify interface compliance.
var (
	_ driven.BatchFetcher = (*GraphQLClient)(nil)
	_ driven.GraphQLAPI   = (*GraphQLClient)(nil)
)

// NewGraphQLClientWithHTTPClient creates a GraphQL client over a custom http.Client.
func NewGraphQLClientWithHTTPClient(httpClient *http.Client, cache driven.ResponseCache, cfg ClientConfig) (*GraphQLClient, error) {
	client, err := newGitHub(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	return &GraphQLClient{
		gh:          client,
		cache:       cache,
		rateLimiter: NewRateLimiter(cfg.RequestsPerSecond),
		retry:       cfg.retryConfig(),
		factor:      cfg.Factor,
	}, nil
}

// NewGraphQLClientWithToken creates a GraphQL client with a static access token.
func NewGraphQLClientWithToken(ctx context.Context, token string, cache driven.ResponseCache, cfg ClientConfig) (*GraphQLClient, error) {
	return NewGraphQLClientWithHTTPClient(tokenHTTPClient(ctx, token), cache, cfg)
}

// RateLimiter returns the rate limiter for external access.
func (c *GraphQLClient) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// Stats returns a snapshot of the query counters.
func (c *GraphQLClient) Stats() domain.ClientStats {
	return c.stats.snapshot(c.rateLimiter)
}

// QueryCount returns the number of queries sent, retries included.
func (c *GraphQLClient) QueryCount() int64 {
	return c.stats.requests.Load()
}

// Query runs query and returns the "data" member of the response.
// Responses carrying data are cached, including partial ones.
func (c *GraphQLClient) Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	params := map[string]any{"query": query, "variables": variables}
	return cachedFetch(c.cache, graphqlEndpoint, params, func() (fetched[json.RawMessage], error) {
		data, err := c.execute(ctx, query, variables)
		if err != nil {
			return fetched[json.RawMessage]{}, err
		}
		return fetched[json.RawMessage]{value: data, cacheable: true}, nil
	})
}

// execute sends one query through the retry driver without caching.
func (c *GraphQLClient) execute(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	cfg := c.retry
	cfg.OnRetry = onRetry("graphql", c.rateLimiter, &c.stats)

	var lastResp *gh.Response
	out, err := retry.Do(ctx, cfg,
		func(ctx context.Context) (*graphQLResponse, error) {
			if err := c.rateLimiter.Wait(ctx, resourceGraphQL); err != nil {
				return nil, err
			}
			req, err := c.gh.NewRequest(http.MethodPost, graphqlEndpoint, graphQLRequest{Query: query, Variables: variables})
			if err != nil {
				return nil, err
			}

			var body graphQLResponse
			start := time.Now()
			resp, err := c.gh.Do(ctx, req, &body)
			c.stats.observe(time.Since(start))
			lastResp = resp
			if resp != nil && resp.Response != nil {
				c.rateLimiter.UpdateFromResponse(resp.Response)
			}
			return &body, err
		},
		func(attempt int, body *graphQLResponse, err error) retry.Decision {
			if err != nil {
				return classifyError(attempt, c.factor, err)
			}
			if body.hasData() || len(body.Errors) == 0 {
				return retry.Succeed()
			}
			if body.Errors.rateLimited() {
				if lastResp != nil {
					if d, ok := retryAfter(lastResp.Response); ok {
						return retry.RetryAfter(d, body.Errors)
					}
				}
				return retry.RetryAfter(rateLimitFallback(c.factor, attempt), body.Errors)
			}
			return retry.RetryNow(body.Errors)
		},
	)
	if err != nil {
		var gqlErrs GraphQLErrors
		if errors.As(err, &gqlErrs) || retry.IsExhausted(err) {
			return nil, err
		}
		return nil, wrapGraphQLError(err)
	}
	if !out.hasData() {
		return nil, ErrGraphQL
	}
	return out.Data, nil
}

func wrapGraphQLError(err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return &APIError{StatusCode: ghErr.Response.StatusCode, Message: ghErr.Message, URL: graphqlEndpoint}
	}
	return err
}
