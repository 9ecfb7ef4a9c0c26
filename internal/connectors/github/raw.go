package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// Call performs an arbitrary REST request. Endpoint is a path relative to
// the API root or an absolute URL (as found in Link headers).
//
// Client errors are returned as a response with the error body rather than
// as an error. Only successful GET responses are cached.
func (c *Client) Call(ctx context.Context, req domain.APIRequest) (*domain.APIResponse, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	endpoint := strings.TrimPrefix(req.Endpoint, "/")

	params := make(map[string]any, len(req.Params))
	for k, v := range req.Params {
		params[k] = v
	}

	fetch := func() (fetched[domain.APIResponse], error) {
		return c.rawCall(ctx, method, endpoint, req.Params)
	}

	if method != http.MethodGet {
		f, err := fetch()
		if err != nil {
			return nil, err
		}
		return &f.value, nil
	}

	resp, err := cachedFetch(c.cache, endpoint, params, fetch)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) rawCall(ctx context.Context, method, endpoint string, params map[string]string) (fetched[domain.APIResponse], error) {
	u := endpoint
	var body any
	if len(params) > 0 {
		if method == http.MethodGet || method == http.MethodDelete {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, v)
			}
			sep := "?"
			if strings.Contains(u, "?") {
				sep = "&"
			}
			u += sep + q.Encode()
		} else {
			body = params
		}
	}

	resource := resourceCore
	if strings.HasPrefix(endpoint, "search/") || strings.Contains(endpoint, "/search/") {
		resource = resourceSearch
	}

	var out json.RawMessage
	var resp *gh.Response
	err := c.call(ctx, "api "+method, resource, func(ctx context.Context) (*gh.Response, error) {
		req, err := c.gh.NewRequest(method, u, body)
		if err != nil {
			return nil, err
		}
		out = nil
		resp, err = c.gh.Do(ctx, req, &out)
		return resp, err
	})
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode < 500 {
			errBody, _ := json.Marshal(ghErr)
			return fetched[domain.APIResponse]{value: domain.APIResponse{
				Status: ghErr.Response.StatusCode,
				Body:   errBody,
			}}, nil
		}
		return fetched[domain.APIResponse]{}, c.wrapError(err, "api "+endpoint)
	}

	if len(out) == 0 {
		out = json.RawMessage("null")
	}
	result := domain.APIResponse{Status: resp.StatusCode, Body: out}
	if resp.Response != nil {
		result.ETag = resp.Header.Get("ETag")
		result.Link = resp.Header.Get("Link")
		result.Next = ParseNextLink(result.Link)
	}
	return fetched[domain.APIResponse]{value: result, cacheable: result.Status < http.StatusBadRequest}, nil
}
