package github

import (
	"context"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

const searchEndpoint = "search/code"

type searchPayload struct {
	Total int                 `json:"total_count"`
	Items []searchItemPayload `json:"items"`
}

type searchItemPayload struct {
	HTMLURL string `json:"html_url"`
	SHA     string `json:"sha"`
	Size    *int64 `json:"size,omitempty"`
}

// SearchCode returns one page of code search results.
// A query the service rejects as unprocessable yields an empty page.
func (c *Client) SearchCode(ctx context.Context, query string, page, perPage int) (*domain.SearchPage, error) {
	// "+" is a space in the web UI's query syntax.
	q := strings.ReplaceAll(query, "+", " ")
	params := map[string]any{"q": q, "per_page": perPage, "page": page}

	payload, err := cachedFetch(c.cache, searchEndpoint, params, func() (fetched[searchPayload], error) {
		return c.searchCode(ctx, q, page, perPage)
	})
	if err != nil {
		return nil, err
	}

	result := &domain.SearchPage{Total: payload.Total, Items: make([]domain.SearchItem, 0, len(payload.Items))}
	for _, item := range payload.Items {
		result.Items = append(result.Items, domain.SearchItem{URL: item.HTMLURL, SHA: item.SHA, Size: item.Size})
	}
	return result, nil
}

func (c *Client) searchCode(ctx context.Context, q string, page, perPage int) (fetched[searchPayload], error) {
	opts := &gh.SearchOptions{ListOptions: gh.ListOptions{Page: page, PerPage: perPage}}

	var res *gh.CodeSearchResult
	err := c.call(ctx, "search code", resourceSearch, func(ctx context.Context) (*gh.Response, error) {
		var resp *gh.Response
		var err error
		res, resp, err = c.gh.Search.Code(ctx, q, opts)
		return resp, err
	})
	if err != nil {
		if statusCode(err) == http.StatusUnprocessableEntity {
			return fetched[searchPayload]{value: searchPayload{Items: []searchItemPayload{}}}, nil
		}
		return fetched[searchPayload]{}, c.wrapError(err, "search code")
	}

	payload := searchPayload{Total: res.GetTotal(), Items: make([]searchItemPayload, 0, len(res.CodeResults))}
	for _, r := range res.CodeResults {
		payload.Items = append(payload.Items, searchItemPayload{HTMLURL: r.GetHTMLURL(), SHA: r.GetSHA()})
	}

	// An empty page for a non-empty result set is a transient index gap.
	cacheable := len(payload.Items) > 0 || payload.Total == 0
	return fetched[searchPayload]{value: payload, cacheable: cacheable}, nil
}
