package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
)

// Ensure APIService implements the interface.
var _ driving.APIService = (*APIService)(nil)

// maxPages bounds link following for a single paginated call.
const maxPages = 1000

// APIService passes raw REST and GraphQL calls through to the API.
type APIService struct {
	rest    driven.RawAPI
	graphql driven.GraphQLAPI
}

// NewAPIService creates an API service. graphql may be nil.
func NewAPIService(rest driven.RawAPI, graphql driven.GraphQLAPI) *APIService {
	return &APIService{rest: rest, graphql: graphql}
}

// Call issues req. With paginate set, the next page of each response is
// requested until none remains.
func (s *APIService) Call(ctx context.Context, req domain.APIRequest, paginate bool) ([]*domain.APIResponse, error) {
	if strings.TrimSpace(req.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint: %w", domain.ErrInvalidInput)
	}

	var responses []*domain.APIResponse
	for page := 0; page < maxPages; page++ {
		resp, err := s.rest.Call(ctx, req)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)

		if !paginate || resp.Status >= 400 || resp.Next == "" {
			break
		}
		// The next link already carries the query string.
		req = domain.APIRequest{Method: req.Method, Endpoint: resp.Next}
	}
	return responses, nil
}

// GraphQL runs query without variables.
func (s *APIService) GraphQL(ctx context.Context, query string) (json.RawMessage, error) {
	if s.graphql == nil {
		return nil, fmt.Errorf("graphql: %w", domain.ErrNotConfigured)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query: %w", domain.ErrInvalidInput)
	}
	return s.graphql.Query(ctx, query, nil)
}
