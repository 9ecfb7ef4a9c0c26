package github

import (
	"errors"
	"fmt"
	"time"

	gh "github.com/google/go-github/v80/github"
)

// GitHub-specific errors.
var (
	// ErrIsDirectory indicates a contents request resolved to a directory.
	ErrIsDirectory = errors.New("github: path is a directory, not a file")

	// ErrGraphQL indicates a GraphQL response carried errors and no data.
	ErrGraphQL = errors.New("github: graphql query failed")
)

// RateLimitError represents a rate limit exceeded error with reset time.
type RateLimitError struct {
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github: rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

// APIError represents a GitHub API error response.
type APIError struct {
	StatusCode int
	Message    string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// GraphQLErrors is returned when a response has errors and no data.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	if len(e) == 0 {
		return ErrGraphQL.Error()
	}
	return fmt.Sprintf("%s: %s: %s", ErrGraphQL, e[0].Type, e[0].Message)
}

func (e GraphQLErrors) Unwrap() error {
	return ErrGraphQL
}

// rateLimited reports whether any entry is a RATE_LIMITED error.
func (e GraphQLErrors) rateLimited() bool {
	for _, ge := range e {
		if ge.Type == "RATE_LIMITED" {
			return true
		}
	}
	return false
}

// IsNotFound checks if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == 404
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var rateLimitErr *RateLimitError
	var ghRateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	return errors.As(err, &rateLimitErr) || errors.As(err, &ghRateErr) || errors.As(err, &abuseErr)
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401
	}
	return false
}

// statusCode extracts the HTTP status from a go-github error, or 0.
func statusCode(err error) int {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode
	}
	return 0
}
