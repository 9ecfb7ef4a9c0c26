package driven

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// CodeSearcher runs paginated code searches.
type CodeSearcher interface {
	// SearchCode returns one page of results. Pages are 1-indexed.
	SearchCode(ctx context.Context, query string, page, perPage int) (*domain.SearchPage, error)
}

// ContentFetcher fetches one file's content.
type ContentFetcher interface {
	// GetFileContent returns the file's base64 content.
	// Returns domain.ErrNotFound, domain.ErrNoContent or
	// domain.ErrUnresolvableSymlink for terminal misses.
	GetFileContent(ctx context.Context, ref domain.FileRef) (*domain.FileContent, error)
}

// MetadataFetcher fetches repository metadata.
type MetadataFetcher interface {
	// GetRepoMetadata returns attributes for "owner/repo".
	GetRepoMetadata(ctx context.Context, repoKey string) (*domain.RepoMetadata, error)
}

// HistoryFetcher fetches file commit history.
type HistoryFetcher interface {
	// GetFileHistory returns up to domain.MaxHistoryCommits commits, newest first.
	GetFileHistory(ctx context.Context, ref domain.FileRef) ([]domain.CommitSummary, error)
}

// BatchFetcher fetches many items per round trip over a separate quota.
// Per-item failures are reported in the results; an error return means
// the whole batch failed.
type BatchFetcher interface {
	FetchContentBatch(ctx context.Context, refs []domain.FileRef) ([]domain.ContentResult, error)
	FetchMetadataBatch(ctx context.Context, repoKeys []string) ([]domain.MetadataResult, error)
	FetchHistoryBatch(ctx context.Context, refs []domain.FileRef) ([]domain.HistoryResult, error)

	// QueryCount returns the number of queries sent so far.
	QueryCount() int64
}

// RawAPI passes arbitrary REST calls through to the API.
type RawAPI interface {
	Call(ctx context.Context, req domain.APIRequest) (*domain.APIResponse, error)
}

// GraphQLAPI runs arbitrary GraphQL queries.
type GraphQLAPI interface {
	// Query returns the "data" member of the response.
	Query(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)
}
