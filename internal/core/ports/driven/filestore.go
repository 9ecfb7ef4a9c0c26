package driven

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// FileStore persists discovered files.
type FileStore interface {
	// InsertFiles stores files, ignoring URLs that already exist.
	// Returns the number of newly inserted files.
	InsertFiles(ctx context.Context, files []domain.DiscoveredFile) (int, error)

	// ListFileURLs returns every known file URL in insertion order.
	ListFileURLs(ctx context.Context) ([]string, error)

	// CountFiles returns the number of known files.
	CountFiles(ctx context.Context) (int, error)

	// ListRepoKeys returns the distinct "owner/repo" keys derived from file URLs.
	ListRepoKeys(ctx context.Context) ([]string, error)
}

// SearchHitStore persists the search audit trail.
type SearchHitStore interface {
	// AppendSearchHits appends hits. Duplicates are kept.
	AppendSearchHits(ctx context.Context, hits []domain.SearchHit) error

	// ListMultiRangeHits returns files returned for more than one distinct size range.
	ListMultiRangeHits(ctx context.Context) ([]domain.MultiRangeHit, error)
}

// ScanProgressStore persists scan checkpoints.
type ScanProgressStore interface {
	// GetScanProgress returns the checkpoint for a query.
	// Returns domain.ErrNotFound if the query has never been checkpointed.
	GetScanProgress(ctx context.Context, query string) (*domain.ScanProgress, error)

	// SaveScanProgress creates or replaces the checkpoint for progress.Query.
	SaveScanProgress(ctx context.Context, progress domain.ScanProgress) error
}
