package driven

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// ContentStatusStore persists the terminal outcome of content fetches.
type ContentStatusStore interface {
	// ListFilesWithoutContentStatus returns file URLs with no status record.
	ListFilesWithoutContentStatus(ctx context.Context) ([]string, error)

	// SaveContentStatuses upserts status records in one write.
	SaveContentStatuses(ctx context.Context, records []domain.ContentStatusRecord) error
}

// MetadataStore persists repository metadata.
type MetadataStore interface {
	// ListReposWithoutMetadata returns repo keys with no metadata record.
	ListReposWithoutMetadata(ctx context.Context) ([]string, error)

	// SaveRepoMetadata upserts one record.
	SaveRepoMetadata(ctx context.Context, metadata domain.RepoMetadata) error

	// SaveRepoMetadataBatch upserts records in one write.
	SaveRepoMetadataBatch(ctx context.Context, metadata []domain.RepoMetadata) error

	// GetRepoMetadata returns the record for a repo key.
	// Returns domain.ErrNotFound if absent.
	GetRepoMetadata(ctx context.Context, repoKey string) (*domain.RepoMetadata, error)
}

// HistoryStore persists file commit history.
type HistoryStore interface {
	// ListFilesWithoutHistory returns file URLs with no history record.
	ListFilesWithoutHistory(ctx context.Context) ([]string, error)

	// SaveFileHistory upserts one record.
	SaveFileHistory(ctx context.Context, history domain.FileHistory) error

	// SaveFileHistoryBatch upserts records in one write.
	SaveFileHistoryBatch(ctx context.Context, histories []domain.FileHistory) error

	// GetFileHistory returns the record for a file URL.
	// Returns domain.ErrNotFound if absent.
	GetFileHistory(ctx context.Context, url string) (*domain.FileHistory, error)
}
