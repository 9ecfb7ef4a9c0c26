package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// FetchService fetches data associated with discovered files.
// Content, metadata and history share this shape.
type FetchService interface {
	// Fetch processes every pending entity. Per-entity failures are counted,
	// not returned.
	Fetch(ctx context.Context, opts domain.FetchOptions) (*domain.FetchStats, error)

	// Progress returns a snapshot of the running fetch. Safe for concurrent use.
	Progress() domain.ProgressSnapshot
}

// APIService passes raw calls through to the API.
type APIService interface {
	// Call issues a REST request. With paginate set, "next" links are
	// followed and every page is returned.
	Call(ctx context.Context, req domain.APIRequest, paginate bool) ([]*domain.APIResponse, error)

	// GraphQL runs a query and returns its data.
	GraphQL(ctx context.Context, query string) (json.RawMessage, error)
}

// AuditService reports on the search audit trail.
type AuditService interface {
	// MultiRangeHits returns files seen under more than one size range.
	MultiRangeHits(ctx context.Context) ([]domain.MultiRangeHit, error)
}
