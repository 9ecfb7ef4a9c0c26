package driving

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// DiscoveryService enumerates files matching a code search query.
type DiscoveryService interface {
	// Discover runs or resumes the scan for query.
	Discover(ctx context.Context, query string, opts domain.DiscoveryOptions) (*domain.ScanResult, error)

	// Progress returns a snapshot of the running scan. Safe for concurrent use.
	Progress() domain.ProgressSnapshot
}
