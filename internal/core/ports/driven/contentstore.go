package driven

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// ContentStore is the destination for fetched file content.
type ContentStore interface {
	// Existing returns the set of content paths (domain.FileRef.ContentPath)
	// already present. Implementations scan the destination once.
	Existing(ctx context.Context) (map[string]struct{}, error)

	// Write stores the decoded content of a file.
	Write(ref domain.FileRef, data []byte) error
}
