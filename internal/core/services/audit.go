package services

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
)

// Ensure AuditService implements the interface.
var _ driving.AuditService = (*AuditService)(nil)

// AuditService reads the search audit trail.
type AuditService struct {
	hits driven.SearchHitStore
}

// NewAuditService creates an audit service.
func NewAuditService(hits driven.SearchHitStore) *AuditService {
	return &AuditService{hits: hits}
}

// MultiRangeHits returns files the search returned under more than one
// size range, most ranges first.
func (s *AuditService) MultiRangeHits(ctx context.Context) ([]domain.MultiRangeHit, error) {
	return s.hits.ListMultiRangeHits(ctx)
}
