package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// Ensure DiscoveryService implements the interface.
var _ driving.DiscoveryService = (*DiscoveryService)(nil)

// ScanConfig bounds the enumeration scan.
type ScanConfig struct {
	// MaxSize is the exclusive upper bound of the file sizes scanned.
	MaxSize int64
	// InitialChunk is the width of the first bucket.
	InitialChunk int64
	// ResultLimit is the most results the search service returns for one query.
	ResultLimit int
	// MaxConsecutiveEmpty empty buckets in a row end the scan.
	MaxConsecutiveEmpty int
	// PerPage and MaxPages bound pagination of one bucket.
	PerPage  int
	MaxPages int
	// MaxEmptyPageRetries bounds retries of an unexpectedly empty page.
	MaxEmptyPageRetries int
}

// DefaultScanConfig returns the scan bounds of the code search API.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		MaxSize:             1_000_000,
		InitialChunk:        10_000,
		ResultLimit:         1000,
		MaxConsecutiveEmpty: 10,
		PerPage:             100,
		MaxPages:            10,
		MaxEmptyPageRetries: 3,
	}
}

// DiscoveryService enumerates every file matching a query by partitioning
// the search into size buckets small enough to stay under the result cap.
//
// Each iteration looks at the bucket [lo, lo+chunk]:
//
//   - empty: advance and double the chunk; enough empties in a row end the scan
//   - under the cap: collect every page, then advance and double the chunk
//   - at or over the cap: halve the chunk and retry the same lo
//
// A bucket that reported fewer results than the cap but returned the cap
// when paginated is treated as over the cap. A checkpoint is saved after
// every iteration so an interrupted scan resumes where it stopped.
type DiscoveryService struct {
	searcher driven.CodeSearcher
	files    driven.FileStore
	hits     driven.SearchHitStore
	progress driven.ScanProgressStore
	cfg      ScanConfig

	newRunID func() string
	now      func() time.Time
	tally    tally
}

// NewDiscoveryService creates a discovery service.
func NewDiscoveryService(
	searcher driven.CodeSearcher,
	files driven.FileStore,
	hits driven.SearchHitStore,
	progress driven.ScanProgressStore,
	cfg ScanConfig,
) *DiscoveryService {
	return &DiscoveryService{
		searcher: searcher,
		files:    files,
		hits:     hits,
		progress: progress,
		cfg:      cfg,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// Progress returns a snapshot of the running scan. Total is the estimated
// result count and Completed the number of files collected.
func (s *DiscoveryService) Progress() domain.ProgressSnapshot {
	return s.tally.snapshot()
}

// Discover runs or resumes the scan for query.
//
//nolint:gocyclo // The scan is one state machine; splitting it hides the transitions
func (s *DiscoveryService) Discover(
	ctx context.Context, query string, opts domain.DiscoveryOptions,
) (*domain.ScanResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	checkpoint, err := s.progress.GetScanProgress(ctx, query)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get scan progress: %w", err)
	}

	result := &domain.ScanResult{Query: query, RunID: s.newRunID()}
	if checkpoint.Completed() && !opts.Force {
		logger.Info("Scan already completed (%d files). Use --skip-cache to rescan.", checkpoint.Collected)
		result.AlreadyCompleted = true
		result.Completed = true
		result.Collected = checkpoint.Collected
		return result, nil
	}

	first, err := s.searcher.SearchCode(ctx, query, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}
	result.EstimatedTotal = first.Total
	logger.Info("Total: %d", first.Total)

	var lo, collected int64
	if checkpoint != nil && !opts.Force {
		lo, collected = checkpoint.LastLo, checkpoint.Collected
		if lo > 0 {
			logger.Info("Resuming scan from size:%d (%d already collected)", lo, collected)
		}
	}

	s.tally.reset("scanning", first.Total)
	s.tally.setProgress(first.Total, int(collected))

	chunk := s.clamp(s.cfg.InitialChunk)
	empties := 0
	for lo < s.cfg.MaxSize {
		hi := min(lo+chunk, s.cfg.MaxSize)
		bucket := fmt.Sprintf("%s size:%d..%d", query, lo, hi)
		s.tally.setPhase(fmt.Sprintf("size:%d..%d", lo, hi))
		result.Buckets++

		page, err := s.searcher.SearchCode(ctx, bucket, 1, 1)
		if err != nil {
			result.Collected = collected
			return result, fmt.Errorf("count size:%d..%d: %w", lo, hi, err)
		}
		count := page.Total

		stop := false
		switch {
		case count == 0:
			empties++
			logger.Debug("  size:%d..%d = 0 (skipping)", lo, hi)
			if empties >= s.cfg.MaxConsecutiveEmpty {
				logger.Warn("%d consecutive empty ranges, stopping at size:%d; files beyond this point are not enumerated",
					empties, lo)
				result.StoppedOnEmpty = true
				stop = true
				break
			}
			lo = hi + 1
			chunk = s.clamp(chunk * 2)

		case count < s.cfg.ResultLimit || chunk == 1:
			empties = 0
			if count >= s.cfg.ResultLimit {
				logger.Warn("size:%d..%d has %d results at the smallest chunk; collecting the first %d",
					lo, hi, count, s.cfg.ResultLimit)
			} else {
				logger.Debug("  size:%d..%d = %d (collecting)", lo, hi, count)
			}

			items, err := s.collectBucket(ctx, bucket)
			if err != nil {
				result.Collected = collected
				return result, err
			}
			if err := s.recordHits(ctx, bucket, lo, hi, result.RunID, items); err != nil {
				result.Collected = collected
				return result, err
			}

			if len(items) >= s.cfg.ResultLimit && chunk > 1 {
				// The count under-reported the bucket.
				logger.Debug("    ^ hit ceiling (%d), narrowing", len(items))
				chunk = s.clamp(chunk / 2)
				break
			}

			n, err := s.files.InsertFiles(ctx, s.discovered(items))
			if err != nil {
				result.Collected = collected
				return result, fmt.Errorf("insert files: %w", err)
			}
			collected += int64(n)
			result.NewFiles += n
			logger.Debug("    ^ stored %d new (%d total)", n, collected)
			lo = hi + 1
			chunk = s.clamp(chunk * 2)

		default:
			empties = 0
			logger.Debug("  size:%d..%d = %d (narrowing)", lo, hi, count)
			chunk = s.clamp(chunk / 2)
		}

		if stop {
			break
		}
		if err := s.saveCheckpoint(ctx, query, lo, collected, false); err != nil {
			result.Collected = collected
			return result, err
		}
		s.tally.setProgress(first.Total, int(collected))
	}

	if err := s.saveCheckpoint(ctx, query, lo, collected, true); err != nil {
		result.Collected = collected
		return result, err
	}
	s.tally.setPhase("done")

	result.Completed = true
	result.Collected = collected
	logger.Info("Done. Collected %d / %d", collected, first.Total)
	return result, nil
}

// clamp keeps chunk within [1, MaxSize].
func (s *DiscoveryService) clamp(chunk int64) int64 {
	return max(1, min(chunk, s.cfg.MaxSize))
}

// collectBucket paginates one bucket. The expected count is the total
// reported by the first page response. An empty page before the expected
// count is reached is retried, since the search service occasionally returns
// empty pages under load.
func (s *DiscoveryService) collectBucket(ctx context.Context, bucket string) ([]domain.SearchItem, error) {
	var items []domain.SearchItem
	expected := -1
	emptyRetries := 0
	for page := 1; page <= s.cfg.MaxPages; {
		res, err := s.searcher.SearchCode(ctx, bucket, page, s.cfg.PerPage)
		if err != nil {
			return nil, fmt.Errorf("search %q page %d: %w", bucket, page, err)
		}
		if expected < 0 {
			expected = res.Total
		}

		if len(res.Items) == 0 {
			expectedSoFar := min(expected, page*s.cfg.PerPage)
			if len(items) >= expectedSoFar || len(items) >= expected {
				break
			}
			emptyRetries++
			if emptyRetries >= s.cfg.MaxEmptyPageRetries {
				logger.Warn("Got %d empty responses for %q, giving up on remaining pages", emptyRetries, bucket)
				break
			}
			logger.Debug("    empty page %d, expected ~%d, have %d (retry %d/%d)",
				page, expected, len(items), emptyRetries, s.cfg.MaxEmptyPageRetries)
			continue
		}

		emptyRetries = 0
		items = append(items, res.Items...)
		page++
	}
	return items, nil
}

func (s *DiscoveryService) recordHits(
	ctx context.Context, bucket string, lo, hi int64, runID string, items []domain.SearchItem,
) error {
	if len(items) == 0 {
		return nil
	}
	now := s.now()
	hits := make([]domain.SearchHit, len(items))
	for i, item := range items {
		hits[i] = domain.SearchHit{
			URL:     item.URL,
			Query:   bucket,
			SizeMin: lo,
			SizeMax: hi,
			RunID:   runID,
			HitAt:   now,
		}
	}
	if err := s.hits.AppendSearchHits(ctx, hits); err != nil {
		return fmt.Errorf("append search hits: %w", err)
	}
	return nil
}

func (s *DiscoveryService) discovered(items []domain.SearchItem) []domain.DiscoveredFile {
	now := s.now()
	files := make([]domain.DiscoveredFile, len(items))
	for i, item := range items {
		files[i] = domain.DiscoveredFile{URL: item.URL, SHA: item.SHA, Size: item.Size, DiscoveredAt: now}
	}
	return files
}

func (s *DiscoveryService) saveCheckpoint(ctx context.Context, query string, lo, collected int64, completed bool) error {
	now := s.now()
	checkpoint := domain.ScanProgress{
		Query:     query,
		LastLo:    lo,
		MaxSize:   s.cfg.MaxSize,
		Collected: collected,
		UpdatedAt: now,
	}
	if completed {
		checkpoint.CompletedAt = &now
	}
	if err := s.progress.SaveScanProgress(ctx, checkpoint); err != nil {
		return fmt.Errorf("save scan progress: %w", err)
	}
	return nil
}
