package services

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// Ensure ContentService implements the interface.
var _ driving.FetchService = (*ContentService)(nil)

const (
	// DefaultWorkers is the size of the singular-path worker pool.
	DefaultWorkers = 10

	// DefaultContentBatchSize is the number of files per batched query.
	DefaultContentBatchSize = 50

	// flushEvery bounds the status records held in memory between writes.
	flushEvery = 500
)

// ContentService downloads the content of every file without a content
// status and records the terminal outcome of each.
type ContentService struct {
	statuses driven.ContentStatusStore
	store    driven.ContentStore
	fetcher  driven.ContentFetcher
	batcher  driven.BatchFetcher
	workers  int
	tally    tally
}

// NewContentService creates a content service. batcher may be nil, in which
// case only the singular path is available.
func NewContentService(
	statuses driven.ContentStatusStore,
	store driven.ContentStore,
	fetcher driven.ContentFetcher,
	batcher driven.BatchFetcher,
	workers int,
) *ContentService {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &ContentService{
		statuses: statuses,
		store:    store,
		fetcher:  fetcher,
		batcher:  batcher,
		workers:  workers,
	}
}

// Progress returns a snapshot of the running fetch.
func (s *ContentService) Progress() domain.ProgressSnapshot {
	return s.tally.snapshot()
}

// Fetch processes every file without a content status. Files already
// present in the content store are recorded as fetched without a request.
// On cancellation, outcomes gathered so far are persisted before returning.
func (s *ContentService) Fetch(ctx context.Context, opts domain.FetchOptions) (*domain.FetchStats, error) {
	if opts.Batched && s.batcher == nil {
		return nil, fmt.Errorf("batched content fetch: %w", domain.ErrNotConfigured)
	}

	urls, err := s.statuses.ListFilesWithoutContentStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending files: %w", err)
	}
	s.tally.reset("scanning content dir", len(urls))

	existing, err := s.store.Existing(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan content dir: %w", err)
	}

	pending := make([]domain.FileRef, 0, len(urls))
	for _, url := range urls {
		ref, err := domain.ParseFileURL(url)
		if err != nil {
			logger.Debug("skipping %s: %v", url, err)
			s.tally.recordStatus(url, domain.ContentError)
			continue
		}
		if _, ok := existing[ref.ContentPath()]; ok {
			s.tally.recordSkipped(url)
			continue
		}
		pending = append(pending, ref)
	}

	// Files found on disk are recorded before any fetching starts.
	if err := s.flush(ctx, 0); err != nil {
		return s.tally.result(), err
	}

	if opts.Batched {
		s.fetchBatched(ctx, pending, opts.BatchSize)
	} else {
		s.tally.setPhase("fetching")
		s.fetchSingular(ctx, pending)
	}

	// Flush with a context that survives cancellation of ctx.
	if err := s.flush(context.WithoutCancel(ctx), 0); err != nil {
		return s.tally.result(), err
	}
	s.tally.setPhase("done")
	return s.tally.result(), ctx.Err()
}

// fetchSingular fetches refs through the worker pool. Items still in flight
// when ctx is cancelled are not recorded and stay pending.
func (s *ContentService) fetchSingular(ctx context.Context, refs []domain.FileRef) {
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			content, err := s.fetcher.GetFileContent(ctx, ref)
			if ctx.Err() != nil {
				return nil
			}
			s.tally.recordStatus(ref.URL(), s.save(ref, content, err))
			if err := s.flush(ctx, flushEvery); err != nil {
				logger.Warn("flush content status: %v", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// fetchBatched processes refs in sequential batches. Truncated items are
// fetched one at a time after the last batch.
func (s *ContentService) fetchBatched(ctx context.Context, refs []domain.FileRef, size int) {
	if size <= 0 {
		size = DefaultContentBatchSize
	}
	startQueries := s.batcher.QueryCount()
	defer func() { s.tally.setQueries(s.batcher.QueryCount() - startQueries) }()

	var truncated []domain.FileRef
	for start := 0; start < len(refs); start += size {
		if ctx.Err() != nil {
			return
		}
		batch := refs[start:min(start+size, len(refs))]
		s.tally.setPhase(fmt.Sprintf("batch %d/%d", start/size+1, (len(refs)+size-1)/size))

		results, err := s.batcher.FetchContentBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("content batch failed: %v", err)
			for _, ref := range batch {
				s.tally.recordStatus(ref.URL(), domain.ContentError)
			}
		}

		for _, res := range results {
			switch res.Outcome {
			case domain.OutcomeTruncated:
				truncated = append(truncated, res.Ref)
				continue
			case domain.OutcomeOK:
				s.tally.recordStatus(res.Ref.URL(), s.save(res.Ref, res.Content, nil))
			case domain.OutcomeNotFound, domain.OutcomeNoContent:
				s.tally.recordStatus(res.Ref.URL(), domain.ContentNotFound)
			default:
				s.tally.recordStatus(res.Ref.URL(), domain.ContentError)
			}
		}

		if err := s.flush(ctx, 0); err != nil {
			logger.Warn("flush content status: %v", err)
		}
	}

	if len(truncated) > 0 && ctx.Err() == nil {
		s.tally.setPhase(fmt.Sprintf("fallback (%d truncated)", len(truncated)))
		s.tally.addFallback(len(truncated))
		s.fetchSingular(ctx, truncated)
	}
}

// save writes fetched content and maps the fetch outcome to a status.
func (s *ContentService) save(ref domain.FileRef, content *domain.FileContent, err error) domain.ContentStatus {
	switch {
	case domain.IsMissing(err):
		return domain.ContentNotFound
	case err != nil:
		logger.Debug("fetch %s: %v", ref.URL(), err)
		return domain.ContentError
	case content == nil:
		return domain.ContentNotFound
	}

	data, err := base64.StdEncoding.DecodeString(content.Content)
	if err != nil {
		logger.Debug("decode %s: %v", ref.URL(), err)
		return domain.ContentError
	}
	if err := s.store.Write(ref, data); err != nil {
		logger.Warn("write %s: %v", ref.ContentPath(), err)
		return domain.ContentError
	}
	return domain.ContentFetched
}

// flush persists queued status records once at least minimum are queued.
func (s *ContentService) flush(ctx context.Context, minimum int) error {
	records := s.tally.drain(minimum)
	if len(records) == 0 {
		return nil
	}
	if err := s.statuses.SaveContentStatuses(ctx, records); err != nil {
		s.tally.requeue(records)
		return fmt.Errorf("save content statuses: %w", err)
	}
	return nil
}
