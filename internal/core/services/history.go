package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// Ensure HistoryService implements the interface.
var _ driving.FetchService = (*HistoryService)(nil)

// DefaultHistoryBatchSize is the number of files per batched history query.
const DefaultHistoryBatchSize = 20

// HistoryService fetches the recent commit history of every file that has
// none recorded.
type HistoryService struct {
	store   driven.HistoryStore
	fetcher driven.HistoryFetcher
	batcher driven.BatchFetcher
	tally   tally
}

// NewHistoryService creates a history service. batcher may be nil.
func NewHistoryService(
	store driven.HistoryStore,
	fetcher driven.HistoryFetcher,
	batcher driven.BatchFetcher,
) *HistoryService {
	return &HistoryService{store: store, fetcher: fetcher, batcher: batcher}
}

// Progress returns a snapshot of the running fetch.
func (s *HistoryService) Progress() domain.ProgressSnapshot {
	return s.tally.snapshot()
}

// Fetch processes every file without history.
func (s *HistoryService) Fetch(ctx context.Context, opts domain.FetchOptions) (*domain.FetchStats, error) {
	if opts.Batched && s.batcher == nil {
		return nil, fmt.Errorf("batched history fetch: %w", domain.ErrNotConfigured)
	}

	urls, err := s.store.ListFilesWithoutHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending files: %w", err)
	}
	logger.Info("Found %d files without history", len(urls))
	s.tally.reset("fetching", len(urls))

	refs := make([]domain.FileRef, 0, len(urls))
	for _, url := range urls {
		ref, err := domain.ParseFileURL(url)
		if err != nil {
			logger.Debug("skipping %s: %v", url, err)
			s.tally.count(domain.ContentError)
			continue
		}
		refs = append(refs, ref)
	}

	var pending []domain.FileHistory
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.store.SaveFileHistoryBatch(ctx, pending); err != nil {
			return fmt.Errorf("save file history: %w", err)
		}
		pending = pending[:0]
		return nil
	}
	add := func(ref domain.FileRef, commits []domain.CommitSummary) {
		if commits == nil {
			commits = []domain.CommitSummary{}
		}
		pending = append(pending, domain.FileHistory{URL: ref.URL(), Commits: commits})
		s.tally.count(domain.ContentFetched)
	}

	if opts.Batched {
		err = s.fetchBatched(ctx, refs, opts.BatchSize, add, flush)
	} else {
		err = s.fetchSingular(ctx, refs, add, func(ctx context.Context) error {
			if len(pending) < flushEvery {
				return nil
			}
			return flush(ctx)
		})
	}
	if ferr := flush(context.WithoutCancel(ctx)); ferr != nil && err == nil {
		err = ferr
	}
	if err == nil {
		err = ctx.Err()
	}
	s.tally.setPhase("done")
	return s.tally.result(), err
}

func (s *HistoryService) fetchSingular(
	ctx context.Context,
	refs []domain.FileRef,
	add func(domain.FileRef, []domain.CommitSummary),
	maybeFlush func(context.Context) error,
) error {
	for _, ref := range refs {
		if ctx.Err() != nil {
			return nil
		}
		commits, err := s.fetcher.GetFileHistory(ctx, ref)
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case domain.IsMissing(err):
			s.tally.count(domain.ContentNotFound)
		case err != nil:
			logger.Debug("history %s: %v", ref.URL(), err)
			s.tally.count(domain.ContentError)
		default:
			add(ref, commits)
		}
		if err := maybeFlush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *HistoryService) fetchBatched(
	ctx context.Context,
	refs []domain.FileRef,
	size int,
	add func(domain.FileRef, []domain.CommitSummary),
	flush func(context.Context) error,
) error {
	if size <= 0 {
		size = DefaultHistoryBatchSize
	}
	startQueries := s.batcher.QueryCount()
	defer func() { s.tally.setQueries(s.batcher.QueryCount() - startQueries) }()

	for start := 0; start < len(refs); start += size {
		if ctx.Err() != nil {
			return nil
		}
		batch := refs[start:min(start+size, len(refs))]
		s.tally.setPhase(fmt.Sprintf("batch %d/%d", start/size+1, (len(refs)+size-1)/size))

		results, err := s.batcher.FetchHistoryBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("history batch failed: %v", err)
			for range batch {
				s.tally.count(domain.ContentError)
			}
			continue
		}

		for _, res := range results {
			switch res.Outcome {
			case domain.OutcomeOK:
				add(res.Ref, res.Commits)
			case domain.OutcomeNotFound, domain.OutcomeBadRef, domain.OutcomeNoHistory:
				s.tally.count(domain.ContentNotFound)
			default:
				s.tally.count(domain.ContentError)
			}
		}
		if err := flush(ctx); err != nil {
			return err
		}
	}
	return nil
}
