package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driving"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// Ensure MetadataService implements the interface.
var _ driving.FetchService = (*MetadataService)(nil)

// DefaultMetadataBatchSize is the number of repositories per batched query.
const DefaultMetadataBatchSize = 50

// MetadataService fetches attributes of every repository that has
// discovered files but no metadata yet.
type MetadataService struct {
	store   driven.MetadataStore
	fetcher driven.MetadataFetcher
	batcher driven.BatchFetcher
	tally   tally
}

// NewMetadataService creates a metadata service. batcher may be nil.
func NewMetadataService(
	store driven.MetadataStore,
	fetcher driven.MetadataFetcher,
	batcher driven.BatchFetcher,
) *MetadataService {
	return &MetadataService{store: store, fetcher: fetcher, batcher: batcher}
}

// Progress returns a snapshot of the running fetch.
func (s *MetadataService) Progress() domain.ProgressSnapshot {
	return s.tally.snapshot()
}

// Fetch processes every repository without metadata. Records are written
// in bulk; on cancellation the records gathered so far are still written.
func (s *MetadataService) Fetch(ctx context.Context, opts domain.FetchOptions) (*domain.FetchStats, error) {
	if opts.Batched && s.batcher == nil {
		return nil, fmt.Errorf("batched metadata fetch: %w", domain.ErrNotConfigured)
	}

	keys, err := s.store.ListReposWithoutMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending repos: %w", err)
	}
	logger.Info("Found %d repos without metadata", len(keys))
	s.tally.reset("fetching", len(keys))

	var pending []domain.RepoMetadata
	flush := func(ctx context.Context) error {
		if len(pending) == 0 {
			return nil
		}
		if err := s.store.SaveRepoMetadataBatch(ctx, pending); err != nil {
			return fmt.Errorf("save repo metadata: %w", err)
		}
		pending = pending[:0]
		return nil
	}

	if opts.Batched {
		err = s.fetchBatched(ctx, keys, opts.BatchSize, &pending, flush)
	} else {
		err = s.fetchSingular(ctx, keys, &pending, flush)
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

func (s *MetadataService) fetchSingular(
	ctx context.Context, keys []string, pending *[]domain.RepoMetadata, flush func(context.Context) error,
) error {
	for _, key := range keys {
		if ctx.Err() != nil {
			return nil
		}
		md, err := s.fetcher.GetRepoMetadata(ctx, key)
		if ctx.Err() != nil {
			return nil
		}
		switch {
		case domain.IsMissing(err):
			s.tally.count(domain.ContentNotFound)
		case err != nil:
			logger.Debug("metadata %s: %v", key, err)
			s.tally.count(domain.ContentError)
		default:
			*pending = append(*pending, *md)
			s.tally.count(domain.ContentFetched)
		}
		if len(*pending) >= flushEvery {
			if err := flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *MetadataService) fetchBatched(
	ctx context.Context, keys []string, size int, pending *[]domain.RepoMetadata, flush func(context.Context) error,
) error {
	if size <= 0 {
		size = DefaultMetadataBatchSize
	}
	startQueries := s.batcher.QueryCount()
	defer func() { s.tally.setQueries(s.batcher.QueryCount() - startQueries) }()

	for start := 0; start < len(keys); start += size {
		if ctx.Err() != nil {
			return nil
		}
		batch := keys[start:min(start+size, len(keys))]
		s.tally.setPhase(fmt.Sprintf("batch %d/%d", start/size+1, (len(keys)+size-1)/size))

		results, err := s.batcher.FetchMetadataBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("metadata batch failed: %v", err)
			for range batch {
				s.tally.count(domain.ContentError)
			}
			continue
		}

		for _, res := range results {
			switch res.Outcome {
			case domain.OutcomeOK:
				*pending = append(*pending, *res.Metadata)
				s.tally.count(domain.ContentFetched)
			case domain.OutcomeNotFound:
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
