package memory

import (
	"context"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// ListFilesWithoutContentStatus returns file URLs with no status record.
func (s *Store) ListFilesWithoutContentStatus(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var urls []string
	for _, f := range s.files {
		if _, ok := s.status[f.URL]; !ok {
			urls = append(urls, f.URL)
		}
	}
	return urls, nil
}

// SaveContentStatuses upserts status records.
func (s *Store) SaveContentStatuses(_ context.Context, records []domain.ContentStatusRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["SaveContentStatuses"]++
	for _, r := range records {
		s.status[r.URL] = r.Status
	}
	return nil
}

// ContentStatus returns the recorded status for url.
func (s *Store) ContentStatus(url string) (domain.ContentStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[url]
	return st, ok
}

// ListReposWithoutMetadata returns repo keys with no metadata record.
func (s *Store) ListReposWithoutMetadata(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repoKeys(func(key string) bool {
		_, ok := s.metadata[key]
		return !ok
	}), nil
}

// SaveRepoMetadata upserts one record.
func (s *Store) SaveRepoMetadata(ctx context.Context, metadata domain.RepoMetadata) error {
	return s.SaveRepoMetadataBatch(ctx, []domain.RepoMetadata{metadata})
}

// SaveRepoMetadataBatch upserts records.
func (s *Store) SaveRepoMetadataBatch(_ context.Context, metadata []domain.RepoMetadata) error {
	if len(metadata) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["SaveRepoMetadataBatch"]++
	for _, m := range metadata {
		s.metadata[m.RepoKey] = m
	}
	return nil
}

// GetRepoMetadata returns the record for a repo key.
func (s *Store) GetRepoMetadata(_ context.Context, repoKey string) (*domain.RepoMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metadata[repoKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

// ListFilesWithoutHistory returns file URLs with no history record.
func (s *Store) ListFilesWithoutHistory(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var urls []string
	for _, f := range s.files {
		if _, ok := s.history[f.URL]; !ok {
			urls = append(urls, f.URL)
		}
	}
	return urls, nil
}

// SaveFileHistory upserts one record.
func (s *Store) SaveFileHistory(ctx context.Context, history domain.FileHistory) error {
	return s.SaveFileHistoryBatch(ctx, []domain.FileHistory{history})
}

// SaveFileHistoryBatch upserts records.
func (s *Store) SaveFileHistoryBatch(_ context.Context, histories []domain.FileHistory) error {
	if len(histories) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["SaveFileHistoryBatch"]++
	for _, h := range histories {
		s.history[h.URL] = h
	}
	return nil
}

// GetFileHistory returns the record for a file URL.
func (s *Store) GetFileHistory(_ context.Context, url string) (*domain.FileHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.history[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &h, nil
}
