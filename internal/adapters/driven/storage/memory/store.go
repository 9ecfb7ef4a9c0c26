// Package memory provides in-memory implementations of the store ports.
// It backs service tests and dry runs; nothing is persisted.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
)

// Ensure Store implements the interfaces.
var (
	_ driven.FileStore          = (*Store)(nil)
	_ driven.SearchHitStore     = (*Store)(nil)
	_ driven.ScanProgressStore  = (*Store)(nil)
	_ driven.ContentStatusStore = (*Store)(nil)
	_ driven.MetadataStore      = (*Store)(nil)
	_ driven.HistoryStore       = (*Store)(nil)
)

// Store is an in-memory implementation of every store port.
type Store struct {
	mu       sync.RWMutex
	files    []domain.DiscoveredFile
	fileIdx  map[string]int
	hits     []domain.SearchHit
	progress map[string]domain.ScanProgress
	status   map[string]domain.ContentStatus
	metadata map[string]domain.RepoMetadata
	history  map[string]domain.FileHistory

	// BatchWrites counts bulk write calls, keyed by method name.
	batchWrites map[string]int
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		fileIdx:     make(map[string]int),
		progress:    make(map[string]domain.ScanProgress),
		status:      make(map[string]domain.ContentStatus),
		metadata:    make(map[string]domain.RepoMetadata),
		history:     make(map[string]domain.FileHistory),
		batchWrites: make(map[string]int),
	}
}

// BatchWrites returns how many times the named write method was called.
func (s *Store) BatchWrites(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batchWrites[method]
}

// InsertFiles stores files, ignoring URLs that already exist.
func (s *Store) InsertFiles(_ context.Context, files []domain.DiscoveredFile) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["InsertFiles"]++

	inserted := 0
	for _, f := range files {
		if _, ok := s.fileIdx[f.URL]; ok {
			continue
		}
		s.fileIdx[f.URL] = len(s.files)
		s.files = append(s.files, f)
		inserted++
	}
	return inserted, nil
}

// ListFileURLs returns every known file URL in insertion order.
func (s *Store) ListFileURLs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	urls := make([]string, len(s.files))
	for i, f := range s.files {
		urls[i] = f.URL
	}
	return urls, nil
}

// CountFiles returns the number of known files.
func (s *Store) CountFiles(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files), nil
}

// ListRepoKeys returns distinct owner/repo keys in first-seen order.
func (s *Store) ListRepoKeys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repoKeys(func(string) bool { return true }), nil
}

func (s *Store) repoKeys(keep func(key string) bool) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, f := range s.files {
		key, ok := repoKeyFromURL(f.URL)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		if keep(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

func repoKeyFromURL(url string) (string, bool) {
	rest, ok := strings.CutPrefix(url, "https://github.com/")
	if !ok {
		return "", false
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}

// AppendSearchHits appends hits.
func (s *Store) AppendSearchHits(_ context.Context, hits []domain.SearchHit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["AppendSearchHits"]++
	s.hits = append(s.hits, hits...)
	return nil
}

// SearchHits returns a copy of every recorded hit.
func (s *Store) SearchHits() []domain.SearchHit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SearchHit(nil), s.hits...)
}

// ListMultiRangeHits returns files returned for more than one distinct size range.
func (s *Store) ListMultiRangeHits(_ context.Context) ([]domain.MultiRangeHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ranges := make(map[string]map[domain.SizeRange]bool)
	var order []string
	for _, h := range s.hits {
		if ranges[h.URL] == nil {
			ranges[h.URL] = make(map[domain.SizeRange]bool)
			order = append(order, h.URL)
		}
		ranges[h.URL][domain.SizeRange{Min: h.SizeMin, Max: h.SizeMax}] = true
	}
	sort.Strings(order)

	var out []domain.MultiRangeHit
	for _, url := range order {
		if len(ranges[url]) < 2 {
			continue
		}
		hit := domain.MultiRangeHit{URL: url}
		for r := range ranges[url] {
			hit.Ranges = append(hit.Ranges, r)
		}
		sort.Slice(hit.Ranges, func(i, j int) bool {
			if hit.Ranges[i].Min != hit.Ranges[j].Min {
				return hit.Ranges[i].Min < hit.Ranges[j].Min
			}
			return hit.Ranges[i].Max < hit.Ranges[j].Max
		})
		out = append(out, hit)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Ranges) > len(out[j].Ranges) })
	return out, nil
}

// GetScanProgress returns the checkpoint for a query.
func (s *Store) GetScanProgress(_ context.Context, query string) (*domain.ScanProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[query]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

// SaveScanProgress creates or replaces the checkpoint for progress.Query.
func (s *Store) SaveScanProgress(_ context.Context, progress domain.ScanProgress) error {
	if progress.Query == "" {
		return fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchWrites["SaveScanProgress"]++
	s.progress[progress.Query] = progress
	return nil
}
