package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ghfetch/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
)

// fileURL returns the URL of file i in repo o/r.
func fileURL(i int) string {
	return fmt.Sprintf("https://github.com/o/r/blob/main/f%d.txt", i)
}

func searchItems(from, n int) []domain.SearchItem {
	items := make([]domain.SearchItem, n)
	for i := range items {
		items[i] = domain.SearchItem{URL: fileURL(from + i), SHA: fmt.Sprintf("sha%d", from+i)}
	}
	return items
}

// seedFiles stores the given URLs as discovered files.
func seedFiles(t *testing.T, store *memory.Store, urls ...string) {
	t.Helper()
	files := make([]domain.DiscoveredFile, len(urls))
	for i, u := range urls {
		files[i] = domain.DiscoveredFile{URL: u}
	}
	_, err := store.InsertFiles(context.Background(), files)
	require.NoError(t, err)
}

func mustRef(t *testing.T, url string) domain.FileRef {
	t.Helper()
	ref, err := domain.ParseFileURL(url)
	require.NoError(t, err)
	return ref
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// fakeSearcher answers searches from a function and records each call.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	fn      func(query string, page, perPage int) (*domain.SearchPage, error)
}

func (f *fakeSearcher) SearchCode(_ context.Context, query string, page, perPage int) (*domain.SearchPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, fmt.Sprintf("%s|%d|%d", query, page, perPage))
	f.mu.Unlock()
	return f.fn(query, page, perPage)
}

func (f *fakeSearcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// countCalls returns the size-range count queries, in order.
func (f *fakeSearcher) countCalls() []string {
	var out []string
	for _, q := range f.calls() {
		if strings.HasSuffix(q, "|1|1") && strings.Contains(q, "size:") {
			out = append(out, strings.TrimSuffix(q, "|1|1"))
		}
	}
	return out
}

// fakeContentStore records writes in memory.
type fakeContentStore struct {
	mu       sync.Mutex
	existing map[string]struct{}
	written  map[string][]byte
	writeErr error
}

func newFakeContentStore(existing ...string) *fakeContentStore {
	s := &fakeContentStore{existing: make(map[string]struct{}), written: make(map[string][]byte)}
	for _, p := range existing {
		s.existing[p] = struct{}{}
	}
	return s
}

func (s *fakeContentStore) Existing(context.Context) (map[string]struct{}, error) {
	return s.existing, nil
}

func (s *fakeContentStore) Write(ref domain.FileRef, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written[ref.ContentPath()] = data
	return nil
}

func (s *fakeContentStore) data(ref domain.FileRef) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.written[ref.ContentPath()]
	return string(d), ok
}

// fakeFetcher serves the singular fetch ports from functions.
type fakeFetcher struct {
	content  func(ctx context.Context, ref domain.FileRef) (*domain.FileContent, error)
	metadata func(ctx context.Context, key string) (*domain.RepoMetadata, error)
	history  func(ctx context.Context, ref domain.FileRef) ([]domain.CommitSummary, error)
	calls    atomic.Int64
}

var (
	_ driven.ContentFetcher  = (*fakeFetcher)(nil)
	_ driven.MetadataFetcher = (*fakeFetcher)(nil)
	_ driven.HistoryFetcher  = (*fakeFetcher)(nil)
	_ driven.BatchFetcher    = (*fakeBatcher)(nil)
)

func (f *fakeFetcher) GetFileContent(ctx context.Context, ref domain.FileRef) (*domain.FileContent, error) {
	f.calls.Add(1)
	return f.content(ctx, ref)
}

func (f *fakeFetcher) GetRepoMetadata(ctx context.Context, key string) (*domain.RepoMetadata, error) {
	f.calls.Add(1)
	return f.metadata(ctx, key)
}

func (f *fakeFetcher) GetFileHistory(ctx context.Context, ref domain.FileRef) ([]domain.CommitSummary, error) {
	f.calls.Add(1)
	return f.history(ctx, ref)
}

// fakeBatcher serves batches from per-item functions, one query per batch.
type fakeBatcher struct {
	content  func(ref domain.FileRef) domain.ContentResult
	metadata func(key string) domain.MetadataResult
	history  func(ref domain.FileRef) domain.HistoryResult
	err      error
	queries  atomic.Int64
	sizes    []int
}

func (b *fakeBatcher) FetchContentBatch(_ context.Context, refs []domain.FileRef) ([]domain.ContentResult, error) {
	b.queries.Add(1)
	b.sizes = append(b.sizes, len(refs))
	if b.err != nil {
		return nil, b.err
	}
	out := make([]domain.ContentResult, len(refs))
	for i, ref := range refs {
		out[i] = b.content(ref)
		out[i].Ref = ref
	}
	return out, nil
}

func (b *fakeBatcher) FetchMetadataBatch(_ context.Context, keys []string) ([]domain.MetadataResult, error) {
	b.queries.Add(1)
	b.sizes = append(b.sizes, len(keys))
	if b.err != nil {
		return nil, b.err
	}
	out := make([]domain.MetadataResult, len(keys))
	for i, key := range keys {
		out[i] = b.metadata(key)
		out[i].RepoKey = key
	}
	return out, nil
}

func (b *fakeBatcher) FetchHistoryBatch(_ context.Context, refs []domain.FileRef) ([]domain.HistoryResult, error) {
	b.queries.Add(1)
	b.sizes = append(b.sizes, len(refs))
	if b.err != nil {
		return nil, b.err
	}
	out := make([]domain.HistoryResult, len(refs))
	for i, ref := range refs {
		out[i] = b.history(ref)
		out[i].Ref = ref
	}
	return out, nil
}

func (b *fakeBatcher) QueryCount() int64 {
	return b.queries.Load()
}
