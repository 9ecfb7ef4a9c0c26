package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "files.db"))
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func fileURL(owner, repo, path string) string {
	return "https://github.com/" + owner + "/" + repo + "/blob/main/" + path
}

// seedFiles inserts files with the given URLs.
func seedFiles(t *testing.T, store *Store, urls ...string) {
	t.Helper()
	files := make([]domain.DiscoveredFile, len(urls))
	for i, u := range urls {
		files[i] = domain.DiscoveredFile{URL: u, SHA: "sha"}
	}
	_, err := store.FileStore().InsertFiles(context.Background(), files)
	require.NoError(t, err)
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "files.db")

	first, err := NewStore(path)
	require.NoError(t, err)
	seedFiles(t, first, fileURL("o", "r", "a.py"))
	require.NoError(t, first.Close())

	second, err := NewStore(path)
	require.NoError(t, err)
	defer second.Close()

	n, err := second.FileStore().CountFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, path, second.Path())
}

func TestFileStore_InsertFiles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	files := store.FileStore()

	size := int64(512)
	batch := []domain.DiscoveredFile{
		{URL: fileURL("o", "r", "a.py"), SHA: "aaa", Size: &size},
		{URL: fileURL("o", "r", "b.py"), SHA: "bbb"},
		{URL: fileURL("o2", "r2", "c.py"), SHA: "ccc"},
	}

	t.Run("first insert counts every file", func(t *testing.T) {
		n, err := files.InsertFiles(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("second insert of same set is a no-op", func(t *testing.T) {
		n, err := files.InsertFiles(ctx, batch)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		count, err := files.CountFiles(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("empty insert", func(t *testing.T) {
		n, err := files.InsertFiles(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("lists in insertion order", func(t *testing.T) {
		urls, err := files.ListFileURLs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{batch[0].URL, batch[1].URL, batch[2].URL}, urls)
	})
}

func TestFileStore_ListRepoKeys(t *testing.T) {
	store := setupTestStore(t)
	seedFiles(t, store,
		fileURL("beta", "two", "x.py"),
		fileURL("alpha", "one", "a.py"),
		fileURL("beta", "two", "y.py"),
		"https://example.com/not/github",
	)

	keys, err := store.FileStore().ListRepoKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"beta/two", "alpha/one"}, keys)
}

func TestScanProgressStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	progress := store.ScanProgressStore()

	t.Run("missing query", func(t *testing.T) {
		_, err := progress.GetScanProgress(ctx, "nothing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("checkpoint then complete", func(t *testing.T) {
		require.NoError(t, progress.SaveScanProgress(ctx, domain.ScanProgress{
			Query: "filename:a.py", LastLo: 20001, MaxSize: 1_000_000, Collected: 42,
		}))

		got, err := progress.GetScanProgress(ctx, "filename:a.py")
		require.NoError(t, err)
		assert.Equal(t, int64(20001), got.LastLo)
		assert.Equal(t, int64(1_000_000), got.MaxSize)
		assert.Equal(t, int64(42), got.Collected)
		assert.False(t, got.Completed())
		assert.False(t, got.UpdatedAt.IsZero())

		done := time.Now()
		require.NoError(t, progress.SaveScanProgress(ctx, domain.ScanProgress{
			Query: "filename:a.py", LastLo: 1_000_001, MaxSize: 1_000_000, Collected: 50, CompletedAt: &done,
		}))

		got, err = progress.GetScanProgress(ctx, "filename:a.py")
		require.NoError(t, err)
		assert.True(t, got.Completed())
		assert.Equal(t, int64(50), got.Collected)
		assert.WithinDuration(t, done, *got.CompletedAt, time.Second)
	})
}

func TestSearchHitStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	hits := store.SearchHitStore()

	a := fileURL("o", "r", "a.py")
	b := fileURL("o", "r", "b.py")
	require.NoError(t, hits.AppendSearchHits(ctx, []domain.SearchHit{
		{URL: a, Query: "q size:0..100", SizeMin: 0, SizeMax: 100, RunID: "run-1"},
		{URL: a, Query: "q size:0..100", SizeMin: 0, SizeMax: 100, RunID: "run-1"},
		{URL: a, Query: "q size:0..50", SizeMin: 0, SizeMax: 50, RunID: "run-2"},
		{URL: b, Query: "q size:0..100", SizeMin: 0, SizeMax: 100, RunID: "run-1"},
	}))
	require.NoError(t, hits.AppendSearchHits(ctx, nil))

	multi, err := hits.ListMultiRangeHits(ctx)
	require.NoError(t, err)
	require.Len(t, multi, 1)
	assert.Equal(t, a, multi[0].URL)
	assert.Equal(t, []domain.SizeRange{{Min: 0, Max: 50}, {Min: 0, Max: 100}}, multi[0].Ranges)
}

func TestContentStatusStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a, b, c := fileURL("o", "r", "a.py"), fileURL("o", "r", "b.py"), fileURL("o", "r", "c.py")
	seedFiles(t, store, a, b, c)
	status := store.ContentStatusStore()

	pending, err := status.ListFilesWithoutContentStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c}, pending)

	require.NoError(t, status.SaveContentStatuses(ctx, []domain.ContentStatusRecord{
		{URL: a, Status: domain.ContentFetched},
		{URL: c, Status: domain.ContentError},
	}))

	pending, err = status.ListFilesWithoutContentStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, pending)

	t.Run("upsert replaces status", func(t *testing.T) {
		require.NoError(t, status.SaveContentStatuses(ctx, []domain.ContentStatusRecord{
			{URL: c, Status: domain.ContentNotFound},
		}))
		var got string
		require.NoError(t, store.db.QueryRow(`SELECT status FROM content_status WHERE url = ?`, c).Scan(&got))
		assert.Equal(t, "not_found", got)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		err := status.SaveContentStatuses(ctx, []domain.ContentStatusRecord{{URL: b, Status: "maybe"}})
		assert.Error(t, err)
	})
}

func TestMetadataStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	seedFiles(t, store, fileURL("o", "r", "a.py"), fileURL("o2", "r2", "b.py"))
	metadata := store.MetadataStore()

	pending, err := metadata.ListReposWithoutMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"o/r", "o2/r2"}, pending)

	require.NoError(t, metadata.SaveRepoMetadataBatch(ctx, []domain.RepoMetadata{
		{RepoKey: "o/r", Stars: 10, Forks: 2, Watchers: 3, Language: "Python",
			Topics: []string{"ml", "data"}, DefaultBranch: "main", License: "MIT"},
	}))

	pending, err = metadata.ListReposWithoutMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"o2/r2"}, pending)

	t.Run("round trip", func(t *testing.T) {
		got, err := metadata.GetRepoMetadata(ctx, "o/r")
		require.NoError(t, err)
		assert.Equal(t, 10, got.Stars)
		assert.Equal(t, []string{"ml", "data"}, got.Topics)
		assert.Equal(t, "MIT", got.License)
		assert.Empty(t, got.Description)
	})

	t.Run("upsert replaces", func(t *testing.T) {
		require.NoError(t, metadata.SaveRepoMetadata(ctx, domain.RepoMetadata{RepoKey: "o/r", Stars: 11}))
		got, err := metadata.GetRepoMetadata(ctx, "o/r")
		require.NoError(t, err)
		assert.Equal(t, 11, got.Stars)
		assert.Empty(t, got.Topics)
		assert.Empty(t, got.License)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := metadata.GetRepoMetadata(ctx, "no/such")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHistoryStore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	a, b := fileURL("o", "r", "a.py"), fileURL("o", "r", "b.py")
	seedFiles(t, store, a, b)
	history := store.HistoryStore()

	commits := []domain.CommitSummary{
		{SHA: "abc1234", Author: "Ada", Date: "2024-01-01T00:00:00Z", Message: "init"},
	}
	require.NoError(t, history.SaveFileHistoryBatch(ctx, []domain.FileHistory{{URL: a, Commits: commits}}))

	pending, err := history.ListFilesWithoutHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, pending)

	got, err := history.GetFileHistory(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, commits, got.Commits)

	require.NoError(t, history.SaveFileHistory(ctx, domain.FileHistory{URL: b}))
	got, err = history.GetFileHistory(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, got.Commits)

	_, err = history.GetFileHistory(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
