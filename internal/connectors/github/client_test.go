package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
	"github.com/custodia-labs/ghfetch/internal/retry"
)

var fileRef = domain.FileRef{Owner: "o", Repo: "r", Ref: "main", Path: "src/a.py"}

func TestClient_SearchCode(t *testing.T) {
	t.Run("returns items and caches the page", func(t *testing.T) {
		var gotQuery string
		c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/search/code", r.URL.Path)
			gotQuery = r.URL.Query().Get("q")
			writeJSON(w, http.StatusOK, `{"total_count": 2, "items": [
				{"html_url": "https://github.com/o/r/blob/main/a.py", "sha": "s1"},
				{"html_url": "https://github.com/o/r/blob/main/b.py", "sha": "s2"}]}`)
		})

		page, err := c.SearchCode(context.Background(), "language:python+size:1..2", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, "language:python size:1..2", gotQuery)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Items, 2)
		assert.Equal(t, "https://github.com/o/r/blob/main/a.py", page.Items[0].URL)
		assert.Equal(t, "s2", page.Items[1].SHA)
		assert.Nil(t, page.Items[0].Size)

		_, err = c.SearchCode(context.Background(), "language:python+size:1..2", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("unprocessable query is an empty uncached page", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnprocessableEntity, `{"message": "Validation Failed"}`)
		})

		page, err := c.SearchCode(context.Background(), "bad", 1, 100)
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Items)
		assert.False(t, cache.has(searchEndpoint, map[string]any{"q": "bad", "per_page": 100, "page": 1}))
	})

	t.Run("empty later page is not cached", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"total_count": 500, "items": []}`)
		})

		page, err := c.SearchCode(context.Background(), "q", 3, 100)
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.False(t, cache.has(searchEndpoint, map[string]any{"q": "q", "per_page": 100, "page": 3}))
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var n int
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			n++
			if n < 3 {
				writeJSON(w, http.StatusBadGateway, `{"message": "bad gateway"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"total_count": 0, "items": []}`)
		})

		_, err := c.SearchCode(context.Background(), "q", 1, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.Stats().Retries)
		assert.Equal(t, int64(3), c.Stats().Requests)
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{"message": "boom"}`)
		})

		_, err := c.SearchCode(context.Background(), "q", 1, 100)
		require.Error(t, err)
		assert.True(t, retry.IsExhausted(err))
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("rate limits wait without spending retries", func(t *testing.T) {
		var n int
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			n++
			if n <= 4 {
				w.Header().Set(HeaderRetryAfter, "0")
				writeJSON(w, http.StatusTooManyRequests, `{"message": "slow down"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"total_count": 0, "items": []}`)
		})

		_, err := c.SearchCode(context.Background(), "q", 1, 100)
		require.NoError(t, err)
		stats := c.Stats()
		assert.Equal(t, int64(4), stats.RateLimitHits)
		assert.Zero(t, stats.Retries)
	})

	t.Run("stats report the remaining pause", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		assert.Zero(t, c.Stats().RateLimitWait)

		c.RateLimiter().PauseUntil(time.Now().Add(2 * time.Minute))
		stats := c.Stats()
		assert.Greater(t, stats.RateLimitWait, time.Minute)
		assert.False(t, stats.RateLimitedUntil.IsZero())
	})
}

func TestClient_GetFileContent(t *testing.T) {
	t.Run("returns base64 content", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/o/r/contents/src/a.py", r.URL.Path)
			assert.Equal(t, "main", r.URL.Query().Get("ref"))
			writeJSON(w, http.StatusOK, `{"type": "file", "encoding": "base64",
				"content": "aGVs\nbG8=\n", "sha": "abc", "size": 5, "name": "a.py", "path": "src/a.py"}`)
		})

		content, err := c.GetFileContent(context.Background(), fileRef)
		require.NoError(t, err)
		assert.Equal(t, "aGVsbG8=", content.Content)
		assert.Equal(t, "base64", content.Encoding)
		assert.Equal(t, 5, content.Size)
		assert.Equal(t, "abc", content.SHA)
	})

	t.Run("wrapped content is kept encoded and decodes once", func(t *testing.T) {
		text := "print('hello, world')\n# a longer line so the payload wraps\n"
		enc := base64.StdEncoding.EncodeToString([]byte(text))
		wrapped := enc[:20] + `\n` + enc[20:40] + `\n` + enc[40:] + `\n`
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"type": "file", "encoding": "base64",
				"content": "`+wrapped+`", "size": 59, "path": "src/a.py"}`)
		})

		content, err := c.GetFileContent(context.Background(), fileRef)
		require.NoError(t, err)
		assert.Equal(t, enc, content.Content)
		decoded, err := base64.StdEncoding.DecodeString(content.Content)
		require.NoError(t, err)
		assert.Equal(t, text, string(decoded))
		assert.Equal(t, enc, cache.entry(t, contentsEndpoint, contentParams(fileRef))["content"])
	})

	t.Run("not found is cached", func(t *testing.T) {
		c, cache, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
		})

		_, err := c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, "not_found", cache.entry(t, contentsEndpoint, contentParams(fileRef))["error"])

		_, err = c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("directory is not found and not cached", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `[{"type": "file", "name": "x.py", "path": "src/a.py/x.py"}]`)
		})

		_, err := c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, err, ErrIsDirectory)
		assert.False(t, cache.has(contentsEndpoint, contentParams(fileRef)))
	})

	t.Run("relative symlink is followed", func(t *testing.T) {
		link := domain.FileRef{Owner: "o", Repo: "r", Ref: "main", Path: "docs/link.py"}
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/repos/o/r/contents/docs/link.py":
				writeJSON(w, http.StatusOK, `{"type": "symlink", "target": "../src/a.py", "name": "link.py", "path": "docs/link.py"}`)
			case "/repos/o/r/contents/src/a.py":
				writeJSON(w, http.StatusOK, `{"type": "file", "encoding": "base64", "content": "aGk=", "size": 2, "path": "src/a.py"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
			}
		})

		content, err := c.GetFileContent(context.Background(), link)
		require.NoError(t, err)
		assert.Equal(t, "aGk=", content.Content)
		assert.Equal(t, "src/a.py", content.Path)
		assert.Equal(t, "aGk=", cache.entry(t, contentsEndpoint, contentParams(link))["content"])
	})

	t.Run("absolute symlink is unresolvable", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"type": "symlink", "target": "/etc/passwd", "path": "src/a.py"}`)
		})

		_, err := c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrUnresolvableSymlink)
		assert.Equal(t, "unresolvable_symlink", cache.entry(t, contentsEndpoint, contentParams(fileRef))["error"])
	})

	t.Run("symlink escaping the repository is unresolvable", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"type": "symlink", "target": "../../outside", "path": "src/a.py"}`)
		})

		_, err := c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrUnresolvableSymlink)
	})

	t.Run("file without content is cached as no content", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"type": "file", "size": 0, "path": "src/a.py"}`)
		})

		_, err := c.GetFileContent(context.Background(), fileRef)
		assert.ErrorIs(t, err, domain.ErrNoContent)
		assert.Equal(t, "no_content", cache.entry(t, contentsEndpoint, contentParams(fileRef))["error"])
	})

	t.Run("cached content is served without a request", func(t *testing.T) {
		c, cache, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})
		require.NoError(t, cache.Set(contentsEndpoint, contentParams(fileRef), map[string]any{
			"content": base64.StdEncoding.EncodeToString([]byte("x")), "encoding": "base64", "size": 1,
		}))

		content, err := c.GetFileContent(context.Background(), fileRef)
		require.NoError(t, err)
		assert.Equal(t, "eA==", content.Content)
		assert.Zero(t, calls.Load())
	})
}

func TestClient_GetRepoMetadata(t *testing.T) {
	t.Run("maps repository fields", func(t *testing.T) {
		c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/o/r", r.URL.Path)
			writeJSON(w, http.StatusOK, `{"stargazers_count": 10, "forks_count": 2, "subscribers_count": 3,
				"watchers_count": 10, "language": "Go", "topics": ["cli", "search"],
				"created_at": "2020-01-02T03:04:05Z", "pushed_at": "2024-05-06T07:08:09Z",
				"default_branch": "main", "license": {"spdx_id": "MIT"}, "description": "a repo"}`)
		})

		md, err := c.GetRepoMetadata(context.Background(), "o/r")
		require.NoError(t, err)
		assert.Equal(t, "o/r", md.RepoKey)
		assert.Equal(t, 10, md.Stars)
		assert.Equal(t, 2, md.Forks)
		assert.Equal(t, 3, md.Watchers)
		assert.Equal(t, "Go", md.Language)
		assert.Equal(t, []string{"cli", "search"}, md.Topics)
		assert.Equal(t, "2020-01-02T03:04:05Z", md.CreatedAt)
		assert.Empty(t, md.UpdatedAt)
		assert.Equal(t, "MIT", md.License)
		assert.Equal(t, "main", md.DefaultBranch)
	})

	t.Run("missing repository", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
		})

		_, err := c.GetRepoMetadata(context.Background(), "o/gone")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.True(t, cache.has(metadataEndpoint, metadataParams("o/gone")))
	})

	t.Run("invalid key", func(t *testing.T) {
		c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := c.GetRepoMetadata(context.Background(), "nope")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Zero(t, calls.Load())
	})
}

func TestClient_GetFileHistory(t *testing.T) {
	c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/commits", r.URL.Path)
		assert.Equal(t, "src/a.py", r.URL.Query().Get("path"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(w, http.StatusOK, `[{"sha": "abcdef0123456789", "commit": {
			"author": {"name": "Ann", "date": "2024-01-01T00:00:00Z"},
			"committer": {"name": "Bot", "date": "2024-01-02T00:00:00Z"},
			"message": "fix parser\n\nlong body"}}]`)
	})

	commits, err := c.GetFileHistory(context.Background(), fileRef)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "abcdef0", commits[0].SHA)
	assert.Equal(t, "Ann", commits[0].Author)
	assert.Equal(t, "2024-01-02T00:00:00Z", commits[0].Date)
	assert.Equal(t, "fix parser", commits[0].Message)
	assert.True(t, cache.has(historyEndpoint, historyParams(fileRef)))
}

func TestClient_Call(t *testing.T) {
	t.Run("passes through status, body and link", func(t *testing.T) {
		c, cache, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/repos/o/r/issues", r.URL.Path)
			assert.Equal(t, "open", r.URL.Query().Get("state"))
			w.Header().Set("Link", `<https://api.github.com/repos/o/r/issues?page=2>; rel="next"`)
			w.Header().Set("ETag", `"v1"`)
			writeJSON(w, http.StatusOK, `[{"number": 1}]`)
		})

		req := domain.APIRequest{Endpoint: "/repos/o/r/issues", Params: map[string]string{"state": "open"}}
		resp, err := c.Call(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.JSONEq(t, `[{"number": 1}]`, string(resp.Body))
		assert.Equal(t, `"v1"`, resp.ETag)
		assert.Equal(t, "https://api.github.com/repos/o/r/issues?page=2", resp.Next)
		assert.True(t, cache.has("repos/o/r/issues", map[string]any{"state": "open"}))

		_, err = c.Call(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("client errors come back as responses", func(t *testing.T) {
		c, cache, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, `{"message": "Not Found"}`)
		})

		resp, err := c.Call(context.Background(), domain.APIRequest{Endpoint: "repos/o/missing"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.Status)
		assert.Contains(t, string(resp.Body), "Not Found")
		assert.False(t, cache.has("repos/o/missing", map[string]any{}))
	})

	t.Run("non-GET requests are never cached", func(t *testing.T) {
		c, _, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, http.StatusCreated, `{"ok": true}`)
		})

		req := domain.APIRequest{Method: "post", Endpoint: "repos/o/r/issues", Params: map[string]string{"title": "t"}}
		for range 2 {
			resp, err := c.Call(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusCreated, resp.Status)
		}
		assert.Equal(t, int64(2), calls.Load())
	})
}
