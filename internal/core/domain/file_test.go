package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileURL(t *testing.T) {
	t.Run("parses blob url", func(t *testing.T) {
		ref, err := ParseFileURL("https://github.com/octo/hello/blob/main/src/app/main.go")
		require.NoError(t, err)
		assert.Equal(t, FileRef{Owner: "octo", Repo: "hello", Ref: "main", Path: "src/app/main.go"}, ref)
	})

	t.Run("ref is first segment after blob", func(t *testing.T) {
		ref, err := ParseFileURL("https://github.com/octo/hello/blob/abc123/a.py")
		require.NoError(t, err)
		assert.Equal(t, "abc123", ref.Ref)
		assert.Equal(t, "a.py", ref.Path)
	})

	t.Run("round trips through URL", func(t *testing.T) {
		url := "https://github.com/octo/hello/blob/main/dir/file.txt"
		ref, err := ParseFileURL(url)
		require.NoError(t, err)
		assert.Equal(t, url, ref.URL())
	})

	invalid := []string{
		"",
		"https://gitlab.com/octo/hello/blob/main/a.py",
		"https://github.com/octo/hello/tree/main/a.py",
		"https://github.com/octo/hello/blob/main",
		"https://github.com/octo",
		"https://github.com/octo/hello/blob/main/",
	}
	for _, url := range invalid {
		t.Run("rejects "+url, func(t *testing.T) {
			_, err := ParseFileURL(url)
			assert.ErrorIs(t, err, ErrInvalidFileURL)
		})
	}
}

func TestFileRef_Paths(t *testing.T) {
	ref := FileRef{Owner: "o", Repo: "r", Ref: "main", Path: "a/b.py"}

	assert.Equal(t, "o/r", ref.RepoKey())
	assert.Equal(t, "o/r/blob/main/a/b.py", ref.ContentPath())
}

func TestParseRepoKey(t *testing.T) {
	owner, repo, err := ParseRepoKey("octo/hello")
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "hello", repo)

	for _, key := range []string{"", "octo", "/hello", "octo/", "a/b/c"} {
		_, _, err := ParseRepoKey(key)
		assert.ErrorIs(t, err, ErrInvalidInput, key)
	}
}
