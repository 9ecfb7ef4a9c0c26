package filecache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	return c
}

func TestKey(t *testing.T) {
	t.Run("parameter order does not matter", func(t *testing.T) {
		a := map[string]any{}
		a["owner"] = "o"
		a["repo"] = "r"
		a["path"] = "a.py"
		b := map[string]any{}
		b["path"] = "a.py"
		b["repo"] = "r"
		b["owner"] = "o"

		assert.Equal(t, Key("contents", a), Key("contents", b))
	})

	t.Run("endpoint changes key", func(t *testing.T) {
		params := map[string]any{"repo_key": "o/r"}
		assert.NotEqual(t, Key("repo_metadata", params), Key("file_history", params))
	})

	t.Run("values change key", func(t *testing.T) {
		assert.NotEqual(t,
			Key("search/code", map[string]any{"page": 1}),
			Key("search/code", map[string]any{"page": 2}))
	})

	t.Run("fixed length hex", func(t *testing.T) {
		k := Key("x", nil)
		assert.Len(t, k, keyLength)
		assert.Regexp(t, "^[0-9a-f]+$", k)
	})

	t.Run("nil params hash like empty params", func(t *testing.T) {
		assert.Equal(t, "2f61ad2923f5a9cf", Key("x", nil))
		assert.Equal(t, Key("x", nil), Key("x", map[string]any{}))
	})

	t.Run("matches keys of existing cache directories", func(t *testing.T) {
		tests := []struct {
			endpoint string
			params   map[string]any
			want     string
		}{
			{"search/code", map[string]any{"q": "x", "per_page": 100, "page": 1}, "aea820071ab1770f"},
			{"contents", map[string]any{
				"owner": "o", "repo": "r", "ref": "main",
				"path": "docs/caf\u00e9 \U0001F600\t<&>\x7f.md",
			}, "d4e95b9162783292"},
			{"graphql", map[string]any{
				"query":     "q",
				"variables": map[string]any{"b": []any{1, 2.5, true, nil}, "a": "z"},
			}, "2eb3a97bf1438515"},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, Key(tt.endpoint, tt.params), tt.endpoint)
		}
	})
}

func TestCanonicalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"sorted keys and spaced separators", map[string]any{"b": 1, "a": "x"}, `{"a": "x", "b": 1}`},
		{"nested values", map[string]any{"v": []any{true, nil, map[string]int{"k": 2}}}, `{"v": [true, null, {"k": 2}]}`},
		{"non-ascii is escaped", "caf\u00e9", `"caf\u00e9"`},
		{"astral runes become surrogate pairs", "\U0001F600", `"\ud83d\ude00"`},
		{"control characters", "a\tb\x01\x7f", `"a\tb\u0001\u007f"`},
		{"html is not escaped", "<&>", `"<&>"`},
		{"quotes and backslashes", `say "hi" \`, `"say \"hi\" \\"`},
		{"integral float", 1e6, "1000000.0"},
		{"fractional float", 2.5, "2.5"},
		{"large float", 1e16, "1e+16"},
		{"small float", 1.5e-05, "1.5e-05"},
		{"json number", json.Number("42"), "42"},
		{"nil map", map[string]any(nil), "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("non-string map keys are rejected", func(t *testing.T) {
		_, err := canonicalJSON(map[int]string{1: "a"})
		assert.Error(t, err)
	})
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(t)
	params := map[string]any{"owner": "o", "repo": "r", "path": "a.py", "ref": "main"}

	_, ok := c.Get("contents", params)
	assert.False(t, ok)
	assert.Zero(t, c.Hits())

	require.NoError(t, c.Set("contents", params, map[string]any{"content": "aGk=", "size": 2}))

	raw, ok := c.Get("contents", params)
	require.True(t, ok)
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "aGk=", got["content"])
	assert.Equal(t, int64(1), c.Hits())

	_, err := os.Stat(filepath.Join(c.Dir(), Key("contents", params)+".json"))
	assert.NoError(t, err)
}

func TestCache_Overwrite(t *testing.T) {
	c := newTestCache(t)
	params := map[string]any{"repo_key": "o/r"}

	require.NoError(t, c.Set("repo_metadata", params, map[string]any{"stars": 1}))
	require.NoError(t, c.Set("repo_metadata", params, map[string]any{"stars": 2}))

	raw, ok := c.Get("repo_metadata", params)
	require.True(t, ok)
	assert.JSONEq(t, `{"stars":2}`, string(raw))
}

func TestCache_CorruptEntries(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte(`{"content": "ab`)},
		{"binary", []byte{0x00, 0xff, 0xfe, 0x13}},
		{"empty", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)
			params := map[string]any{"q": tt.name}
			p := filepath.Join(c.Dir(), Key("search/code", params)+".json")
			require.NoError(t, os.WriteFile(p, tt.data, 0600))

			_, ok := c.Get("search/code", params)
			assert.False(t, ok)

			require.NoError(t, c.Set("search/code", params, map[string]any{"total": 0}))
			_, ok = c.Get("search/code", params)
			assert.True(t, ok)
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	c, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	params := map[string]any{"repo_key": "o/r"}
	require.NoError(t, c.Set("repo_metadata", params, map[string]any{}))

	_, ok := c.Get("repo_metadata", params)
	assert.True(t, ok)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok = c.Get("repo_metadata", params)
	assert.False(t, ok)
}

func TestCache_WithReadDisabled(t *testing.T) {
	c := newTestCache(t)
	params := map[string]any{"owner": "o"}
	require.NoError(t, c.Set("contents", params, map[string]any{"v": 1}))

	blind := c.WithReadDisabled()
	_, ok := blind.Get("contents", params)
	assert.False(t, ok)

	require.NoError(t, blind.Set("contents", params, map[string]any{"v": 2}))
	raw, ok := c.Get("contents", params)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(raw))

	assert.Equal(t, c.Hits(), blind.Hits())
}

func TestCache_SentinelPayload(t *testing.T) {
	c := newTestCache(t)
	params := map[string]any{"owner": "o", "repo": "r", "path": "gone.py", "ref": "main"}
	require.NoError(t, c.Set("contents", params, map[string]string{"error": "not_found"}))

	raw, ok := c.Get("contents", params)
	require.True(t, ok)
	assert.JSONEq(t, `{"error":"not_found"}`, string(raw))
}
