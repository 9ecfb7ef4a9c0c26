// Package filecache implements driven.ResponseCache as one JSON file per key.
//
// There is no index: the presence of <dir>/<key>.json is the existence
// check. Entries expire lazily by modification time and are replaced
// wholesale, never mutated.
package filecache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// DefaultDuration is how long an entry stays valid.
const DefaultDuration = 30 * 24 * time.Hour

// DefaultDirName is the cache directory under the user cache root.
const DefaultDirName = "github-data-file-fetcher"

// keyLength is the number of hex characters kept from the digest.
const keyLength = 16

// Verify interface compliance.
var _ driven.ResponseCache = (*Cache)(nil)

// Cache is a file-backed response cache.
type Cache struct {
	dir      string
	duration time.Duration
	readable bool
	hits     *atomic.Int64
	now      func() time.Time
}

// New creates a cache rooted at dir, creating the directory if needed.
// A zero duration means DefaultDuration.
func New(dir string, duration time.Duration) (*Cache, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Cache{
		dir:      dir,
		duration: duration,
		readable: true,
		hits:     new(atomic.Int64),
		now:      time.Now,
	}, nil
}

// DefaultDir returns ~/.cache/github-data-file-fetcher.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".cache", DefaultDirName), nil
}

// WithReadDisabled returns a view of the cache whose Get always misses while
// Set still writes. The view shares the directory and hit counter.
func (c *Cache) WithReadDisabled() *Cache {
	cp := *c
	cp.readable = false
	return &cp
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Key derives the entry name for endpoint and params: the first 16 hex
// characters of sha256("<endpoint>|<canonical params>"). Parameter order never
// changes the key, and nil params hash like empty ones.
func Key(endpoint string, params map[string]any) string {
	if params == nil {
		params = map[string]any{}
	}
	canonical, err := canonicalJSON(params)
	if err != nil {
		canonical = fmt.Sprintf("%v", params)
	}
	sum := sha256.Sum256([]byte(endpoint + "|" + canonical))
	return hex.EncodeToString(sum[:])[:keyLength]
}

func (c *Cache) path(endpoint string, params map[string]any) string {
	return filepath.Join(c.dir, Key(endpoint, params)+".json")
}

// Get returns the cached payload for endpoint and params.
func (c *Cache) Get(endpoint string, params map[string]any) (json.RawMessage, bool) {
	if !c.readable {
		return nil, false
	}
	p := c.path(endpoint, params)

	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if c.now().Sub(info.ModTime()) > c.duration {
		return nil, false
	}

	data, err := os.ReadFile(p)
	if err != nil {
		logger.Debug("cache: unreadable entry %s: %v", filepath.Base(p), err)
		return nil, false
	}
	if !json.Valid(data) {
		logger.Debug("cache: corrupt entry %s", filepath.Base(p))
		return nil, false
	}

	c.hits.Add(1)
	return json.RawMessage(data), true
}

// Set stores payload, replacing any existing entry. The write goes through a
// temporary file so readers never see a partial entry.
func (c *Cache) Set(endpoint string, params map[string]any, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	p := c.path(endpoint, params)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache entry: %w", err)
	}
	return nil
}

// Hits returns the number of successful Get calls.
func (c *Cache) Hits() int64 {
	return c.hits.Load()
}
