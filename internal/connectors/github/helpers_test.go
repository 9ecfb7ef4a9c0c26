package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memCache is an in-memory driven.ResponseCache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]json.RawMessage
	hits    atomic.Int64
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]json.RawMessage)}
}

func memKey(endpoint string, params map[string]any) string {
	b, _ := json.Marshal(params)
	return endpoint + "|" + string(b)
}

func (m *memCache) Get(endpoint string, params map[string]any) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[memKey(endpoint, params)]
	if ok {
		m.hits.Add(1)
	}
	return raw, ok
}

func (m *memCache) Set(endpoint string, params map[string]any, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey(endpoint, params)] = b
	return nil
}

func (m *memCache) Hits() int64 { return m.hits.Load() }

func (m *memCache) has(endpoint string, params map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[memKey(endpoint, params)]
	return ok
}

func (m *memCache) entry(t *testing.T, endpoint string, params map[string]any) map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[memKey(endpoint, params)]
	require.True(t, ok, "no cache entry for %s", endpoint)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func testConfig(baseURL string) ClientConfig {
	return ClientConfig{
		RequestsPerSecond: 1000,
		MaxRetries:        2,
		BaseDelay:         time.Millisecond,
		Factor:            2,
		BaseURL:           baseURL,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

// countingServer serves handler and counts requests.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *memCache, *atomic.Int64) {
	t.Helper()
	srv, calls := countingServer(t, handler)
	cache := newMemCache()
	c, err := NewClientWithHTTPClient(srv.Client(), cache, testConfig(srv.URL))
	require.NoError(t, err)
	c.retry.Sleep = noSleep
	return c, cache, calls
}

func newTestGraphQLClient(t *testing.T, handler http.HandlerFunc) (*GraphQLClient, *memCache, *atomic.Int64) {
	t.Helper()
	srv, calls := countingServer(t, handler)
	cache := newMemCache()
	c, err := NewGraphQLClientWithHTTPClient(srv.Client(), cache, testConfig(srv.URL))
	require.NoError(t, err)
	c.retry.Sleep = noSleep
	return c, cache, calls
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
