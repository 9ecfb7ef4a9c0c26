package github

import (
	"encoding/json"

	"github.com/custodia-labs/ghfetch/internal/core/ports/driven"
	"github.com/custodia-labs/ghfetch/internal/logger"
)

// fetched is what a fetch function hands back to cachedFetch.
type fetched[T any] struct {
	value T
	// cacheable is false for outcomes that may change on a later attempt.
	cacheable bool
}

// cachedFetch returns the cached payload for (endpoint, params) when present,
// otherwise calls fetch and stores its result if it is cacheable.
// Errors from fetch are never cached.
func cachedFetch[T any](
	cache driven.ResponseCache,
	endpoint string,
	params map[string]any,
	fetch func() (fetched[T], error),
) (T, error) {
	if raw, ok := cache.Get(endpoint, params); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		logger.Debug("cache: %s entry does not decode, refetching", endpoint)
	}

	var zero T
	f, err := fetch()
	if err != nil {
		return zero, err
	}
	if f.cacheable {
		if err := cache.Set(endpoint, params, f.value); err != nil {
			logger.Warn("cache: store %s: %v", endpoint, err)
		}
	}
	return f.value, nil
}

// sentinel is a cached terminal outcome.
type sentinel struct {
	Error string `json:"error,omitempty"`
}
