package domain

import "time"

// FetchOptions controls a content, metadata or history run.
type FetchOptions struct {
	// Batched selects the GraphQL path.
	Batched   bool
	BatchSize int
}

// FetchStats are the outcome counters of a fetch run.
type FetchStats struct {
	Fetched  int
	Skipped  int
	NotFound int
	Errors   int
	// Fallback counts items that came back truncated from the batched
	// path and were fetched one at a time instead.
	Fallback int
	Queries  int64
}

// ProgressSnapshot is a point-in-time view of a running operation.
type ProgressSnapshot struct {
	Phase     string
	Total     int
	Completed int
	Stats     FetchStats
}

// ClientStats are the counters of a rate-controlled API client.
type ClientStats struct {
	Requests         int64
	Retries          int64
	RateLimitHits    int64
	RateLimitedUntil time.Time
	// RateLimitWait is how much of the current rate-limit pause remains.
	RateLimitWait time.Duration
	// TotalTime is the cumulative wall time spent in requests.
	TotalTime time.Duration
}

// AverageTime returns the mean request duration.
func (s ClientStats) AverageTime() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Requests)
}
