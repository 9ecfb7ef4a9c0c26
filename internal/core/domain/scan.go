package domain

import "time"

// ScanProgress is the durable checkpoint of a scan, one per query string.
type ScanProgress struct {
	Query     string
	LastLo    int64
	MaxSize   int64
	Collected int64
	// CompletedAt is set exactly once, when the scan finishes.
	CompletedAt *time.Time
	UpdatedAt   time.Time
}

// Completed reports whether the scan is authoritative.
func (p *ScanProgress) Completed() bool {
	return p != nil && p.CompletedAt != nil
}

// DiscoveryOptions controls a path discovery run.
type DiscoveryOptions struct {
	// Force rescans a completed query from the start.
	Force bool
}

// ScanResult summarises a path discovery run.
type ScanResult struct {
	Query          string
	RunID          string
	EstimatedTotal int
	Collected      int64
	NewFiles       int
	Buckets        int
	// AlreadyCompleted is set when the run was skipped because a previous
	// scan of the same query had completed.
	AlreadyCompleted bool
	Completed        bool
	// StoppedOnEmpty is set when the scan stopped after a run of empty
	// buckets rather than reaching the maximum size. Files in a sparse
	// region beyond that run are not enumerated.
	StoppedOnEmpty bool
}
