package domain

import "time"

// SearchItem is one match on a code search page.
type SearchItem struct {
	URL string
	SHA string
	// Size is nil when the search index does not report it.
	Size *int64
}

// SearchPage is one page of code search results.
type SearchPage struct {
	// Total is the service's estimate of the full result count.
	Total int
	Items []SearchItem
}

// SearchHit is an append-only audit record of an item returned for a
// specific size bucket. The same URL may appear under several buckets.
type SearchHit struct {
	URL     string
	Query   string
	SizeMin int64
	SizeMax int64
	RunID   string
	HitAt   time.Time
}

// MultiRangeHit is a file that was returned for more than one distinct
// size range, which indicates overlapping or shifting bucket edges.
type MultiRangeHit struct {
	URL    string
	Ranges []SizeRange
}

// SizeRange is an inclusive byte range used as a search bucket.
type SizeRange struct {
	Min int64
	Max int64
}
