package domain

// ContentStatus is the terminal outcome of a content fetch attempt.
// Any existing status means "do not retry automatically".
type ContentStatus string

const (
	ContentFetched  ContentStatus = "fetched"
	ContentNotFound ContentStatus = "not_found"
	ContentError    ContentStatus = "error"
)

// ContentStatusRecord is one row of content status.
type ContentStatusRecord struct {
	URL    string
	Status ContentStatus
}

// FetchOutcome is the per-item result of a batched fetch.
type FetchOutcome string

const (
	OutcomeOK        FetchOutcome = "ok"
	OutcomeNotFound  FetchOutcome = "not_found"
	OutcomeTruncated FetchOutcome = "truncated"
	OutcomeNoContent FetchOutcome = "no_content"
	OutcomeBadRef    FetchOutcome = "bad_ref"
	OutcomeNoHistory FetchOutcome = "no_history"
	OutcomeError     FetchOutcome = "error"
)

// ContentResult is one item of a batched content fetch.
type ContentResult struct {
	Ref     FileRef
	Outcome FetchOutcome
	// Content is set when Outcome is OutcomeOK.
	Content *FileContent
	Err     error
}

// MetadataResult is one item of a batched metadata fetch.
type MetadataResult struct {
	RepoKey  string
	Outcome  FetchOutcome
	Metadata *RepoMetadata
	Err      error
}

// HistoryResult is one item of a batched history fetch.
type HistoryResult struct {
	Ref     FileRef
	Outcome FetchOutcome
	Commits []CommitSummary
	Err     error
}
