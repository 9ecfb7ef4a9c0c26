package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidFileURL indicates a locator is not a github.com blob URL.
	ErrInvalidFileURL = errors.New("invalid file URL")

	// ErrNotConfigured indicates a service was used before it was wired.
	ErrNotConfigured = errors.New("not configured")

	// Remote Outcome Errors.
	//
	// These mirror the sentinel tags stored in the response cache so that a
	// cached outcome and a live outcome surface identically.

	// ErrNoContent indicates the remote file exists but has no renderable text.
	ErrNoContent = errors.New("no content")

	// ErrUnresolvableSymlink indicates a symlink whose target cannot be followed.
	ErrUnresolvableSymlink = errors.New("unresolvable symlink")

	// ErrBadRef indicates the revision reference does not exist in the repository.
	ErrBadRef = errors.New("bad ref")

	// ErrNoHistory indicates the path has no commit history at the ref.
	ErrNoHistory = errors.New("no history")

	// ErrTruncated indicates the batched transport could not carry the payload.
	ErrTruncated = errors.New("truncated")

	// Authentication Errors.

	// ErrAuthRequired indicates no API token is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// Cache sentinel tags. A cached payload of the form {"error": tag} records a
// terminal remote outcome.
const (
	SentinelNotFound            = "not_found"
	SentinelNoContent           = "no_content"
	SentinelUnresolvableSymlink = "unresolvable_symlink"
	SentinelBadRef              = "bad_ref"
	SentinelNoHistory           = "no_history"
)

// SentinelError maps a cache sentinel tag to its domain error.
// Unknown tags map to ErrNotFound.
func SentinelError(tag string) error {
	switch tag {
	case SentinelNoContent:
		return ErrNoContent
	case SentinelUnresolvableSymlink:
		return ErrUnresolvableSymlink
	case SentinelBadRef:
		return ErrBadRef
	case SentinelNoHistory:
		return ErrNoHistory
	default:
		return ErrNotFound
	}
}

// IsMissing reports whether err is a terminal "nothing to fetch" outcome.
func IsMissing(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNoContent) ||
		errors.Is(err, ErrUnresolvableSymlink) ||
		errors.Is(err, ErrBadRef) ||
		errors.Is(err, ErrNoHistory)
}
