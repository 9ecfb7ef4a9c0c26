package domain

import "strings"

// History limits.
const (
	MaxHistoryCommits = 100
	ShortSHALength    = 7
	MaxMessageLength  = 80
)

// CommitSummary is a compact view of one commit touching a file.
type CommitSummary struct {
	SHA     string `json:"sha"`
	Author  string `json:"author,omitempty"`
	Date    string `json:"date,omitempty"`
	Message string `json:"message"`
}

// FileHistory is the most recent commits for a file, newest first.
type FileHistory struct {
	URL     string
	Commits []CommitSummary
}

// NewCommitSummary applies the length budgets: a short sha and the first
// line of the message.
func NewCommitSummary(sha, author, date, message string) CommitSummary {
	if len(sha) > ShortSHALength {
		sha = sha[:ShortSHALength]
	}
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	message = truncateRunes(strings.TrimRight(message, "\r"), MaxMessageLength)
	return CommitSummary{SHA: sha, Author: author, Date: date, Message: message}
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
