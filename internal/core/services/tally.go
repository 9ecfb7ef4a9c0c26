package services

import (
	"sync"

	"github.com/custodia-labs/ghfetch/internal/core/domain"
)

// tally accumulates outcome counters and pending status records under a
// single lock. The progress reporter reads it through snapshot only.
type tally struct {
	mu        sync.Mutex
	phase     string
	total     int
	completed int
	stats     domain.FetchStats
	statuses  []domain.ContentStatusRecord
}

func (t *tally) reset(phase string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.total = total
	t.completed = 0
	t.stats = domain.FetchStats{}
	t.statuses = nil
}

func (t *tally) setPhase(phase string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
}

func (t *tally) setProgress(total, completed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.completed = completed
}

// record counts one finished item. A non-empty url queues a status record.
func (t *tally) record(url string, status domain.ContentStatus, count *int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed++
	if count != nil {
		*count++
	}
	if url != "" {
		t.statuses = append(t.statuses, domain.ContentStatusRecord{URL: url, Status: status})
	}
}

// counter returns the FetchStats field that status increments.
func (t *tally) counter(status domain.ContentStatus) *int {
	switch status {
	case domain.ContentFetched:
		return &t.stats.Fetched
	case domain.ContentNotFound:
		return &t.stats.NotFound
	default:
		return &t.stats.Errors
	}
}

func (t *tally) recordStatus(url string, status domain.ContentStatus) {
	t.record(url, status, t.counter(status))
}

// count tallies an outcome without queueing a status record.
func (t *tally) count(status domain.ContentStatus) {
	t.record("", status, t.counter(status))
}

func (t *tally) recordSkipped(url string) {
	t.record(url, domain.ContentFetched, &t.stats.Skipped)
}

func (t *tally) addFallback(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Fallback += n
}

func (t *tally) setQueries(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Queries = n
}

// drain removes and returns queued status records once at least min are
// queued. min <= 0 drains whatever is queued.
func (t *tally) drain(minimum int) []domain.ContentStatusRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.statuses) == 0 || len(t.statuses) < minimum {
		return nil
	}
	out := t.statuses
	t.statuses = nil
	return out
}

// requeue puts back records whose write failed.
func (t *tally) requeue(records []domain.ContentStatusRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses = append(records, t.statuses...)
}

func (t *tally) result() *domain.FetchStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := t.stats
	return &stats
}

func (t *tally) snapshot() domain.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.ProgressSnapshot{
		Phase:     t.phase,
		Total:     t.total,
		Completed: t.completed,
		Stats:     t.stats,
	}
}
