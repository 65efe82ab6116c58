package queue

import (
	"sync"
	"time"
)

// QuotaTracker enforces per-category daily usage ceilings. Remaining counts
// reset lazily: the first check after local midnight restores every tracked
// category to its ceiling. Categories without a configured ceiling are
// unlimited.
type QuotaTracker struct {
	mu        sync.Mutex
	limits    map[TaskCategory]int
	remaining map[TaskCategory]int
	lastReset time.Time

	now func() time.Time
}

// NewQuotaTracker creates a tracker from the given ceilings. Entries with a
// ceiling of zero or below are ignored (unlimited).
func NewQuotaTracker(limits map[TaskCategory]int) *QuotaTracker {
	q := &QuotaTracker{
		limits:    make(map[TaskCategory]int, len(limits)),
		remaining: make(map[TaskCategory]int, len(limits)),
		now:       time.Now,
	}
	for cat, limit := range limits {
		if limit <= 0 {
			continue
		}
		q.limits[cat] = limit
		q.remaining[cat] = limit
	}
	q.lastReset = midnightOf(q.now())
	return q
}

// CheckAndConsume reports whether the category has quota left today and, if
// so, consumes one unit. Check and decrement are a single critical section:
// with one unit remaining, exactly one of two concurrent callers is admitted.
func (q *QuotaTracker) CheckAndConsume(cat TaskCategory) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maybeReset()

	remaining, tracked := q.remaining[cat]
	if !tracked {
		return true
	}
	if remaining <= 0 {
		return false
	}
	q.remaining[cat] = remaining - 1
	return true
}

// Remaining returns the category's remaining quota for today and whether the
// category is tracked at all.
func (q *QuotaTracker) Remaining(cat TaskCategory) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maybeReset()

	remaining, tracked := q.remaining[cat]
	return remaining, tracked
}

// maybeReset restores all ceilings when the local day has rolled over since
// the last reset. Callers must hold q.mu.
func (q *QuotaTracker) maybeReset() {
	midnight := midnightOf(q.now())
	if !midnight.After(q.lastReset) {
		return
	}
	for cat, limit := range q.limits {
		q.remaining[cat] = limit
	}
	q.lastReset = midnight
}

func midnightOf(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
