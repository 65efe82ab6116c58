package queue

import (
	"sync"
	"time"
)

// RateLimiter admits work under two sliding windows, one a minute wide and
// one an hour wide. Every admission consumes a slot in both windows. A
// capacity of zero or below makes that window unlimited.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	perHour   int
	minute    []time.Time
	hour      []time.Time

	// now is swapped out by tests to drive the windows deterministically.
	now func() time.Time
}

// NewRateLimiter creates a limiter admitting at most perMinute calls per
// sliding minute and perHour per sliding hour. A perHour of zero derives
// perMinute*60, matching providers that publish only a per-minute figure.
func NewRateLimiter(perMinute, perHour int) *RateLimiter {
	if perHour == 0 {
		perHour = perMinute * 60
	}
	return &RateLimiter{
		perMinute: perMinute,
		perHour:   perHour,
		now:       time.Now,
	}
}

// Acquire records one call if both windows have room and reports whether it
// did. A denied call leaves the windows untouched.
func (rl *RateLimiter) Acquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if rl.perMinute > 0 && len(rl.minute) >= rl.perMinute {
		return false
	}
	if rl.perHour > 0 && len(rl.hour) >= rl.perHour {
		return false
	}

	rl.minute = append(rl.minute, now)
	rl.hour = append(rl.hour, now)
	return true
}

// WaitTime returns how long until the next Acquire can succeed: the time
// until the oldest entry leaves the minute window if that window is full,
// else the same for the hour window, else zero.
func (rl *RateLimiter) WaitTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if rl.perMinute > 0 && len(rl.minute) >= rl.perMinute {
		return nonNegative(rl.minute[0].Add(time.Minute).Sub(now))
	}
	if rl.perHour > 0 && len(rl.hour) >= rl.perHour {
		return nonNegative(rl.hour[0].Add(time.Hour).Sub(now))
	}
	return 0
}

// prune drops timestamps that have slid out of their windows. Entries are
// appended in time order, so each slice is trimmed from the front.
// Callers must hold rl.mu.
func (rl *RateLimiter) prune(now time.Time) {
	minuteCutoff := now.Add(-time.Minute)
	i := 0
	for i < len(rl.minute) && !rl.minute[i].After(minuteCutoff) {
		i++
	}
	if i > 0 {
		rl.minute = append(rl.minute[:0], rl.minute[i:]...)
	}

	hourCutoff := now.Add(-time.Hour)
	j := 0
	for j < len(rl.hour) && !rl.hour[j].After(hourCutoff) {
		j++
	}
	if j > 0 {
		rl.hour = append(rl.hour[:0], rl.hour[j:]...)
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
