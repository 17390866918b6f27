// Package ratelimit implements a fixed-window attempt limiter for the email
// flows. Attempts are counted per (identifier, action) pair from the first
// attempt in the window; the counter resets once the window elapses.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limit is the budget for one action.
type Limit struct {
	MaxAttempts int
	Window      time.Duration
}

// ExceededError reports a denied attempt and how long until the window
// opens again.
type ExceededError struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	minutes := int(e.RetryAfter.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("too many %s attempts, try again in %d minutes", e.Action, minutes)
}

type entry struct {
	count        int
	firstAttempt time.Time
}

// Limiter tracks attempt counts in memory. State is process-local; a
// restart clears all windows.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string]entry

	// now is swappable for tests.
	now func() time.Time
}

// New returns an empty limiter.
func New() *Limiter {
	return &Limiter{
		attempts: make(map[string]entry),
		now:      time.Now,
	}
}

// NewWithClock returns a limiter using the given clock.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	l.now = now
	return l
}

func key(identifier, action string) string {
	return identifier + ":" + action
}

// Check records one attempt for (identifier, action) and returns nil while
// the budget allows it. When the budget is exhausted it returns an
// *ExceededError and does not extend the window.
func (l *Limiter) Check(identifier, action string, limit Limit) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := key(identifier, action)

	e, ok := l.attempts[k]
	if !ok || now.Sub(e.firstAttempt) > limit.Window {
		l.attempts[k] = entry{count: 1, firstAttempt: now}
		return nil
	}

	if e.count >= limit.MaxAttempts {
		return &ExceededError{
			Action:     action,
			RetryAfter: limit.Window - now.Sub(e.firstAttempt),
		}
	}

	e.count++
	l.attempts[k] = e
	return nil
}

// Sweep drops entries whose first attempt is older than maxAge and returns
// how many were removed. Called from the housekeeping worker with the
// longest window in use.
func (l *Limiter) Sweep(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, e := range l.attempts {
		if now.Sub(e.firstAttempt) > maxAge {
			delete(l.attempts, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}
