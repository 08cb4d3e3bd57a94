// Package backoff tracks per-endpoint cooldown deadlines shared by all
// in-flight match simulations.
package backoff

import (
	"strings"
	"sync"
	"time"
)

// Tracker maps endpoint keys to "retry not before" deadlines. Entries are
// advisory: writers only ever extend a deadline, and expired entries are
// harmless until pruned.
type Tracker struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
	now       func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		deadlines: make(map[string]time.Time),
		now:       time.Now,
	}
}

// NewTrackerWithClock allows tests to control time.
func NewTrackerWithClock(now func() time.Time) *Tracker {
	t := NewTracker()
	if now != nil {
		t.now = now
	}
	return t
}

// Key derives the cooldown identity for a call: method plus path with the
// query string stripped, so all calls to a parameterized resource share one
// rate-limit state.
func Key(method, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return strings.ToUpper(method) + " " + path
}

// ShouldWait returns how long a caller must wait before hitting the endpoint,
// or zero if it may proceed now.
func (t *Tracker) ShouldWait(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline, ok := t.deadlines[key]
	if !ok {
		return 0
	}
	remaining := deadline.Sub(t.now())
	if remaining <= 0 {
		// Opportunistic cleanup of expired entries.
		delete(t.deadlines, key)
		return 0
	}
	return remaining
}

// RecordBackoff extends the endpoint's cooldown to now+d. It never shortens
// an existing deadline.
func (t *Tracker) RecordBackoff(key string, d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	deadline := t.now().Add(d)
	if existing, ok := t.deadlines[key]; ok && existing.After(deadline) {
		return
	}
	t.deadlines[key] = deadline
}
