package admission

import (
	"sync"
	"time"
)

// maxTrackedKeys is the key count at which expired per-key state is swept.
// Live windows are never evicted, so a capped key stays capped.
const maxTrackedKeys = 4096

// window is a fixed counting window: at most max hits before resetAt.
type window struct {
	count   int
	resetAt time.Time
}

// roll resets the count once now reaches resetAt, advancing resetAt by whole
// window lengths so boundaries stay aligned.
func (w *window) roll(now time.Time, length time.Duration) {
	if now.Before(w.resetAt) {
		return
	}
	elapsed := now.Sub(w.resetAt)
	w.resetAt = w.resetAt.Add((elapsed/length + 1) * length)
	w.count = 0
}

func (w *window) allow(now time.Time, max int, length time.Duration) bool {
	w.roll(now, length)
	if w.count >= max {
		return false
	}
	w.count++
	return true
}

// WindowSnapshot is a read-only view of a window for status reporting.
type WindowSnapshot struct {
	Count   int
	Max     int
	ResetAt time.Time
}

// FixedWindowLimiter is a single fixed-window counter (not a token bucket).
// Safe for concurrent use.
type FixedWindowLimiter struct {
	mu     sync.Mutex
	max    int
	length time.Duration
	w      window
}

// NewFixedWindowLimiter creates a limiter allowing max hits per length,
// with the first window starting at start.
func NewFixedWindowLimiter(max int, length time.Duration, start time.Time) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		max:    max,
		length: length,
		w:      window{resetAt: start.Add(length)},
	}
}

// Allow counts one hit at now and reports whether it fits in the window.
// A rejected hit is not counted.
func (l *FixedWindowLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.allow(now, l.max, l.length)
}

// Snapshot returns the window state as of now.
func (l *FixedWindowLimiter) Snapshot(now time.Time) WindowSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.roll(now, l.length)
	return WindowSnapshot{Count: l.w.count, Max: l.max, ResetAt: l.w.resetAt}
}

// KeyedLimiter keeps an independent fixed window per key (e.g. per user id).
// Safe for concurrent use.
type KeyedLimiter struct {
	mu      sync.Mutex
	max     int
	length  time.Duration
	entries map[string]*window
}

// NewKeyedLimiter creates a per-key limiter allowing max hits per length.
func NewKeyedLimiter(max int, length time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		max:     max,
		length:  length,
		entries: make(map[string]*window),
	}
}

// Allow counts one hit for key at now and reports whether it fits.
// A key's first window starts at its first hit.
func (l *KeyedLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) >= maxTrackedKeys {
		l.pruneLocked(now)
	}

	w, ok := l.entries[key]
	if !ok {
		w = &window{resetAt: now.Add(l.length)}
		l.entries[key] = w
	}
	return w.allow(now, l.max, l.length)
}

// Tracked returns the number of keys currently holding a window.
func (l *KeyedLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *KeyedLimiter) pruneLocked(now time.Time) {
	for k, w := range l.entries {
		if !now.Before(w.resetAt) {
			delete(l.entries, k)
		}
	}
}
