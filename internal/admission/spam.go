package admission

import (
	"strings"
	"sync"
	"time"
)

// maxSpamEntries bounds the per-user history kept inside the window.
const maxSpamEntries = 32

type spamEntry struct {
	content string
	at      time.Time
}

type spamRecord struct {
	entries       []spamEntry
	silencedUntil time.Time
}

// SpamTracker detects a user repeating the same text within a short window
// and silences that user for a penalty period. Safe for concurrent use.
type SpamTracker struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	penalty   time.Duration
	users     map[string]*spamRecord
}

// NewSpamTracker creates a tracker: threshold identical messages within
// window silence the sender for penalty.
func NewSpamTracker(window time.Duration, threshold int, penalty time.Duration) *SpamTracker {
	return &SpamTracker{
		window:    window,
		threshold: threshold,
		penalty:   penalty,
		users:     make(map[string]*spamRecord),
	}
}

// Evaluate records content for userID at now and reports whether the user is
// silenced. A silenced user's messages are not recorded. The message that
// reaches the threshold is itself suppressed.
func (s *SpamTracker) Evaluate(userID, content string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.users) >= maxTrackedKeys {
		s.pruneLocked(now)
	}

	rec, ok := s.users[userID]
	if !ok {
		rec = &spamRecord{}
		s.users[userID] = rec
	}

	rec.purge(now, s.window)

	if now.Before(rec.silencedUntil) {
		return true
	}

	key := normalizeSpamContent(content)
	rec.entries = append(rec.entries, spamEntry{content: key, at: now})
	if len(rec.entries) > maxSpamEntries {
		rec.entries = rec.entries[len(rec.entries)-maxSpamEntries:]
	}

	repeats := 0
	for _, e := range rec.entries {
		if e.content == key {
			repeats++
		}
	}
	if repeats >= s.threshold {
		rec.silencedUntil = now.Add(s.penalty)
		return true
	}
	return false
}

// SilencedUntil returns the end of the user's silence, or the zero time.
func (s *SpamTracker) SilencedUntil(userID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.users[userID]; ok {
		return rec.silencedUntil
	}
	return time.Time{}
}

func (r *spamRecord) purge(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	keep := r.entries[:0]
	for _, e := range r.entries {
		if e.at.After(cutoff) {
			keep = append(keep, e)
		}
	}
	r.entries = keep
}

func (s *SpamTracker) pruneLocked(now time.Time) {
	for id, rec := range s.users {
		rec.purge(now, s.window)
		if len(rec.entries) == 0 && !now.Before(rec.silencedUntil) {
			delete(s.users, id)
		}
	}
}

// normalizeSpamContent folds case and surrounding whitespace so near-identical
// repeats count together.
func normalizeSpamContent(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}
