package admission

import (
	"testing"
	"time"
)

func TestSpamTracker_SilencesOnThirdRepeat(t *testing.T) {
	s := NewSpamTracker(2*time.Minute, 3, 10*time.Minute)

	if s.Evaluate("u1", "any deals on nike?", t0) {
		t.Fatal("first message silenced")
	}
	if s.Evaluate("u1", "any deals on nike?", t0.Add(20*time.Second)) {
		t.Fatal("second message silenced")
	}
	if !s.Evaluate("u1", "Any deals on Nike? ", t0.Add(40*time.Second)) {
		t.Fatal("third identical message should trigger silence")
	}
	if want := t0.Add(40*time.Second + 10*time.Minute); !s.SilencedUntil("u1").Equal(want) {
		t.Errorf("SilencedUntil = %v, want %v", s.SilencedUntil("u1"), want)
	}

	// A distinct message during silence is also rejected.
	if !s.Evaluate("u1", "something else entirely", t0.Add(time.Minute)) {
		t.Error("distinct message during silence allowed")
	}

	// Other users are unaffected.
	if s.Evaluate("u2", "any deals on nike?", t0.Add(time.Minute)) {
		t.Error("u2 silenced by u1's spam")
	}
}

func TestSpamTracker_WindowPurgesOldEntries(t *testing.T) {
	s := NewSpamTracker(2*time.Minute, 3, 10*time.Minute)

	s.Evaluate("u1", "hello deals", t0)
	s.Evaluate("u1", "hello deals", t0.Add(time.Minute))
	// First entry falls out of the window.
	if s.Evaluate("u1", "hello deals", t0.Add(2*time.Minute+time.Second)) {
		t.Error("repeat outside window should not silence")
	}
}

func TestSpamTracker_SilenceExpires(t *testing.T) {
	s := NewSpamTracker(2*time.Minute, 2, 5*time.Minute)

	s.Evaluate("u1", "buy now", t0)
	if !s.Evaluate("u1", "buy now", t0.Add(time.Second)) {
		t.Fatal("threshold 2 should silence on second repeat")
	}
	if !s.Evaluate("u1", "other", t0.Add(4*time.Minute)) {
		t.Error("still inside penalty")
	}
	if s.Evaluate("u1", "other", t0.Add(6*time.Minute)) {
		t.Error("penalty expired, message should pass")
	}
}
