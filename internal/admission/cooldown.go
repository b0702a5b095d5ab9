package admission

import (
	"sync"
	"time"
)

type conversationCooldown struct {
	lastReplyAt     time.Time
	lastReplyUserID string
	responded       map[string]struct{} // users that received at least one reply
}

// CooldownTracker records the bot's last reply per conversation and the set
// of users already answered there. Safe for concurrent use.
type CooldownTracker struct {
	mu       sync.Mutex
	cooldown time.Duration // proactive replies blocked for this long after a reply
	grace    time.Duration // same-user follow-up window, shorter than cooldown
	convs    map[string]*conversationCooldown
}

// NewCooldownTracker creates a tracker with the full cooldown and the shorter
// same-user follow-up grace window.
func NewCooldownTracker(cooldown, grace time.Duration) *CooldownTracker {
	return &CooldownTracker{
		cooldown: cooldown,
		grace:    grace,
		convs:    make(map[string]*conversationCooldown),
	}
}

// HasResponded reports whether userID already got a reply in conversationID.
func (c *CooldownTracker) HasResponded(conversationID, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.convs[conversationID]
	if !ok {
		return false
	}
	_, ok = conv.responded[userID]
	return ok
}

// InCooldown reports whether a proactive message from userID at now is
// blocked. The user the bot last answered gets the grace window for follow-ups.
func (c *CooldownTracker) InCooldown(conversationID, userID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[conversationID]
	if !ok || conv.lastReplyAt.IsZero() {
		return false
	}
	since := now.Sub(conv.lastReplyAt)
	if conv.lastReplyUserID == userID && since < c.grace {
		return false
	}
	return since < c.cooldown
}

// RecordReply marks a confirmed reply to userID in conversationID at now.
func (c *CooldownTracker) RecordReply(conversationID, userID string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conv, ok := c.convs[conversationID]
	if !ok {
		conv = &conversationCooldown{responded: make(map[string]struct{})}
		c.convs[conversationID] = conv
	}
	conv.lastReplyAt = now
	conv.lastReplyUserID = userID
	conv.responded[userID] = struct{}{}
}

// LastReply returns the last reply time and user for conversationID.
func (c *CooldownTracker) LastReply(conversationID string) (time.Time, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conv, ok := c.convs[conversationID]; ok {
		return conv.lastReplyAt, conv.lastReplyUserID
	}
	return time.Time{}, ""
}
