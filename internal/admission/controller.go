// Package admission decides, per inbound direct message, whether the bot
// should answer. Gates run in a fixed order and the first rejecting gate
// ends evaluation:
//
//	duplicate → admin command → bot inactive → self-authored → global flood →
//	user spam → (first contact: relevance | returning: mention/reply bypass
//	else cooldown) → global rate limit → user rate limit → accepted
//
// Gates that reject early never touch the state of later gates.
package admission

import (
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/dealbot/internal/bus"
)

// Reason names the gate that rejected an event.
type Reason string

const (
	ReasonDuplicate    Reason = "duplicate"
	ReasonInactive     Reason = "bot_inactive"
	ReasonSelfAuthored Reason = "self_authored"
	ReasonFlood        Reason = "global_flood"
	ReasonSpam         Reason = "user_spam"
	ReasonIrrelevant   Reason = "irrelevant"
	ReasonCooldown     Reason = "cooldown"
	ReasonGlobalRate   Reason = "global_rate_limit"
	ReasonUserRate     Reason = "user_rate_limit"
)

// Outcome is the terminal result of admission.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeCommand          // admin command handled, Reply holds the answer
	OutcomeAccepted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommand:
		return "command"
	case OutcomeAccepted:
		return "accepted"
	default:
		return "rejected"
	}
}

// Decision is the admission result for one event.
type Decision struct {
	Outcome      Outcome
	Reason       Reason // set when rejected
	Reply        string // set for admin commands
	FirstContact bool   // user has never been answered in this conversation
	Bypass       bool   // mention or reply-to-bot skipped the cooldown
}

// Accepted reports whether the event should get a generated reply.
func (d Decision) Accepted() bool { return d.Outcome == OutcomeAccepted }

// Options configures a Controller. Zero durations and counts are not
// defaulted here; config supplies them.
type Options struct {
	AgentUserID string // events from this user are the bot's own
	AgentName   string // display name; a message containing it is a mention
	AdminUserID string // only this user may run admin commands

	GlobalMax    int
	GlobalWindow time.Duration
	UserMax      int
	UserWindow   time.Duration
	FloodMax     int
	FloodWindow  time.Duration

	Cooldown      time.Duration
	FollowupGrace time.Duration

	SpamWindow    time.Duration
	SpamThreshold int
	SpamPenalty   time.Duration

	DedupeCapacity  int
	BotPostCapacity int

	// Clock returns the current time; defaults to time.Now.
	Clock func() time.Time
}

// Stats counts admission outcomes since start.
type Stats struct {
	Accepted   int64
	Commands   int64
	Rejections map[Reason]int64
}

// Rejected returns the total number of rejected events.
func (s Stats) Rejected() int64 {
	var n int64
	for _, v := range s.Rejections {
		n += v
	}
	return n
}

// Controller owns all admission state. Every method is safe for concurrent
// use; Admit and Confirm evaluate their gates atomically.
type Controller struct {
	mu   sync.Mutex
	opts Options
	now  func() time.Time

	dedupe    *bus.DedupeCache
	botPosts  *bus.DedupeCache
	control   *ControlState
	flood     *FixedWindowLimiter
	global    *FixedWindowLimiter
	users     *KeyedLimiter
	spam      *SpamTracker
	cooldowns *CooldownTracker

	statsMu    sync.Mutex
	accepted   int64
	commands   int64
	rejections map[Reason]int64
}

// NewController builds a controller with empty state.
func NewController(opts Options) *Controller {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	start := now()

	return &Controller{
		opts:       opts,
		now:        now,
		dedupe:     bus.NewDedupeCache(opts.DedupeCapacity),
		botPosts:   bus.NewDedupeCache(opts.BotPostCapacity),
		control:    NewControlState(start),
		flood:      NewFixedWindowLimiter(opts.FloodMax, opts.FloodWindow, start),
		global:     NewFixedWindowLimiter(opts.GlobalMax, opts.GlobalWindow, start),
		users:      NewKeyedLimiter(opts.UserMax, opts.UserWindow),
		spam:       NewSpamTracker(opts.SpamWindow, opts.SpamThreshold, opts.SpamPenalty),
		cooldowns:  NewCooldownTracker(opts.Cooldown, opts.FollowupGrace),
		rejections: make(map[Reason]int64),
	}
}

// Admit runs every gate for ev in order.
func (c *Controller) Admit(ev bus.InboundEvent) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.dedupe.CheckAndRecord(ev.EntityID) {
		return c.rejectLocked(ReasonDuplicate)
	}

	if ev.UserID == c.opts.AdminUserID && c.opts.AdminUserID != "" {
		if cmd, ok := parseCommand(ev.Content); ok {
			c.count(func() { c.commands++ })
			return Decision{Outcome: OutcomeCommand, Reply: c.handleCommand(cmd, now)}
		}
	}

	if !c.control.Active() {
		return c.rejectLocked(ReasonInactive)
	}

	if ev.UserID == c.opts.AgentUserID {
		return c.rejectLocked(ReasonSelfAuthored)
	}

	if !c.flood.Allow(now) {
		return c.rejectLocked(ReasonFlood)
	}

	if c.spam.Evaluate(ev.UserID, ev.Content, now) {
		return c.rejectLocked(ReasonSpam)
	}

	d := c.responderStage(ev, now)
	if d.Outcome == OutcomeRejected {
		return c.rejectLocked(d.Reason)
	}

	if !c.global.Allow(now) {
		return c.rejectLocked(ReasonGlobalRate)
	}
	if !c.users.Allow(ev.UserID, now) {
		return c.rejectLocked(ReasonUserRate)
	}

	c.count(func() { c.accepted++ })
	return d
}

// Confirm re-evaluates only the responder/cooldown stage for an event that
// was admitted earlier and waited in queue. Rate counters are not touched.
func (c *Controller) Confirm(ev bus.InboundEvent) Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.responderStage(ev, c.now())
	if d.Outcome == OutcomeRejected {
		c.count(func() { c.accepted-- })
		return c.rejectLocked(d.Reason)
	}
	return d
}

// RecordReply commits a confirmed reply: cooldown and responded set.
func (c *Controller) RecordReply(ev bus.InboundEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns.RecordReply(ev.ConversationID, ev.UserID, c.now())
}

// HasResponded reports whether the bot already answered userID in the
// conversation.
func (c *Controller) HasResponded(conversationID, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldowns.HasResponded(conversationID, userID)
}

// RecordBotPost remembers a message id emitted by the bot so later replies
// to it bypass the cooldown.
func (c *Controller) RecordBotPost(messageID string) {
	if messageID == "" {
		return
	}
	c.botPosts.Record(messageID)
}

// IsBotPost reports whether messageID was emitted by the bot.
func (c *Controller) IsBotPost(messageID string) bool {
	return messageID != "" && c.botPosts.Seen(messageID)
}

// Debug reports whether the admin switched debug mode on.
func (c *Controller) Debug() bool { return c.control.Debug() }

// Active reports whether the bot is switched on.
func (c *Controller) Active() bool { return c.control.Active() }

// Stats returns a copy of the outcome counters.
func (c *Controller) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	rej := make(map[Reason]int64, len(c.rejections))
	for k, v := range c.rejections {
		rej[k] = v
	}
	return Stats{Accepted: c.accepted, Commands: c.commands, Rejections: rej}
}

func (c *Controller) responderStage(ev bus.InboundEvent, now time.Time) Decision {
	if !c.cooldowns.HasResponded(ev.ConversationID, ev.UserID) {
		if !IsRelevant(ev.Content) {
			return Decision{Outcome: OutcomeRejected, Reason: ReasonIrrelevant}
		}
		return Decision{Outcome: OutcomeAccepted, FirstContact: true}
	}

	if c.mentionsAgent(ev.Content) || c.IsBotPost(ev.ReplyingToID) {
		return Decision{Outcome: OutcomeAccepted, Bypass: true}
	}

	if c.cooldowns.InCooldown(ev.ConversationID, ev.UserID, now) {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonCooldown}
	}
	return Decision{Outcome: OutcomeAccepted}
}

func (c *Controller) mentionsAgent(content string) bool {
	name := strings.ToLower(strings.TrimSpace(c.opts.AgentName))
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), name)
}

func (c *Controller) count(fn func()) {
	c.statsMu.Lock()
	fn()
	c.statsMu.Unlock()
}

func (c *Controller) rejectLocked(reason Reason) Decision {
	c.count(func() { c.rejections[reason]++ })
	return Decision{Outcome: OutcomeRejected, Reason: reason}
}
