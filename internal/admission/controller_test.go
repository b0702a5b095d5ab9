package admission

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/dealbot/internal/bus"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testOptions(clock *fakeClock) Options {
	return Options{
		AgentUserID:     "agent",
		AgentName:       "DealBot",
		AdminUserID:     "admin",
		GlobalMax:       100,
		GlobalWindow:    5 * time.Minute,
		UserMax:         100,
		UserWindow:      time.Minute,
		FloodMax:        1000,
		FloodWindow:     time.Minute,
		Cooldown:        15 * time.Minute,
		FollowupGrace:   3 * time.Minute,
		SpamWindow:      2 * time.Minute,
		SpamThreshold:   3,
		SpamPenalty:     10 * time.Minute,
		DedupeCapacity:  1000,
		BotPostCapacity: 1000,
		Clock:           clock.Now,
	}
}

var entitySeq int

func event(conv, user, content string) bus.InboundEvent {
	entitySeq++
	return bus.InboundEvent{
		EntityID:       fmt.Sprintf("post_%d", entitySeq),
		ConversationID: conv,
		UserID:         user,
		Content:        content,
	}
}

func TestController_DuplicateReachesNoFurtherGate(t *testing.T) {
	clock := &fakeClock{t: t0}
	opts := testOptions(clock)
	opts.GlobalMax = 1
	c := NewController(opts)

	ev := event("feed_1", "u1", "any deals on shoes?")
	if d := c.Admit(ev); !d.Accepted() {
		t.Fatalf("first delivery rejected: %s", d.Reason)
	}
	d := c.Admit(ev)
	if d.Reason != ReasonDuplicate {
		t.Fatalf("redelivery reason = %q, want duplicate", d.Reason)
	}

	// The duplicate never consumed rate capacity: global count stays at 1.
	if snap := c.global.Snapshot(clock.Now()); snap.Count != 1 {
		t.Errorf("global count = %d, want 1", snap.Count)
	}
}

func TestController_GlobalRateLimit(t *testing.T) {
	clock := &fakeClock{t: t0}
	opts := testOptions(clock)
	opts.GlobalMax = 3
	c := NewController(opts)

	for i := 0; i < 3; i++ {
		d := c.Admit(event(fmt.Sprintf("feed_%d", i), fmt.Sprintf("u%d", i), "looking for a deal"))
		if !d.Accepted() {
			t.Fatalf("event %d rejected: %s", i+1, d.Reason)
		}
		clock.Advance(time.Minute)
	}

	d := c.Admit(event("feed_9", "u9", "looking for a deal"))
	if d.Reason != ReasonGlobalRate {
		t.Fatalf("4th event reason = %q, want %q", d.Reason, ReasonGlobalRate)
	}

	// Rejected at the global gate: the per-user window was never touched.
	if n := c.users.Tracked(); n != 3 {
		t.Errorf("tracked user windows = %d, want 3", n)
	}
}

func TestController_UserRateLimit(t *testing.T) {
	clock := &fakeClock{t: t0}
	opts := testOptions(clock)
	opts.UserMax = 2
	c := NewController(opts)

	for i := 0; i < 2; i++ {
		d := c.Admit(event(fmt.Sprintf("feed_%d", i), "u1", fmt.Sprintf("need a deal %d", i)))
		if !d.Accepted() {
			t.Fatalf("event %d rejected: %s", i+1, d.Reason)
		}
	}
	if d := c.Admit(event("feed_3", "u1", "need a deal 3")); d.Reason != ReasonUserRate {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonUserRate)
	}
}

func TestController_CooldownBypassOnMention(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	first := event("feed_1", "u1", "any deals?")
	c.RecordReply(first)
	c.RecordReply(event("feed_1", "u2", "x")) // u2 answered last

	clock.Advance(time.Minute)
	if d := c.Admit(event("feed_1", "u1", "just chatting")); d.Reason != ReasonCooldown {
		t.Fatalf("reason = %q, want cooldown", d.Reason)
	}

	d := c.Admit(event("feed_1", "u1", "hey dealbot what else?"))
	if !d.Accepted() || !d.Bypass {
		t.Fatalf("mention should bypass cooldown, got %+v", d)
	}
}

func TestController_CooldownBypassOnReplyToBotPost(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	c.RecordReply(event("feed_1", "u1", "x"))
	c.RecordReply(event("feed_1", "u2", "x"))
	c.RecordBotPost("bot_msg_1")

	ev := event("feed_1", "u1", "tell me more")
	ev.ReplyingToID = "bot_msg_1"
	if d := c.Admit(ev); !d.Accepted() || !d.Bypass {
		t.Fatalf("reply to bot post should bypass, got %+v", d)
	}

	ev = event("feed_1", "u1", "tell me more again")
	ev.ReplyingToID = "someone_else"
	if d := c.Admit(ev); d.Reason != ReasonCooldown {
		t.Errorf("reply to non-bot post reason = %q, want cooldown", d.Reason)
	}
}

func TestController_SameUserGrace(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	c.RecordReply(event("feed_1", "v", "x"))
	c.RecordReply(event("feed_1", "u", "x"))

	clock.Advance(3*time.Minute - time.Millisecond)
	if d := c.Admit(event("feed_1", "u", "and what about adidas")); !d.Accepted() {
		t.Fatalf("same-user follow-up inside grace rejected: %s", d.Reason)
	}
	if d := c.Admit(event("feed_1", "v", "and what about adidas")); d.Reason != ReasonCooldown {
		t.Errorf("other user inside cooldown reason = %q, want cooldown", d.Reason)
	}

	clock.Advance(12*time.Minute + 2*time.Millisecond) // cooldown + 1ms
	if d := c.Admit(event("feed_1", "v", "ok what about puma")); !d.Accepted() {
		t.Errorf("other user after cooldown rejected: %s", d.Reason)
	}
}

func TestController_SpamThreshold(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	for i := 0; i < 2; i++ {
		c.Admit(event(fmt.Sprintf("feed_%d", i), "u1", "FREE PROMO"))
		clock.Advance(10 * time.Second)
	}
	if d := c.Admit(event("feed_9", "u1", "FREE PROMO")); d.Reason != ReasonSpam {
		t.Fatalf("third repeat reason = %q, want spam", d.Reason)
	}
	clock.Advance(time.Minute)
	if d := c.Admit(event("feed_9", "u1", "a different deal question")); d.Reason != ReasonSpam {
		t.Errorf("distinct message during silence reason = %q, want spam", d.Reason)
	}
}

func TestController_FirstContactFastPath(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	// Another user was just answered in the conversation.
	c.RecordReply(event("feed_1", "u1", "x"))
	clock.Advance(time.Second)

	d := c.Admit(event("feed_1", "newcomer", "any discount codes for uber?"))
	if !d.Accepted() || !d.FirstContact {
		t.Fatalf("first relevant message from unseen user = %+v, want accepted first contact", d)
	}

	if d := c.Admit(event("feed_1", "newcomer2", "lol")); d.Reason != ReasonIrrelevant {
		t.Errorf("irrelevant first message reason = %q, want irrelevant", d.Reason)
	}
}

func TestController_GateOrder(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	if d := c.Admit(event("feed_1", "agent", "any deals?")); d.Reason != ReasonSelfAuthored {
		t.Errorf("own message reason = %q, want self_authored", d.Reason)
	}

	if d := c.Admit(event("feed_1", "admin", "!bot off")); d.Outcome != OutcomeCommand {
		t.Fatalf("admin command outcome = %v", d.Outcome)
	}
	if d := c.Admit(event("feed_1", "u1", "any deals?")); d.Reason != ReasonInactive {
		t.Errorf("inactive reason = %q, want bot_inactive", d.Reason)
	}
	// Inactive check precedes the self-authored check.
	if d := c.Admit(event("feed_1", "agent", "any deals?")); d.Reason != ReasonInactive {
		t.Errorf("own message while inactive reason = %q, want bot_inactive", d.Reason)
	}
	// Admin commands still work while inactive.
	if d := c.Admit(event("feed_1", "admin", "!BOT ON")); d.Outcome != OutcomeCommand || d.Reply != "Bot activated." {
		t.Errorf("bot on = %+v", d)
	}
}

func TestController_FloodGate(t *testing.T) {
	clock := &fakeClock{t: t0}
	opts := testOptions(clock)
	opts.FloodMax = 2
	c := NewController(opts)

	c.Admit(event("feed_1", "u1", "lol"))
	c.Admit(event("feed_2", "u2", "lol"))
	if d := c.Admit(event("feed_3", "u3", "any deals?")); d.Reason != ReasonFlood {
		t.Errorf("reason = %q, want global_flood", d.Reason)
	}
}

func TestController_AdminCommands(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	tests := []struct {
		text string
		want string
	}{
		{"!bot on", "Bot is already active."},
		{"!bot off", "Bot deactivated."},
		{"!BOT OFF", "Bot is already inactive."},
		{"!bot debug on", "Debug mode activated."},
		{"!bot debug off", "Debug mode deactivated."},
		{"!bot dance", unknownCommandText},
		{"!bot", unknownCommandText},
		{"!bot help", helpText},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			d := c.Admit(event("feed_admin", "admin", tt.text))
			if d.Outcome != OutcomeCommand {
				t.Fatalf("outcome = %v, want command", d.Outcome)
			}
			if d.Reply != tt.want {
				t.Errorf("reply = %q, want %q", d.Reply, tt.want)
			}
		})
	}

	d := c.Admit(event("feed_admin", "admin", "!bot status"))
	for _, want := range []string{"Active: no", "Debug: no", "Rate limit: 0/100", "Reset in: 300s"} {
		if !strings.Contains(d.Reply, want) {
			t.Errorf("status missing %q:\n%s", want, d.Reply)
		}
	}
}

func TestController_AdminCommandRestrictedToAdmin(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	d := c.Admit(event("feed_1", "u1", "!bot off"))
	if d.Outcome == OutcomeCommand {
		t.Fatal("non-admin must not run commands")
	}
	if !c.Active() {
		t.Error("bot deactivated by non-admin")
	}

	// Admin chatter that is not a command goes through the normal gates.
	for _, text := range []string{"bottle deals anyone?", "bot what nike deals today?"} {
		if d := c.Admit(event("feed_1", "admin", text)); !d.Accepted() {
			t.Errorf("admin message %q: outcome %v reason %q, want accepted", text, d.Outcome, d.Reason)
		}
	}
}

func TestController_ConfirmAfterQueuedReply(t *testing.T) {
	clock := &fakeClock{t: t0}
	c := NewController(testOptions(clock))

	c.RecordReply(event("feed_1", "u1", "x"))
	c.RecordReply(event("feed_1", "u2", "x"))
	clock.Advance(20 * time.Minute)

	queued := event("feed_1", "u1", "what about food deals")
	if d := c.Admit(queued); !d.Accepted() {
		t.Fatalf("admit rejected: %s", d.Reason)
	}

	// While queued, the bot answered someone else.
	c.RecordReply(event("feed_1", "u3", "x"))
	if d := c.Confirm(queued); d.Reason != ReasonCooldown {
		t.Errorf("confirm reason = %q, want cooldown", d.Reason)
	}

	stats := c.Stats()
	if stats.Accepted != 0 || stats.Rejections[ReasonCooldown] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
