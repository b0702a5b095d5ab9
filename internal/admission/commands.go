package admission

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ControlState is the runtime on/off and debug switch, mutated only by admin
// commands. Safe for concurrent use.
type ControlState struct {
	mu         sync.RWMutex
	active     bool
	debug      bool
	lastToggle time.Time
}

// NewControlState returns an active, non-debug state.
func NewControlState(now time.Time) *ControlState {
	return &ControlState{active: true, lastToggle: now}
}

// Active reports whether the bot answers non-admin traffic.
func (s *ControlState) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Debug reports whether debug logging of rejections is on.
func (s *ControlState) Debug() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.debug
}

func (s *ControlState) setActive(active bool, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == active {
		return false
	}
	s.active = active
	s.lastToggle = now
	return true
}

func (s *ControlState) setDebug(debug bool) {
	s.mu.Lock()
	s.debug = debug
	s.mu.Unlock()
}

const helpText = "Commands:\n" +
	"• !bot on / !bot off - toggle the bot\n" +
	"• !bot status - show status\n" +
	"• !bot debug on / !bot debug off - toggle debug logging\n" +
	"• !bot help - show this help"

const unknownCommandText = "Unknown command. Use !bot help for available commands."

// parseCommand extracts the admin command from text. Commands start with
// "!bot" and match case-insensitively. Returns ok=false for any other text,
// which then goes through the normal gates.
func parseCommand(text string) (string, bool) {
	cmd := strings.ToLower(strings.TrimSpace(text))
	if !strings.HasPrefix(cmd, "!") {
		return "", false
	}
	cmd = cmd[1:]
	if cmd != "bot" && !strings.HasPrefix(cmd, "bot ") {
		return "", false
	}
	return strings.Join(strings.Fields(cmd), " "), true
}

// handleCommand executes an admin command and returns the reply text.
func (c *Controller) handleCommand(cmd string, now time.Time) string {
	switch cmd {
	case "bot on":
		if !c.control.setActive(true, now) {
			return "Bot is already active."
		}
		return "Bot activated."

	case "bot off":
		if !c.control.setActive(false, now) {
			return "Bot is already inactive."
		}
		return "Bot deactivated."

	case "bot status":
		return c.statusText(now)

	case "bot debug on":
		c.control.setDebug(true)
		return "Debug mode activated."

	case "bot debug off":
		c.control.setDebug(false)
		return "Debug mode deactivated."

	case "bot help":
		return helpText

	default:
		return unknownCommandText
	}
}

func (c *Controller) statusText(now time.Time) string {
	snap := c.global.Snapshot(now)
	resetIn := snap.ResetAt.Sub(now).Round(time.Second)
	stats := c.Stats()

	var b strings.Builder
	b.WriteString("Status:\n")
	fmt.Fprintf(&b, "• Active: %s\n", yesNo(c.control.Active()))
	fmt.Fprintf(&b, "• Debug: %s\n", yesNo(c.control.Debug()))
	fmt.Fprintf(&b, "• Rate limit: %d/%d\n", snap.Count, snap.Max)
	fmt.Fprintf(&b, "• Reset in: %ds\n", int(resetIn.Seconds()))
	fmt.Fprintf(&b, "• Accepted: %d, rejected: %d", stats.Accepted, stats.Rejected())
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
