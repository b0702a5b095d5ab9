// Package channels defines the contract between the bot pipeline and the
// chat platform: an inbound event source and an outbound sender.
//
// Platform implementations live in subpackages (see channels/whop).
package channels

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/dealbot/internal/bus"
)

// ErrTransport wraps every failed outbound platform call.
var ErrTransport = errors.New("transport failure")

// Sender delivers replies to the platform.
type Sender interface {
	// SetTypingIndicator toggles the agent's typing state in a conversation.
	SetTypingIndicator(ctx context.Context, conversationID string, typing bool) error

	// SendMessage posts text and returns the platform-assigned message id.
	SendMessage(ctx context.Context, conversationID, text string) (string, error)
}

// Source produces inbound events until ctx is cancelled.
type Source interface {
	// Name returns the channel identifier (e.g. "whop").
	Name() string

	// Run blocks, publishing parsed events to out. Reconnects are handled
	// internally; Run returns only when ctx is done or setup fails.
	Run(ctx context.Context, out chan<- bus.InboundEvent) error

	// IsRunning reports whether the stream is currently connected.
	IsRunning() bool
}

// BaseChannel provides the allow-list and connection state shared by
// platform sources. Implementations embed it.
type BaseChannel struct {
	name      string
	running   atomic.Bool
	allowList map[string]bool
}

// NewBaseChannel creates a BaseChannel. An empty allowList admits every
// conversation.
func NewBaseChannel(name string, allowList []string) *BaseChannel {
	c := &BaseChannel{name: name}
	if len(allowList) > 0 {
		c.allowList = make(map[string]bool, len(allowList))
		for _, id := range allowList {
			if id != "" {
				c.allowList[id] = true
			}
		}
	}
	return c
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is connected.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the connection state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// HasAllowList returns true if an allow-list is configured.
func (c *BaseChannel) HasAllowList() bool { return len(c.allowList) > 0 }

// IsAllowed checks if a conversation id passes the allow-list.
func (c *BaseChannel) IsAllowed(conversationID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	return c.allowList[conversationID]
}

// Publish forwards ev to out unless its conversation is filtered. It returns
// false when the event was dropped or ctx ended first.
func (c *BaseChannel) Publish(ctx context.Context, out chan<- bus.InboundEvent, ev bus.InboundEvent) bool {
	if !c.IsAllowed(ev.ConversationID) {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Truncate shortens s to maxWidth display columns, appending "..." if
// truncated.
func Truncate(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "...")
}
