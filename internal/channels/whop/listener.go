package whop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/nextlevelbuilder/dealbot/internal/bus"
	"github.com/nextlevelbuilder/dealbot/internal/channels"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	readLimit             = 1 << 20 // 1MB
)

// ListenerOptions configures the developer-socket listener.
type ListenerOptions struct {
	Endpoint       string
	APIKey         string
	AgentUserID    string
	Feeds          []string // allow-list; empty admits every feed
	ReconnectDelay time.Duration
}

// Listener streams direct-message posts from the Whop developer socket.
// It reconnects after a fixed delay until its context ends; no admission
// state lives here, so a reconnect never resets it.
type Listener struct {
	*channels.BaseChannel
	endpoint       string
	header         http.Header
	reconnectDelay time.Duration
}

func NewListener(opts ListenerOptions) *Listener {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultWSEndpoint
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Listener{
		BaseChannel:    channels.NewBaseChannel("whop", opts.Feeds),
		endpoint:       opts.Endpoint,
		header:         Headers(opts.APIKey, opts.AgentUserID),
		reconnectDelay: opts.ReconnectDelay,
	}
}

// Run connects, reads and publishes until ctx is done. It always returns
// nil after cancellation.
func (l *Listener) Run(ctx context.Context, out chan<- bus.InboundEvent) error {
	for {
		err := l.session(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("whop websocket closed, reconnecting", "error", err, "delay", l.reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(l.reconnectDelay):
		}
	}
}

func (l *Listener) session(ctx context.Context, out chan<- bus.InboundEvent) error {
	conn, _, err := websocket.Dial(ctx, l.endpoint, &websocket.DialOptions{HTTPHeader: l.header.Clone()})
	if err != nil {
		return fmt.Errorf("whop: ws dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	l.SetRunning(true)
	defer l.SetRunning(false)
	slog.Info("whop websocket connected", "url", l.endpoint)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			var ce websocket.CloseError
			if errors.As(err, &ce) {
				return fmt.Errorf("whop: ws closed: code=%d reason=%q", ce.Code, ce.Reason)
			}
			return fmt.Errorf("whop: ws read: %w", err)
		}

		ev, err := ParseEnvelope(data)
		if err != nil {
			slog.Warn("whop: dropping malformed event", "error", err, "preview", channels.Truncate(string(data), 120))
			continue
		}
		if ev == nil {
			continue
		}
		if !l.Publish(ctx, out, *ev) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("whop: feed not allowed", "conversation_id", ev.ConversationID, "entity_id", ev.EntityID)
		}
	}
}
