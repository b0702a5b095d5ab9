// Package dispatch delivers one generated reply to the chat platform:
// typing on, reply, typing off.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/dealbot/internal/channels"
)

// ErrNoReply is returned when generation produced nothing to send.
var ErrNoReply = errors.New("no reply generated")

// typingOffTimeout bounds the typing-off call, which runs even after the
// caller's context ended.
const typingOffTimeout = 5 * time.Second

// PostRecorder remembers ids of messages the bot sent.
type PostRecorder interface {
	RecordBotPost(messageID string)
}

// GenerateFunc produces the reply text while the typing indicator is shown.
type GenerateFunc func(ctx context.Context) (string, error)

// Result describes a delivered reply.
type Result struct {
	MessageID string
	Text      string
}

// Dispatcher wraps a Sender.
type Dispatcher struct {
	sender channels.Sender
	posts  PostRecorder
}

func New(sender channels.Sender, posts PostRecorder) *Dispatcher {
	return &Dispatcher{sender: sender, posts: posts}
}

// Dispatch turns typing on, runs generate, sends its text and turns typing
// off. Typing failures are logged only. Generation errors are returned as-is
// and send errors wrap channels.ErrTransport; in both cases nothing is
// recorded. On success the new message id goes to the PostRecorder.
func (d *Dispatcher) Dispatch(ctx context.Context, conversationID string, generate GenerateFunc) (Result, error) {
	d.typing(ctx, conversationID, true)
	defer func() {
		offCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), typingOffTimeout)
		defer cancel()
		d.typing(offCtx, conversationID, false)
	}()

	text, err := generate(ctx)
	if err != nil {
		return Result{}, err
	}
	if text == "" {
		return Result{}, ErrNoReply
	}

	id, err := d.sender.SendMessage(ctx, conversationID, text)
	if err != nil {
		if !errors.Is(err, channels.ErrTransport) {
			err = fmt.Errorf("%w: %w", channels.ErrTransport, err)
		}
		return Result{}, err
	}

	if d.posts != nil {
		d.posts.RecordBotPost(id)
	}
	return Result{MessageID: id, Text: text}, nil
}

func (d *Dispatcher) typing(ctx context.Context, conversationID string, on bool) {
	if err := d.sender.SetTypingIndicator(ctx, conversationID, on); err != nil {
		slog.Warn("typing indicator failed", "conversation_id", conversationID, "typing", on, "error", err)
	}
}
