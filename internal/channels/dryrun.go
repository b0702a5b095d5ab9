package channels

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// SentMessage is a reply captured by DryRunSender.
type SentMessage struct {
	ID             string
	ConversationID string
	Text           string
}

// DryRunSender logs replies instead of posting them and hands out random
// message ids.
type DryRunSender struct {
	mu   sync.Mutex
	sent []SentMessage
}

func NewDryRunSender() *DryRunSender { return &DryRunSender{} }

func (s *DryRunSender) SetTypingIndicator(_ context.Context, conversationID string, typing bool) error {
	slog.Debug("dry-run: typing indicator", "conversation_id", conversationID, "typing", typing)
	return nil
}

func (s *DryRunSender) SendMessage(_ context.Context, conversationID, text string) (string, error) {
	id := "dry_" + uuid.NewString()
	slog.Info("dry-run: reply", "conversation_id", conversationID, "message_id", id, "text", Truncate(text, 200))

	s.mu.Lock()
	s.sent = append(s.sent, SentMessage{ID: id, ConversationID: conversationID, Text: text})
	s.mu.Unlock()
	return id, nil
}

// Sent returns a copy of every captured reply in send order.
func (s *DryRunSender) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentMessage, len(s.sent))
	copy(out, s.sent)
	return out
}
