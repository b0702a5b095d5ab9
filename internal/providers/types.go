package providers

import (
	"context"
	"errors"
)

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrUpstream wraps every failure of the language-model call.
	ErrUpstream = errors.New("upstream failure")

	// ErrEmptyCompletion is returned when the model answered with no text.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Message represents one role-tagged conversation turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Completer is the language-model collaborator.
type Completer interface {
	// Complete sends the turns to the model and returns the reply text.
	// Failures, including an empty reply, wrap ErrUpstream.
	Complete(ctx context.Context, turns []Message) (string, error)

	// Name returns the provider identifier (e.g. "openai").
	Name() string
}
