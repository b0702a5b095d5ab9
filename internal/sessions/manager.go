// Package sessions keeps the bounded per-conversation history sent to the
// language model. Histories live in memory only.
package sessions

import (
	"strings"
	"sync"
	"time"

	"github.com/nextlevelbuilder/dealbot/internal/providers"
)

const (
	DefaultMaxTurns = 10
	DefaultTimeout  = 30 * time.Minute
)

// systemLead opens every system turn ahead of the knowledge files.
const systemLead = "You are a helpful bot in a group chat. Only respond when someone is genuinely looking for deals, offers, or recommendations. Be natural and concise."

// BuildSystemPrompt joins the fixed lead-in, the prompt file and the offer
// catalog text into the system turn content.
func BuildSystemPrompt(prompt, catalog string) string {
	parts := []string{systemLead}
	if p := strings.TrimSpace(prompt); p != "" {
		parts = append(parts, p)
	}
	if c := strings.TrimSpace(catalog); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "\n\n")
}

// Context is the history of one conversation. Messages[0] is always the
// system turn.
type Context struct {
	Key      string              `json:"key"` // conversation id
	Messages []providers.Message `json:"messages"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`
}

// Manager owns every conversation context. Safe for concurrent use.
type Manager struct {
	contexts     map[string]*Context
	mu           sync.Mutex
	systemPrompt string
	maxTurns     int
	timeout      time.Duration
	now          func() time.Time
}

// NewManager creates a manager. maxTurns counts the system turn and is at
// least 2; timeout is the idle time after which a context starts fresh.
func NewManager(systemPrompt string, maxTurns int, timeout time.Duration) *Manager {
	if maxTurns < 2 {
		maxTurns = DefaultMaxTurns
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		contexts:     make(map[string]*Context),
		systemPrompt: systemPrompt,
		maxTurns:     maxTurns,
		timeout:      timeout,
		now:          time.Now,
	}
}

// SetClock replaces the time source.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Append adds a turn to the conversation and returns a copy of the resulting
// history. A missing or expired context is replaced by a fresh one holding
// only the system turn. When the history exceeds maxTurns, the system turn
// and the newest maxTurns-1 turns are kept.
func (m *Manager) Append(key, role, content string) []providers.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.contexts[key]
	if !ok || now.Sub(c.Updated) > m.timeout {
		c = m.freshLocked(key, now)
		m.contexts[key] = c
	}

	c.Messages = append(c.Messages, providers.Message{Role: role, Content: content})
	if len(c.Messages) > m.maxTurns {
		kept := make([]providers.Message, 0, m.maxTurns)
		kept = append(kept, c.Messages[0])
		kept = append(kept, c.Messages[len(c.Messages)-(m.maxTurns-1):]...)
		c.Messages = kept
	}
	c.Updated = now

	return copyMessages(c.Messages)
}

// GetHistory returns a copy of the conversation history, or nil.
func (m *Manager) GetHistory(key string) []providers.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contexts[key]
	if !ok {
		return nil
	}
	return copyMessages(c.Messages)
}

// Prune removes contexts idle longer than the timeout and returns how many
// were removed.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, c := range m.contexts {
		if now.Sub(c.Updated) > m.timeout {
			delete(m.contexts, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live contexts.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contexts)
}

func (m *Manager) freshLocked(key string, now time.Time) *Context {
	return &Context{
		Key:      key,
		Messages: []providers.Message{{Role: providers.RoleSystem, Content: m.systemPrompt}},
		Created:  now,
		Updated:  now,
	}
}

func copyMessages(src []providers.Message) []providers.Message {
	msgs := make([]providers.Message, len(src))
	copy(msgs, src)
	return msgs
}
