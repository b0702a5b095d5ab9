package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the deal bot.
type Config struct {
	Whop         WhopConfig         `json:"whop"`
	OpenAI       OpenAIConfig       `json:"openai"`
	Bot          BotConfig          `json:"bot"`
	Limits       LimitsConfig       `json:"limits"`
	Conversation ConversationConfig `json:"conversation"`
	Knowledge    KnowledgeConfig    `json:"knowledge"`
	Offers       OffersConfig       `json:"offers"`
	Telemetry    TelemetryConfig    `json:"telemetry,omitempty"`
}

// WhopConfig configures the platform connection. Secrets usually come from
// the environment.
type WhopConfig struct {
	APIKey            string   `env:"WHOP_API_KEY"       json:"api_key,omitempty"`
	AgentUserID       string   `env:"WHOP_AGENT_USER_ID" json:"agent_user_id,omitempty"`
	CompanyID         string   `env:"WHOP_COMPANY_ID"    json:"company_id,omitempty"`             // logged at startup only
	TargetFeedID      string   `env:"TARGET_FEED_ID"     json:"target_feed_id,omitempty"`         // logged at startup only, never filters
	Feeds             []string `env:"DEALBOT_FEEDS"      json:"feeds,omitempty" envSeparator:","` // empty = every feed
	WSEndpoint        string   `json:"ws_endpoint,omitempty"`
	GraphQLEndpoint   string   `json:"graphql_endpoint,omitempty"`
	ReconnectDelay    string   `json:"reconnect_delay,omitempty"`     // Go duration (default "5s")
	RequestsPerSecond float64  `json:"requests_per_second,omitempty"` // outbound GraphQL pacing
}

// OpenAIConfig configures the language-model call.
type OpenAIConfig struct {
	APIKey      string  `env:"OPENAI_API_KEY"  json:"api_key,omitempty"`
	APIBase     string  `env:"OPENAI_API_BASE" json:"api_base,omitempty"`
	Model       string  `env:"OPENAI_MODEL"    json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Timeout     string  `json:"timeout,omitempty"` // Go duration (default "30s")
}

// BotConfig identifies the admin and the name users mention the bot by.
type BotConfig struct {
	AdminUserID string `env:"BOT_ADMIN_USER_ID" json:"admin_user_id,omitempty"`
	AgentName   string `env:"BOT_AGENT_NAME"    json:"agent_name,omitempty"`
}

// LimitsConfig holds the admission thresholds. Durations are Go duration
// strings.
type LimitsConfig struct {
	GlobalMax      int    `json:"global_max"`
	GlobalWindow   string `json:"global_window"`
	UserMax        int    `json:"user_max"`
	UserWindow     string `json:"user_window"`
	FloodMax       int    `json:"flood_max"`
	FloodWindow    string `json:"flood_window"`
	Cooldown       string `json:"cooldown"`
	FollowupGrace  string `json:"followup_grace"`
	SpamWindow     string `json:"spam_window"`
	SpamThreshold  int    `json:"spam_threshold"`
	SpamPenalty    string `json:"spam_penalty"`
	DedupeCapacity int    `json:"dedupe_capacity"`
}

// ConversationConfig bounds the per-conversation model context.
type ConversationConfig struct {
	MaxTurns int    `json:"max_turns"`
	Timeout  string `json:"timeout"`
}

// KnowledgeConfig points at the static prompt and offer catalog files.
type KnowledgeConfig struct {
	PromptFile string `env:"DEALBOT_PROMPT_FILE" json:"prompt_file,omitempty"`
	OffersFile string `env:"DEALBOT_OFFERS_FILE" json:"offers_file,omitempty"`
}

// OffersConfig tunes the offer matcher.
type OffersConfig struct {
	EnrichReplies bool    `json:"enrich_replies"`
	MinScore      float64 `json:"min_score"`
}

// TelemetryConfig configures OpenTelemetry export for traces.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317", "otel.example.com:4318")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection, for local collectors
	ServiceName string            `json:"service_name,omitempty"` // OTEL service name (default "dealbot")
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}

// Resolved durations, falling back to defaults for empty or invalid values.
// Validate reports invalid ones.

func (w WhopConfig) ReconnectDelayDuration() time.Duration {
	return parseDuration(w.ReconnectDelay, 5*time.Second)
}

func (o OpenAIConfig) TimeoutDuration() time.Duration {
	return parseDuration(o.Timeout, 30*time.Second)
}

func (c ConversationConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, 30*time.Minute)
}

// Windows holds the parsed admission durations.
type Windows struct {
	Global, User, Flood     time.Duration
	Cooldown, FollowupGrace time.Duration
	Spam, SpamPenalty       time.Duration
}

// Windows parses every admission duration.
func (l LimitsConfig) Windows() Windows {
	return Windows{
		Global:        parseDuration(l.GlobalWindow, 5*time.Minute),
		User:          parseDuration(l.UserWindow, time.Minute),
		Flood:         parseDuration(l.FloodWindow, time.Minute),
		Cooldown:      parseDuration(l.Cooldown, 15*time.Minute),
		FollowupGrace: parseDuration(l.FollowupGrace, 3*time.Minute),
		Spam:          parseDuration(l.SpamWindow, 2*time.Minute),
		SpamPenalty:   parseDuration(l.SpamPenalty, 10*time.Minute),
	}
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// MissingError lists required settings that are empty.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Validate checks required settings, duration syntax and count ranges. A
// *MissingError is returned when required keys are empty.
func (c *Config) Validate() error {
	var missing []string
	for _, req := range []struct {
		key, val string
	}{
		{"WHOP_API_KEY", c.Whop.APIKey},
		{"WHOP_AGENT_USER_ID", c.Whop.AgentUserID},
		{"OPENAI_API_KEY", c.OpenAI.APIKey},
		{"BOT_ADMIN_USER_ID", c.Bot.AdminUserID},
	} {
		if strings.TrimSpace(req.val) == "" {
			missing = append(missing, req.key)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	for name, s := range map[string]string{
		"whop.reconnect_delay":  c.Whop.ReconnectDelay,
		"openai.timeout":        c.OpenAI.Timeout,
		"limits.global_window":  c.Limits.GlobalWindow,
		"limits.user_window":    c.Limits.UserWindow,
		"limits.flood_window":   c.Limits.FloodWindow,
		"limits.cooldown":       c.Limits.Cooldown,
		"limits.followup_grace": c.Limits.FollowupGrace,
		"limits.spam_window":    c.Limits.SpamWindow,
		"limits.spam_penalty":   c.Limits.SpamPenalty,
		"conversation.timeout":  c.Conversation.Timeout,
	} {
		if s == "" {
			continue
		}
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			return fmt.Errorf("invalid duration %s=%q", name, s)
		}
	}

	for _, r := range []struct {
		name     string
		val, min int
	}{
		{"limits.global_max", c.Limits.GlobalMax, 1},
		{"limits.user_max", c.Limits.UserMax, 1},
		{"limits.flood_max", c.Limits.FloodMax, 1},
		{"limits.dedupe_capacity", c.Limits.DedupeCapacity, 1},
		{"limits.spam_threshold", c.Limits.SpamThreshold, 2},
		{"conversation.max_turns", c.Conversation.MaxTurns, 2},
	} {
		if r.val < r.min {
			return fmt.Errorf("%s must be at least %d, got %d", r.name, r.min, r.val)
		}
	}

	w := c.Limits.Windows()
	if w.FollowupGrace >= w.Cooldown {
		return fmt.Errorf("limits.followup_grace (%s) must be shorter than limits.cooldown (%s)", w.FollowupGrace, w.Cooldown)
	}
	return nil
}
