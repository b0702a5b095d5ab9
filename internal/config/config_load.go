package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Whop: WhopConfig{
			WSEndpoint:        "wss://ws-prod.whop.com/ws/developer",
			GraphQLEndpoint:   "https://api.whop.com/public-graphql",
			ReconnectDelay:    "5s",
			RequestsPerSecond: 5,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4",
			MaxTokens:   150,
			Temperature: 0.7,
			Timeout:     "30s",
		},
		Bot: BotConfig{
			AgentName: "dealbot",
		},
		Limits: LimitsConfig{
			GlobalMax:      3,
			GlobalWindow:   "5m",
			UserMax:        5,
			UserWindow:     "1m",
			FloodMax:       30,
			FloodWindow:    "1m",
			Cooldown:       "15m",
			FollowupGrace:  "3m",
			SpamWindow:     "2m",
			SpamThreshold:  3,
			SpamPenalty:    "10m",
			DedupeCapacity: 1000,
		},
		Conversation: ConversationConfig{
			MaxTurns: 10,
			Timeout:  "30m",
		},
		Knowledge: KnowledgeConfig{
			PromptFile: "./lib/knowledge/prompts.txt",
			OffersFile: "./lib/knowledge/offers.txt",
		},
		Offers: OffersConfig{
			EnrichReplies: true,
			MinScore:      3,
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: "dealbot",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file yields defaults plus env.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overlays env vars onto the config. Env vars take
// precedence over file values; unset vars leave fields untouched.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

const secretMask = "***"

// MaskedCopy returns a deep copy of the config with all secret fields masked.
func (c *Config) MaskedCopy() *Config {
	data, err := json.Marshal(c)
	if err != nil {
		return &Config{}
	}
	cp := &Config{}
	if err := json.Unmarshal(data, cp); err != nil {
		return &Config{}
	}

	maskNonEmpty(&cp.Whop.APIKey)
	maskNonEmpty(&cp.OpenAI.APIKey)
	for k := range cp.Telemetry.Headers {
		cp.Telemetry.Headers[k] = secretMask
	}
	return cp
}

func maskNonEmpty(s *string) {
	if *s != "" {
		*s = secretMask
	}
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
