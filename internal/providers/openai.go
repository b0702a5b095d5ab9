package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultOpenAIModel       = "gpt-4"
	DefaultOpenAIMaxTokens   = 150
	DefaultOpenAITemperature = 0.7
	defaultOpenAITimeout     = 60 * time.Second
)

// OpenAIOptions configures an OpenAIProvider. Zero values fall back to the
// defaults above.
type OpenAIOptions struct {
	APIKey      string
	APIBase     string // optional, for OpenAI-compatible gateways
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// OpenAIProvider implements Completer on the chat completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

func NewOpenAIProvider(opts OpenAIOptions) *OpenAIProvider {
	config := openai.DefaultConfig(opts.APIKey)
	if base := strings.TrimRight(opts.APIBase, "/"); base != "" {
		config.BaseURL = base
	}

	p := &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
	if p.model == "" {
		p.model = DefaultOpenAIModel
	}
	if p.maxTokens <= 0 {
		p.maxTokens = DefaultOpenAIMaxTokens
	}
	if p.temperature <= 0 {
		p.temperature = DefaultOpenAITemperature
	}
	if p.timeout <= 0 {
		p.timeout = defaultOpenAITimeout
	}
	return p
}

func (p *OpenAIProvider) Name() string  { return "openai" }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete sends the turns in order and returns the first choice, trimmed.
func (p *OpenAIProvider) Complete(ctx context.Context, turns []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai chat completion: %w", ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", ErrUpstream, ErrEmptyCompletion)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: %w", ErrUpstream, ErrEmptyCompletion)
	}
	return text, nil
}
