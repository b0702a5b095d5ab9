// Package whop connects the bot to Whop chat feeds: the developer WebSocket
// for inbound posts and the public GraphQL API for replies.
package whop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/dealbot/internal/channels"
)

const (
	DefaultGraphQLEndpoint = "https://api.whop.com/public-graphql"
	DefaultWSEndpoint      = "wss://ws-prod.whop.com/ws/developer"

	feedTypeChat = "chat_feed"

	defaultRequestsPerSecond = 5
	defaultBurst             = 5
	defaultHTTPTimeout       = 15 * time.Second
	maxErrorBody             = 512
)

const (
	setTypingMutation   = `mutation setTypingIndicator($input: SetTypingIndicatorInput!) { setTypingIndicator(input: $input) }`
	sendMessageMutation = `mutation sendMessage($input: SendMessageInput!) { sendMessage(input: $input) }`
)

// ClientOptions configures the GraphQL client.
type ClientOptions struct {
	Endpoint    string
	APIKey      string
	AgentUserID string // sent as x-on-behalf-of

	// RequestsPerSecond paces outbound calls; Burst is the bucket size.
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client implements channels.Sender on the Whop GraphQL API.
type Client struct {
	endpoint    string
	apiKey      string
	agentUserID string
	http        *http.Client
	limiter     *rate.Limiter
}

func NewClient(opts ClientOptions) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultGraphQLEndpoint
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	return &Client{
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		agentUserID: opts.AgentUserID,
		http:        &http.Client{Timeout: opts.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
	}
}

// Headers returns the auth headers shared by GraphQL and WebSocket calls.
func Headers(apiKey, agentUserID string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+apiKey)
	h.Set("x-on-behalf-of", agentUserID)
	return h
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SetTypingIndicator toggles the agent's typing state in a feed.
func (c *Client) SetTypingIndicator(ctx context.Context, feedID string, typing bool) error {
	_, err := c.do(ctx, "setTypingIndicator", setTypingMutation, map[string]any{
		"input": map[string]any{"feedId": feedID, "feedType": feedTypeChat, "isTyping": typing},
	})
	return err
}

// SendMessage posts text into a feed and returns the created post id. The
// mutation may answer with a bare id string or an object carrying "id"; an
// unrecognised shape yields an empty id without error.
func (c *Client) SendMessage(ctx context.Context, feedID, text string) (string, error) {
	raw, err := c.do(ctx, "sendMessage", sendMessageMutation, map[string]any{
		"input": map[string]any{"feedId": feedID, "feedType": feedTypeChat, "message": text},
	})
	if err != nil {
		return "", err
	}
	return parseMessageID(raw), nil
}

func parseMessageID(raw json.RawMessage) string {
	var id string
	if json.Unmarshal(raw, &id) == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.ID
	}
	return ""
}

func (c *Client) do(ctx context.Context, op, query string, vars map[string]any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: whop %s: %w", channels.ErrTransport, op, err)
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("%w: whop %s: marshal: %w", channels.ErrTransport, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: whop %s: %w", channels.ErrTransport, op, err)
	}
	req.Header = Headers(c.apiKey, c.agentUserID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: whop %s: %w", channels.ErrTransport, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: whop %s: HTTP %d: %s", channels.ErrTransport, op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var gr graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("%w: whop %s: decode: %w", channels.ErrTransport, op, err)
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, 0, len(gr.Errors))
		for _, e := range gr.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("%w: whop %s: %s", channels.ErrTransport, op, strings.Join(msgs, "; "))
	}
	return gr.Data[op], nil
}
