package whop

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/dealbot/internal/bus"
)

// ErrMalformedEvent is returned for frames that are not JSON or carry a
// direct-message post without its required ids.
var ErrMalformedEvent = errors.New("malformed event")

type dmsPost struct {
	EntityID         string `json:"entityId"`
	FeedID           string `json:"feedId"`
	UserID           string `json:"userId"`
	Content          string `json:"content"`
	ReplyingToPostID string `json:"replyingToPostId"`
	User             *struct {
		Name string `json:"name"`
	} `json:"user"`
}

// envelope is the subset of a developer-socket frame the bot reads. Flag
// fields stay raw since only their truthiness matters.
type envelope struct {
	FeedEntity *struct {
		DmsPost                 *dmsPost        `json:"dmsPost"`
		PostReactionCountUpdate json.RawMessage `json:"postReactionCountUpdate"`
	} `json:"feedEntity"`
	BroadcastResponse *struct {
		TypingIndicator json.RawMessage `json:"typingIndicator"`
	} `json:"broadcastResponse"`

	GoFetchNotifications     json.RawMessage `json:"goFetchNotifications"`
	MarketplaceStats         json.RawMessage `json:"marketplaceStats"`
	ExperiencePreviewContent json.RawMessage `json:"experiencePreviewContent"`
	ChannelSubscriptionState json.RawMessage `json:"channelSubscriptionState"`
	AccessPassMember         json.RawMessage `json:"accessPassMember"`
}

func (e *envelope) isSystem() bool {
	if truthy(e.GoFetchNotifications) || truthy(e.MarketplaceStats) ||
		truthy(e.ExperiencePreviewContent) || truthy(e.ChannelSubscriptionState) ||
		truthy(e.AccessPassMember) {
		return true
	}
	if e.BroadcastResponse != nil && truthy(e.BroadcastResponse.TypingIndicator) {
		return true
	}
	return e.FeedEntity != nil && truthy(e.FeedEntity.PostReactionCountUpdate)
}

// truthy follows JSON-value truthiness: absent, null, false, 0 and "" are false.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch string(v) {
	case "null", "false", "0", `""`:
		return false
	}
	return true
}

// ParseEnvelope decodes one frame. It returns (nil, nil) for frames that are
// not direct-message posts: system notifications, typing and reaction
// updates, presence pings and unknown shapes.
func ParseEnvelope(data []byte) (*bus.InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if env.isSystem() || env.FeedEntity == nil || env.FeedEntity.DmsPost == nil {
		return nil, nil
	}

	p := env.FeedEntity.DmsPost
	var missing []string
	if p.EntityID == "" {
		missing = append(missing, "entityId")
	}
	if p.FeedID == "" {
		missing = append(missing, "feedId")
	}
	if p.UserID == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: dmsPost missing %v", ErrMalformedEvent, missing)
	}

	ev := &bus.InboundEvent{
		EntityID:       p.EntityID,
		ConversationID: p.FeedID,
		UserID:         p.UserID,
		Content:        p.Content,
		ReplyingToID:   p.ReplyingToPostID,
	}
	if p.User != nil {
		ev.UserName = p.User.Name
	}
	return ev, nil
}
