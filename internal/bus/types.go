package bus

// InboundEvent is one direct-message post delivered by the event stream.
// EntityID is opaque and identifies one true delivery; the platform may
// redeliver the same EntityID.
type InboundEvent struct {
	EntityID       string `json:"entity_id"`
	ConversationID string `json:"conversation_id"` // platform feed id
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name,omitempty"`
	Content        string `json:"content"`
	ReplyingToID   string `json:"replying_to_id,omitempty"` // post id this message replies to
}

// DisplayName returns the sender name, falling back to the user ID.
func (e InboundEvent) DisplayName() string {
	if e.UserName != "" {
		return e.UserName
	}
	return e.UserID
}
