package pubsub

import "time"

// Channels of the chat event bus.
const (
	ChannelMessages = "chat:messages"
	ChannelPresence = "chat:presence"
	ChannelGroups   = "chat:groups"

	// PatternAll matches every chat channel. The cross-instance relay
	// subscribes with it.
	PatternAll = "chat:*"
)

// Channels lists the concrete channels the Kafka driver provisions topics for.
var Channels = []string{ChannelMessages, ChannelPresence, ChannelGroups}

// Event types.
const (
	EventMessageCreated  = "message.created"
	EventPresenceChanged = "presence.changed"
	EventGroupDeleted    = "group.deleted"
)

// MessageCreatedPayload is published after a message is persisted. It carries
// the content and resolved recipients so other instances can deliver it to
// the sessions they hold without reading the store.
type MessageCreatedPayload struct {
	MessageID      string    `json:"message_id"`
	SenderID       string    `json:"sender_id"`
	Kind           string    `json:"kind"`
	ConversationID string    `json:"conversation_id"`
	RecipientID    string    `json:"recipient_id,omitempty"`
	GroupID        string    `json:"group_id,omitempty"`
	Content        string    `json:"content"`
	Recipients     []string  `json:"recipients"`
	CreatedAt      time.Time `json:"created_at"`
}

// PresenceChangedPayload is published when an identity attaches or detaches.
type PresenceChangedPayload struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// GroupDeletedPayload is published after a group and its messages are removed.
type GroupDeletedPayload struct {
	GroupID   string   `json:"group_id"`
	MemberIDs []string `json:"member_ids"`
}
