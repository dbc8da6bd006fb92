package domain

import (
	"strings"
	"time"
)

// MessageKind is the stored shape of a message target.
type MessageKind string

const (
	MessageKindDirect MessageKind = "direct"
	MessageKindGroup  MessageKind = "group"
)

// Message is an immutable chat message.
type Message struct {
	ID             string      `json:"id"`
	SenderID       string      `json:"sender_id"`
	RecipientID    string      `json:"recipient_id,omitempty"`
	GroupID        string      `json:"group_id,omitempty"`
	ConversationID string      `json:"conversation_id"`
	Content        string      `json:"content"`
	Kind           MessageKind `json:"kind"`
	CreatedAt      time.Time   `json:"created_at"`
}

// NewMessage validates content and builds an unsaved message for target.
// Content is stored trimmed.
func NewMessage(senderID string, target Target, content string) (*Message, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, NewValidationError("message content cannot be empty")
	}

	msg := &Message{
		SenderID:       senderID,
		ConversationID: target.ConversationID(senderID),
		Content:        content,
		Kind:           target.MessageKind(),
	}
	if target.IsGroup() {
		msg.GroupID = target.ID()
	} else {
		msg.RecipientID = target.ID()
	}
	return msg, nil
}

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(36);primaryKey"`
	SenderID       string    `gorm:"type:varchar(36);not null;index"`
	RecipientID    string    `gorm:"type:varchar(36);index:idx_messages_recipient_kind"`
	GroupID        string    `gorm:"type:varchar(36);index:idx_messages_group_created"`
	ConversationID string    `gorm:"type:varchar(80);not null;index:idx_messages_conversation_created"`
	Content        string    `gorm:"type:text;not null"`
	Kind           string    `gorm:"type:varchar(16);not null;index:idx_messages_recipient_kind"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_messages_conversation_created;index:idx_messages_group_created"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:             m.ID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		GroupID:        m.GroupID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		Kind:           MessageKind(m.Kind),
		CreatedAt:      m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		ID:             msg.ID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		GroupID:        msg.GroupID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		Kind:           string(msg.Kind),
		CreatedAt:      msg.CreatedAt,
	}
}

// MessagePage is one page of conversation history, oldest first.
type MessagePage struct {
	Messages []*Message `json:"messages"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
	Total    int64      `json:"total"`
}
