package domain

import (
	"errors"
	"time"
)

// WebSocket event types from client.
const (
	EventSendDirectMessage = "send_direct_message"
	EventSendGroupMessage  = "send_group_message"
	EventMarkAsRead        = "mark_as_read"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventChatCleared       = "chat_cleared"
	EventPing              = "ping"
)

// WebSocket event types to client. Typing and clear events reuse the
// inbound names.
const (
	EventMessageReceived   = "message_received"
	EventUserStatusChanged = "user_status_changed"
	EventUserRegistered    = "user_registered"
	EventGroupDeleted      = "group_deleted"
	EventError             = "error"
	EventPong              = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseEvent is the envelope shared by every WebSocket event.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events. Realtime payload keys are camelCase; the
// embedded Message keeps its REST representation.

type SendDirectMessageEvent struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipientId" validate:"required,max=36"`
	Content     string `json:"content" validate:"required,max=4000"`
}

type SendGroupMessageEvent struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId" validate:"required,max=36"`
	Content string `json:"content" validate:"required,max=4000"`
}

type MarkAsReadEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId" validate:"required,max=80"`
}

// SignalEvent carries typing_start, typing_stop and chat_cleared. When both
// ids are present the recipient wins.
type SignalEvent struct {
	Type        string `json:"type"`
	RecipientID string `json:"recipientId,omitempty" validate:"required_without=GroupID,max=36"`
	GroupID     string `json:"groupId,omitempty" validate:"required_without=RecipientID,max=36"`
}

// Server -> Client events

type MessageReceivedEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

func NewMessageReceivedEvent(msg *Message) *MessageReceivedEvent {
	return &MessageReceivedEvent{Type: EventMessageReceived, Message: msg}
}

type UserStatusChangedEvent struct {
	Type     string    `json:"type"`
	Identity string    `json:"identity"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

func NewUserStatusChangedEvent(userID string, online bool, lastSeen time.Time) *UserStatusChangedEvent {
	return &UserStatusChangedEvent{
		Type:     EventUserStatusChanged,
		Identity: userID,
		Online:   online,
		LastSeen: lastSeen,
	}
}

// SignalOutEvent relays a transient signal. ConversationID is the sender's
// identity for direct signals and the group id for group signals.
type SignalOutEvent struct {
	Type           string `json:"type"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type UserRegisteredEvent struct {
	Type string       `json:"type"`
	User UserResponse `json:"user"`
}

type GroupDeletedEvent struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId"`
}

type TypeOnlyEvent struct {
	Type string `json:"type"`
}

var (
	PingEvent = &TypeOnlyEvent{Type: EventPing}
	PongEvent = &TypeOnlyEvent{Type: EventPong}
)

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorEvent(code, message string) *ErrorEvent {
	return &ErrorEvent{
		Type:    EventError,
		Code:    code,
		Message: message,
	}
}

// ErrorEventFor classifies err into an outbound error event.
func ErrorEventFor(err error) *ErrorEvent {
	return NewErrorEvent(ErrorCode(err), PublicMessage(err))
}

// ErrorCode maps an error kind to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrCodeBadRequest
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrUnauthorized):
		return ErrCodeUnauthorized
	case errors.Is(err, ErrConflict):
		return ErrCodeConflict
	default:
		return ErrCodeInternalError
	}
}
