package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=mocks/mock_service.go -package=mocks

// Peer is a live realtime connection as seen by the services.
type Peer interface {
	registry.Session
	SendEvent(event interface{}) error
	Context() context.Context
}

// Pusher delivers events to connected sessions.
type Pusher interface {
	Broadcast(event interface{}) error
	SendTo(userID string, event interface{}) (bool, error)
}

// TokenManager issues, verifies and revokes bearer tokens.
type TokenManager interface {
	GenerateToken(userID, email string) (string, int64, error)
	ValidateToken(token string) (*jwt.Claims, error)
	RevokeUserTokens(userID string)
}

// ChatService handles realtime events from connected sessions.
type ChatService interface {
	// Authenticate verifies a handshake token.
	Authenticate(ctx context.Context, token string) (*jwt.Claims, error)
	HandleConnect(ctx context.Context, p Peer)
	HandleDirectMessage(ctx context.Context, p Peer, recipientID, content string) error
	HandleGroupMessage(ctx context.Context, p Peer, groupID, content string) error
	HandleMarkAsRead(ctx context.Context, p Peer, conversationID string) error
	HandleSignal(ctx context.Context, p Peer, eventType, recipientID, groupID string) error
	HandleDisconnect(ctx context.Context, p Peer)
}

// AuthService handles signup, login and logout.
type AuthService interface {
	Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error)
	Logout(ctx context.Context, userID string) error
}

// UserService exposes user profiles.
type UserService interface {
	GetUser(ctx context.Context, userID string) (*domain.UserResponse, error)
	// ListUsers returns everyone but userID, each with userID's unread count.
	ListUsers(ctx context.Context, userID string) ([]domain.UserResponse, error)
	UpdateUser(ctx context.Context, callerID, userID string, req *domain.UpdateUserRequest) (*domain.UserResponse, error)
}

// GroupService manages groups and their membership.
type GroupService interface {
	CreateGroup(ctx context.Context, creatorID string, req *domain.CreateGroupRequest) (*domain.GroupResponse, error)
	GetGroup(ctx context.Context, userID, groupID string) (*domain.GroupResponse, error)
	// ListGroups returns userID's groups, each with userID's unread count.
	ListGroups(ctx context.Context, userID string) ([]domain.GroupResponse, error)
	AddMembers(ctx context.Context, userID, groupID string, memberIDs []string) (*domain.GroupResponse, error)
	RemoveMember(ctx context.Context, userID, groupID, memberID string) (*domain.GroupResponse, error)
	DeleteGroup(ctx context.Context, userID, groupID string) error
}

// MessageService exposes history, clearing, unread counts and read marks.
type MessageService interface {
	DirectHistory(ctx context.Context, userID, peerID string, page, limit int) (*domain.MessagePage, error)
	GroupHistory(ctx context.Context, userID, groupID string, page, limit int) (*domain.MessagePage, error)
	ClearDirect(ctx context.Context, userID, peerID string) (int64, error)
	ClearGroup(ctx context.Context, userID, groupID string) (int64, error)
	UnreadCounts(ctx context.Context, userID string) (domain.UnreadCounts, error)
	MarkRead(ctx context.Context, userID, conversationID string) (time.Time, error)
}
