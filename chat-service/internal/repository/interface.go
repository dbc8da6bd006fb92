package repository

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_repository.go -package=mocks

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrGroupNotFound   = errors.New("group not found")
	ErrEmailExists     = errors.New("email already exists")
	ErrUsernameExists  = errors.New("username already exists")
	ErrVersionConflict = errors.New("group was modified concurrently")
	ErrEmptyFilter     = errors.New("refusing to delete with an empty filter")
)

// MessageFilter selects messages. Zero fields are ignored.
type MessageFilter struct {
	Kind            domain.MessageKind
	SenderID        string
	ExcludeSenderID string
	RecipientID     string
	GroupID         string
	ConversationID  string
	CreatedAfter    *time.Time
}

func (f MessageFilter) empty() bool {
	return f.Kind == "" && f.SenderID == "" && f.ExcludeSenderID == "" &&
		f.RecipientID == "" && f.GroupID == "" && f.ConversationID == "" &&
		f.CreatedAfter == nil
}

// SortOrder orders messages by creation time.
type SortOrder int

const (
	SortAscending SortOrder = iota
	SortDescending
)

// Pagination is a 1-based page window. A zero Limit means no limit.
type Pagination struct {
	Page  int
	Limit int
}

func (p Pagination) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	// Create assigns the id and creation time, then stores msg.
	Create(ctx context.Context, msg *domain.Message) error
	Find(ctx context.Context, filter MessageFilter, order SortOrder, page Pagination) ([]*domain.Message, error)
	Count(ctx context.Context, filter MessageFilter) (int64, error)
	// Delete removes every message matching filter and returns how many.
	Delete(ctx context.Context, filter MessageFilter) (int64, error)
	// DirectSenders lists the distinct senders of direct messages to recipientID.
	DirectSenders(ctx context.Context, recipientID string) ([]string, error)
}

// GroupRepository defines the interface for group persistence.
type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	GetByID(ctx context.Context, id string) (*domain.Group, error)
	FindByMember(ctx context.Context, userID string) ([]*domain.Group, error)
	// UpdateMembers replaces the member set when the stored version still
	// equals expectedVersion, and bumps the version.
	UpdateMembers(ctx context.Context, group *domain.Group, expectedVersion int) error
	Delete(ctx context.Context, id string) error
}

// UserUpdate carries the editable user fields. Nil fields are left as is.
type UserUpdate struct {
	Name     *string
	Username *string
}

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	// List returns every user except excludeID, ordered by name.
	List(ctx context.Context, excludeID string) ([]*domain.User, error)
	Update(ctx context.Context, id string, fields UserUpdate) (*domain.User, error)
	SetPresence(ctx context.Context, id string, online bool, lastSeen time.Time) error
}

// ReadStateRepository defines the interface for read-state persistence.
type ReadStateRepository interface {
	// Upsert records at as the last-read instant, last write wins.
	Upsert(ctx context.Context, userID, conversationID string, at time.Time) error
	Get(ctx context.Context, userID string) (domain.ReadState, error)
}

// Models lists the GORM models owned by this package, for migration.
func Models() []interface{} {
	return []interface{}{
		&domain.UserModel{},
		&domain.GroupModel{},
		&domain.GroupMemberModel{},
		&domain.MessageModel{},
		&domain.ReadStateModel{},
	}
}
