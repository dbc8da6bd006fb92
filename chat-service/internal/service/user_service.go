package service

import (
	"context"
	"errors"
	"strings"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/unread"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type userServiceImpl struct {
	users  repository.UserRepository
	unread *unread.Aggregator
}

func NewUserService(users repository.UserRepository, agg *unread.Aggregator) UserService {
	return &userServiceImpl{users: users, unread: agg}
}

func (s *userServiceImpl) GetUser(ctx context.Context, userID string) (*domain.UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, userError(err)
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *userServiceImpl) ListUsers(ctx context.Context, userID string) ([]domain.UserResponse, error) {
	users, err := s.users.List(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to list users", err)
	}

	counts, err := s.unread.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.UserResponse, 0, len(users))
	for _, u := range users {
		resp := u.ToResponse()
		n := counts[u.ID]
		resp.UnreadCount = &n
		out = append(out, resp)
	}
	return out, nil
}

// UpdateUser edits callerID's own name and username.
func (s *userServiceImpl) UpdateUser(ctx context.Context, callerID, userID string, req *domain.UpdateUserRequest) (*domain.UserResponse, error) {
	l := log.Ctx(ctx)

	if callerID != userID {
		return nil, domain.NewForbiddenError("you can only update your own profile")
	}

	var fields repository.UserUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name cannot be empty")
		}
		fields.Name = &name
	}
	if req.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*req.Username))
		if len(username) < 3 {
			return nil, domain.NewValidationError("username must be at least 3 characters")
		}
		fields.Username = &username
	}

	user, err := s.users.Update(ctx, userID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return nil, domain.NewConflictError("username already taken", err)
		}
		if !errors.Is(err, repository.ErrUserNotFound) {
			l.Error().Err(err).Str(log.FieldUserID, userID).Msg("failed to update user")
		}
		return nil, userError(err)
	}

	audit.Log(ctx, audit.ActionUpdateProfile, userID, "profile updated")
	resp := user.ToResponse()
	return &resp, nil
}

func userError(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return domain.NewNotFoundError("user not found")
	}
	return domain.NewPersistenceError("failed to load user", err)
}
