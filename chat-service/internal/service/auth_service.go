package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var errInvalidCredentials = domain.NewAuthError("invalid email or password", nil)

// authServiceImpl implements AuthService interface.
type authServiceImpl struct {
	users      repository.UserRepository
	tokens     TokenManager
	pusher     Pusher
	bcryptCost int
}

// NewAuthService creates a new auth service. New users are announced to
// every connected session through pusher.
func NewAuthService(users repository.UserRepository, tokens TokenManager, pusher Pusher) AuthService {
	return &authServiceImpl{
		users:      users,
		tokens:     tokens,
		pusher:     pusher,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Signup registers a new local user.
func (s *authServiceImpl) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))
	name := strings.TrimSpace(req.Name)
	if email == "" || username == "" || name == "" {
		return nil, domain.NewValidationError("email, username and name are required")
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, domain.NewConflictError("email already registered", nil)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, domain.NewPersistenceError("failed to check email", err)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, domain.NewConflictError("username already taken", nil)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, domain.NewPersistenceError("failed to check username", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		l.Error().Err(err).Msg("failed to hash password")
		return nil, domain.NewPersistenceError("failed to hash password", err)
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
		AuthProvider: domain.AuthProviderLocal,
	}
	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, domain.NewConflictError("email already registered", err)
		case errors.Is(err, repository.ErrUsernameExists):
			return nil, domain.NewConflictError("username already taken", err)
		}
		l.Error().Err(err).Msg("failed to create user")
		return nil, domain.NewPersistenceError("failed to create user", err)
	}

	resp, err := s.issue(user)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after signup")
		return nil, err
	}

	if err := s.pusher.Broadcast(&domain.UserRegisteredEvent{Type: domain.EventUserRegistered, User: user.ToResponse()}); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to announce new user")
	}

	audit.Log(ctx, audit.ActionSignup, user.ID, "user signed up")
	return resp, nil
}

// Login authenticates a user by email and password.
func (s *authServiceImpl) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	l := log.Ctx(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", email, "login failed: user not found")
			return nil, errInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by email")
		return nil, domain.NewPersistenceError("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, user.ID, email, "login failed: wrong password")
		return nil, errInvalidCredentials
	}

	resp, err := s.issue(user)
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to generate token after login")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return resp, nil
}

// Logout revokes every token issued to userID so far.
func (s *authServiceImpl) Logout(ctx context.Context, userID string) error {
	s.tokens.RevokeUserTokens(userID)
	audit.Log(ctx, audit.ActionLogout, userID, "user logged out")
	return nil
}

func (s *authServiceImpl) issue(user *domain.User) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to generate token", err)
	}
	return &domain.AuthResponse{
		User:      user.ToResponse(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
