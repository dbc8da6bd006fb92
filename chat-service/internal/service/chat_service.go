package service

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/presence"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/readstate"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/router"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

type chatService struct {
	tokens   TokenManager
	presence *presence.Broadcaster
	router   *router.Router
	tracker  *readstate.Tracker
}

func NewChatService(
	tokens TokenManager,
	p *presence.Broadcaster,
	r *router.Router,
	tracker *readstate.Tracker,
) ChatService {
	return &chatService{
		tokens:   tokens,
		presence: p,
		router:   r,
		tracker:  tracker,
	}
}

func (s *chatService) Authenticate(ctx context.Context, token string) (*jwt.Claims, error) {
	if token == "" {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", "missing token", "realtime handshake rejected")
		return nil, domain.NewAuthError("authentication token required", nil)
	}

	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		audit.LogWithDetail(ctx, audit.ActionAuthFailed, "", err.Error(), "realtime handshake rejected")
		return nil, domain.NewAuthError("invalid or expired token", err)
	}
	return claims, nil
}

func (s *chatService) HandleConnect(ctx context.Context, p Peer) {
	s.presence.Attach(ctx, p)
	audit.Log(ctx, audit.ActionConnect, p.UserID(), "session connected")
}

func (s *chatService) HandleDirectMessage(ctx context.Context, p Peer, recipientID, content string) error {
	msg, err := s.router.Submit(ctx, p.UserID(), domain.DirectTarget(recipientID), content)
	if err != nil {
		return s.reportError(ctx, p, err)
	}
	audit.LogTarget(ctx, audit.ActionSendDirect, p.UserID(), msg.ID, "direct message sent")
	return nil
}

func (s *chatService) HandleGroupMessage(ctx context.Context, p Peer, groupID, content string) error {
	msg, err := s.router.Submit(ctx, p.UserID(), domain.GroupTarget(groupID), content)
	if err != nil {
		return s.reportError(ctx, p, err)
	}
	audit.LogTarget(ctx, audit.ActionSendGroup, p.UserID(), msg.ID, "group message sent")
	return nil
}

func (s *chatService) HandleMarkAsRead(ctx context.Context, p Peer, conversationID string) error {
	if _, err := s.tracker.MarkRead(ctx, p.UserID(), conversationID); err != nil {
		return s.reportError(ctx, p, err)
	}
	audit.LogTarget(ctx, audit.ActionMarkRead, p.UserID(), conversationID, "conversation marked read")
	return nil
}

func (s *chatService) HandleSignal(ctx context.Context, p Peer, eventType, recipientID, groupID string) error {
	target, err := domain.ParseTarget(recipientID, groupID)
	if err != nil {
		return s.reportError(ctx, p, err)
	}
	if err := s.router.Signal(ctx, p.UserID(), target, eventType); err != nil {
		return s.reportError(ctx, p, err)
	}
	if eventType == domain.EventChatCleared {
		audit.LogTarget(ctx, audit.ActionClearChat, p.UserID(), target.ID(), "conversation cleared")
	}
	return nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, p Peer) {
	s.presence.Detach(ctx, p)
	audit.Log(ctx, audit.ActionDisconnect, p.UserID(), "session disconnected")
}

// reportError pushes an error event to the originating session and returns
// err for the caller to log. The connection stays open.
func (s *chatService) reportError(ctx context.Context, p Peer, err error) error {
	l := log.Ctx(ctx)
	if errors.Is(err, domain.ErrPersistence) || domain.ErrorCode(err) == domain.ErrCodeInternalError {
		l.Error().Err(err).Msg("realtime event failed")
	}
	if sendErr := p.SendEvent(domain.ErrorEventFor(err)); sendErr != nil {
		l.Debug().Err(sendErr).Msg("failed to push error event")
	}
	return err
}
