package service

import (
	"context"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/readstate"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/unread"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// PageLimits bounds history page sizes.
type PageLimits struct {
	Default int
	Max     int
}

type messageServiceImpl struct {
	messages repository.MessageRepository
	groups   repository.GroupRepository
	users    repository.UserRepository
	unread   *unread.Aggregator
	tracker  *readstate.Tracker
	limits   PageLimits
}

func NewMessageService(
	messages repository.MessageRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	agg *unread.Aggregator,
	tracker *readstate.Tracker,
	limits PageLimits,
) MessageService {
	if limits.Default <= 0 {
		limits.Default = 50
	}
	if limits.Max < limits.Default {
		limits.Max = limits.Default
	}
	return &messageServiceImpl{
		messages: messages,
		groups:   groups,
		users:    users,
		unread:   agg,
		tracker:  tracker,
		limits:   limits,
	}
}

// DirectHistory returns the conversation between userID and peerID, oldest first.
func (s *messageServiceImpl) DirectHistory(ctx context.Context, userID, peerID string, page, limit int) (*domain.MessagePage, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return nil, domain.NewValidationError("peer id is required")
	}
	if _, err := s.users.GetByID(ctx, peerID); err != nil {
		return nil, userError(err)
	}

	filter := repository.MessageFilter{
		Kind:           domain.MessageKindDirect,
		ConversationID: domain.DirectPairKey(userID, peerID),
	}
	return s.history(ctx, filter, page, limit)
}

// GroupHistory returns a group's messages, oldest first. Members only.
func (s *messageServiceImpl) GroupHistory(ctx context.Context, userID, groupID string, page, limit int) (*domain.MessagePage, error) {
	if _, err := memberGroup(ctx, s.groups, userID, groupID); err != nil {
		return nil, err
	}
	filter := repository.MessageFilter{
		Kind:    domain.MessageKindGroup,
		GroupID: groupID,
	}
	return s.history(ctx, filter, page, limit)
}

// ClearDirect deletes every message between userID and peerID for both sides.
func (s *messageServiceImpl) ClearDirect(ctx context.Context, userID, peerID string) (int64, error) {
	peerID = strings.TrimSpace(peerID)
	if peerID == "" {
		return 0, domain.NewValidationError("peer id is required")
	}

	n, err := s.messages.Delete(ctx, repository.MessageFilter{
		Kind:           domain.MessageKindDirect,
		ConversationID: domain.DirectPairKey(userID, peerID),
	})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldRecipientID, peerID).Msg("failed to clear direct conversation")
		return 0, domain.NewPersistenceError("failed to clear conversation", err)
	}

	audit.LogTarget(ctx, audit.ActionClearChat, userID, peerID, "direct conversation cleared")
	return n, nil
}

func (s *messageServiceImpl) ClearGroup(ctx context.Context, userID, groupID string) (int64, error) {
	if _, err := memberGroup(ctx, s.groups, userID, groupID); err != nil {
		return 0, err
	}

	n, err := s.messages.Delete(ctx, repository.MessageFilter{GroupID: groupID})
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroupID, groupID).Msg("failed to clear group conversation")
		return 0, domain.NewPersistenceError("failed to clear conversation", err)
	}

	audit.LogTarget(ctx, audit.ActionClearChat, userID, groupID, "group conversation cleared")
	return n, nil
}

func (s *messageServiceImpl) UnreadCounts(ctx context.Context, userID string) (domain.UnreadCounts, error) {
	return s.unread.UnreadCounts(ctx, userID)
}

func (s *messageServiceImpl) MarkRead(ctx context.Context, userID, conversationID string) (time.Time, error) {
	at, err := s.tracker.MarkRead(ctx, userID, conversationID)
	if err != nil {
		return time.Time{}, err
	}
	audit.LogTarget(ctx, audit.ActionMarkRead, userID, conversationID, "conversation marked read")
	return at, nil
}

func (s *messageServiceImpl) history(ctx context.Context, filter repository.MessageFilter, page, limit int) (*domain.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.limits.Default
	}
	if limit > s.limits.Max {
		limit = s.limits.Max
	}

	msgs, err := s.messages.Find(ctx, filter, repository.SortAscending, repository.Pagination{Page: page, Limit: limit})
	if err != nil {
		return nil, domain.NewPersistenceError("failed to load messages", err)
	}
	total, err := s.messages.Count(ctx, filter)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to count messages", err)
	}

	if msgs == nil {
		msgs = []*domain.Message{}
	}
	return &domain.MessagePage{
		Messages: msgs,
		Page:     page,
		Limit:    limit,
		Total:    total,
	}, nil
}
