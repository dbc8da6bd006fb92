package service

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/unread"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

type groupServiceImpl struct {
	groups     repository.GroupRepository
	messages   repository.MessageRepository
	users      repository.UserRepository
	unread     *unread.Aggregator
	pusher     Pusher
	publisher  pubsub.Publisher
	instanceID string
}

// GroupOption configures the group service.
type GroupOption func(*groupServiceImpl)

// WithGroupPublisher publishes group.deleted after a group is removed.
func WithGroupPublisher(p pubsub.Publisher, instanceID string) GroupOption {
	return func(s *groupServiceImpl) {
		s.publisher = p
		s.instanceID = instanceID
	}
}

func NewGroupService(
	groups repository.GroupRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	agg *unread.Aggregator,
	pusher Pusher,
	opts ...GroupOption,
) GroupService {
	s := &groupServiceImpl{
		groups:   groups,
		messages: messages,
		users:    users,
		unread:   agg,
		pusher:   pusher,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *groupServiceImpl) CreateGroup(ctx context.Context, creatorID string, req *domain.CreateGroupRequest) (*domain.GroupResponse, error) {
	l := log.Ctx(ctx)

	group, err := domain.NewGroup(req.Name, creatorID, req.MemberIDs)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUsersExist(ctx, group.MemberIDs); err != nil {
		return nil, err
	}

	if err := s.groups.Create(ctx, group); err != nil {
		l.Error().Err(err).Msg("failed to create group")
		return nil, domain.NewPersistenceError("failed to create group", err)
	}

	audit.LogTarget(ctx, audit.ActionGroupCreate, creatorID, group.ID, "group created")
	return &domain.GroupResponse{Group: group}, nil
}

func (s *groupServiceImpl) GetGroup(ctx context.Context, userID, groupID string) (*domain.GroupResponse, error) {
	group, err := memberGroup(ctx, s.groups, userID, groupID)
	if err != nil {
		return nil, err
	}
	return &domain.GroupResponse{Group: group}, nil
}

func (s *groupServiceImpl) ListGroups(ctx context.Context, userID string) ([]domain.GroupResponse, error) {
	groups, err := s.groups.FindByMember(ctx, userID)
	if err != nil {
		return nil, domain.NewPersistenceError("failed to list groups", err)
	}

	counts, err := s.unread.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	return lo.Map(groups, func(g *domain.Group, _ int) domain.GroupResponse {
		n := counts[g.ID]
		return domain.GroupResponse{Group: g, UnreadCount: &n}
	}), nil
}

func (s *groupServiceImpl) AddMembers(ctx context.Context, userID, groupID string, memberIDs []string) (*domain.GroupResponse, error) {
	group, err := memberGroup(ctx, s.groups, userID, groupID)
	if err != nil {
		return nil, err
	}

	members, err := group.WithMembersAdded(memberIDs)
	if err != nil {
		return nil, err
	}
	added := lo.Without(members, group.MemberIDs...)
	if len(added) == 0 {
		return &domain.GroupResponse{Group: group}, nil
	}
	if err := s.ensureUsersExist(ctx, added); err != nil {
		return nil, err
	}

	if err := s.updateMembers(ctx, group, members); err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionMembersAdd, userID, groupID, "group members added")
	return &domain.GroupResponse{Group: group}, nil
}

// RemoveMember drops memberID from the group. The creator cannot be removed.
func (s *groupServiceImpl) RemoveMember(ctx context.Context, userID, groupID, memberID string) (*domain.GroupResponse, error) {
	group, err := memberGroup(ctx, s.groups, userID, groupID)
	if err != nil {
		return nil, err
	}
	if group.IsCreator(memberID) {
		return nil, domain.NewForbiddenError("the group creator cannot be removed")
	}

	members, err := group.WithMemberRemoved(memberID)
	if err != nil {
		return nil, err
	}
	if err := s.updateMembers(ctx, group, members); err != nil {
		return nil, err
	}

	audit.LogTarget(ctx, audit.ActionMemberRemove, userID, groupID, "group member removed")
	return &domain.GroupResponse{Group: group}, nil
}

// DeleteGroup removes the group and its messages. Only the creator may delete.
func (s *groupServiceImpl) DeleteGroup(ctx context.Context, userID, groupID string) error {
	l := log.Ctx(ctx).With().Str(log.FieldGroupID, groupID).Logger()

	group, err := loadGroup(ctx, s.groups, groupID)
	if err != nil {
		return err
	}
	if !group.IsCreator(userID) {
		return domain.NewForbiddenError("only the group creator can delete the group")
	}

	// Messages go first so a failed delete leaves the group in place for a retry.
	removed, err := s.messages.Delete(ctx, repository.MessageFilter{GroupID: groupID})
	if err != nil {
		l.Error().Err(err).Msg("failed to delete group messages")
		return domain.NewPersistenceError("failed to delete group messages", err)
	}
	l.Debug().Int64("messages", removed).Msg("group messages deleted")

	if err := s.groups.Delete(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return domain.NewNotFoundError("group not found")
		}
		l.Error().Err(err).Msg("failed to delete group")
		return domain.NewPersistenceError("failed to delete group", err)
	}

	event := &domain.GroupDeletedEvent{Type: domain.EventGroupDeleted, GroupID: groupID}
	for _, memberID := range group.MemberIDs {
		if _, err := s.pusher.SendTo(memberID, event); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, memberID).Msg("failed to notify member of group deletion")
		}
	}
	s.publishDeleted(ctx, group)

	audit.LogTarget(ctx, audit.ActionGroupDelete, userID, groupID, "group deleted")
	return nil
}

func (s *groupServiceImpl) updateMembers(ctx context.Context, group *domain.Group, members []string) error {
	expected := group.Version
	group.MemberIDs = members
	if err := s.groups.UpdateMembers(ctx, group, expected); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return domain.NewConflictError("group was modified concurrently, retry", err)
		case errors.Is(err, repository.ErrGroupNotFound):
			return domain.NewNotFoundError("group not found")
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldGroupID, group.ID).Msg("failed to update group members")
		return domain.NewPersistenceError("failed to update group members", err)
	}
	return nil
}

func (s *groupServiceImpl) ensureUsersExist(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.users.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domain.NewNotFoundError("user not found: " + id)
			}
			return domain.NewPersistenceError("failed to load user", err)
		}
	}
	return nil
}

func (s *groupServiceImpl) publishDeleted(ctx context.Context, group *domain.Group) {
	if s.publisher == nil {
		return
	}
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(pubsub.EventGroupDeleted, group.ID, s.instanceID, pubsub.GroupDeletedPayload{
		GroupID:   group.ID,
		MemberIDs: group.MemberIDs,
	})
	if err != nil {
		l.Warn().Err(err).Msg("failed to build group event")
		return
	}
	if err := s.publisher.Publish(ctx, pubsub.ChannelGroups, event); err != nil {
		l.Warn().Err(err).Str(log.FieldGroupID, group.ID).Msg("failed to publish group event")
	}
}
