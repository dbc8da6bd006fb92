package router

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

// Scope decides who receives group typing and clear signals.
type Scope string

const (
	// ScopeAll sends group signals to every connected session but the sender.
	ScopeAll Scope = "all"
	// ScopeMembers sends group signals to online group members only.
	ScopeMembers Scope = "members"
)

// Router validates, persists and fans out messages to live sessions.
type Router struct {
	messages   repository.MessageRepository
	groups     repository.GroupRepository
	users      repository.UserRepository
	registry   registry.Registry
	publisher  pubsub.Publisher
	instanceID string
	scope      Scope
}

type Option func(*Router)

// WithPublisher publishes message.created after each persisted message.
func WithPublisher(p pubsub.Publisher, instanceID string) Option {
	return func(r *Router) {
		r.publisher = p
		r.instanceID = instanceID
	}
}

func WithSignalScope(scope Scope) Option {
	return func(r *Router) {
		if scope == ScopeMembers {
			r.scope = ScopeMembers
		}
	}
}

func New(
	messages repository.MessageRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	reg registry.Registry,
	opts ...Option,
) *Router {
	r := &Router{
		messages: messages,
		groups:   groups,
		users:    users,
		registry: reg,
		scope:    ScopeAll,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit persists a message from senderID to target and pushes it to every
// resolved recipient with a live session. Direct messages are echoed to the
// sender; group messages reach every member including the sender. Offline
// recipients and failed pushes never fail the submission.
func (r *Router) Submit(ctx context.Context, senderID string, target domain.Target, content string) (*domain.Message, error) {
	msg, err := domain.NewMessage(senderID, target, content)
	if err != nil {
		return nil, err
	}

	recipients, err := r.resolveRecipients(ctx, senderID, target)
	if err != nil {
		return nil, err
	}

	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, domain.NewPersistenceError("failed to save message", err)
	}

	l := log.Ctx(ctx)
	l.Debug().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldConversationID, msg.ConversationID).
		Int("recipients", len(recipients)).
		Msg("message persisted")

	r.deliver(ctx, msg, recipients)
	r.publish(ctx, msg, recipients)
	return msg, nil
}

func (r *Router) resolveRecipients(ctx context.Context, senderID string, target domain.Target) ([]string, error) {
	if target.IsDirect() {
		if _, err := r.users.GetByID(ctx, target.ID()); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, domain.NewNotFoundError("recipient not found")
			}
			return nil, domain.NewPersistenceError("failed to load recipient", err)
		}
		return lo.Uniq([]string{target.ID(), senderID}), nil
	}

	group, err := r.loadGroup(ctx, target.ID())
	if err != nil {
		return nil, err
	}
	if !group.HasMember(senderID) {
		return nil, domain.NewForbiddenError("not a member of this group")
	}
	return group.MemberIDs, nil
}

func (r *Router) loadGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	group, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return nil, domain.NewNotFoundError("group not found")
		}
		return nil, domain.NewPersistenceError("failed to load group", err)
	}
	return group, nil
}

func (r *Router) deliver(ctx context.Context, msg *domain.Message, recipients []string) {
	l := log.Ctx(ctx)

	data, err := json.Marshal(domain.NewMessageReceivedEvent(msg))
	if err != nil {
		l.Error().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to encode message")
		return
	}

	delivered := 0
	for _, userID := range recipients {
		s, ok := r.registry.Lookup(userID)
		if !ok {
			continue
		}
		if err := s.Send(data); err != nil {
			l.Warn().Err(err).
				Str(log.FieldMessageID, msg.ID).
				Str(log.FieldRecipientID, userID).
				Msg("failed to push message")
			continue
		}
		delivered++
	}

	l.Debug().Str(log.FieldMessageID, msg.ID).Int("delivered", delivered).Msg("message fanned out")
}

func (r *Router) publish(ctx context.Context, msg *domain.Message, recipients []string) {
	if r.publisher == nil {
		return
	}
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(pubsub.EventMessageCreated, msg.ConversationID, r.instanceID, pubsub.MessageCreatedPayload{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Kind:           string(msg.Kind),
		ConversationID: msg.ConversationID,
		RecipientID:    msg.RecipientID,
		GroupID:        msg.GroupID,
		Content:        msg.Content,
		Recipients:     recipients,
		CreatedAt:      msg.CreatedAt,
	})
	if err != nil {
		l.Error().Err(err).Msg("failed to build message event")
		return
	}
	if err := r.publisher.Publish(ctx, pubsub.ChannelMessages, event); err != nil {
		l.Warn().Err(err).Str(log.FieldMessageID, msg.ID).Msg("failed to publish message event")
	}
}
