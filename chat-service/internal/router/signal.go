package router

import (
	"context"
	"encoding/json"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Signal relays a transient, unpersisted event (typing_start, typing_stop,
// chat_cleared). A direct signal goes to the peer if online, carrying the
// sender as conversation id. A group signal goes to every other session, or
// only to online members under ScopeMembers.
func (r *Router) Signal(ctx context.Context, senderID string, target domain.Target, eventType string) error {
	if err := target.Validate(); err != nil {
		return err
	}

	event := &domain.SignalOutEvent{Type: eventType, UserID: senderID}
	var sessions []registry.Session

	switch {
	case target.IsDirect():
		event.ConversationID = senderID
		if s, ok := r.registry.Lookup(target.ID()); ok {
			sessions = append(sessions, s)
		}

	case r.scope == ScopeMembers:
		event.ConversationID = target.ID()
		group, err := r.loadGroup(ctx, target.ID())
		if err != nil {
			return err
		}
		if !group.HasMember(senderID) {
			return domain.NewForbiddenError("not a member of this group")
		}
		for _, id := range group.MemberIDs {
			if id == senderID {
				continue
			}
			if s, ok := r.registry.Lookup(id); ok {
				sessions = append(sessions, s)
			}
		}

	default:
		event.ConversationID = target.ID()
		for _, s := range r.registry.Sessions() {
			if s.UserID() != senderID {
				sessions = append(sessions, s)
			}
		}
	}

	if len(sessions) == 0 {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	l := log.Ctx(ctx)
	for _, s := range sessions {
		if err := s.Send(data); err != nil {
			l.Debug().Err(err).Str(log.FieldEventType, eventType).Str(log.FieldRecipientID, s.UserID()).Msg("failed to relay signal")
		}
	}
	return nil
}
