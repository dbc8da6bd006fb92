package relay

import (
	"context"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

// Relay consumes every chat channel and replays events announced by other
// instances to the sessions this instance holds. Events from this instance
// were already delivered locally and are skipped.
type Relay struct {
	subscriber pubsub.Subscriber
	deliverer  Deliverer
	instanceID string
	doneCh     chan struct{}
}

func New(sub pubsub.Subscriber, deliverer Deliverer, instanceID string) *Relay {
	return &Relay{
		subscriber: sub,
		deliverer:  deliverer,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Done returns a channel that is closed when Run exits.
func (r *Relay) Done() <-chan struct{} { return r.doneCh }

// Run consumes events until ctx is done or the subscription ends.
func (r *Relay) Run(ctx context.Context) error {
	defer close(r.doneCh)

	events, err := r.subscriber.SubscribePattern(ctx, pubsub.PatternAll)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.subscriber.Unsubscribe(context.Background(), pubsub.PatternAll); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("relay: unsubscribe failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			r.handle(event)
		}
	}
}

func (r *Relay) handle(event *pubsub.Event) {
	if event == nil || event.FromInstance(r.instanceID) {
		return
	}

	switch event.Type {
	case pubsub.EventPresenceChanged:
		r.presenceChanged(event)
	case pubsub.EventMessageCreated:
		r.messageCreated(event)
	case pubsub.EventGroupDeleted:
		r.groupDeleted(event)
	default:
		l := log.L()
		l.Debug().Str("type", event.Type).Msg("relay: ignoring event")
	}
}

func (r *Relay) presenceChanged(event *pubsub.Event) {
	l := log.L()

	var payload pubsub.PresenceChangedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.Warn().Err(err).Msg("relay: invalid presence payload")
		return
	}
	if payload.UserID == "" {
		return
	}

	if err := r.deliverer.Broadcast(domain.NewUserStatusChangedEvent(payload.UserID, payload.Online, payload.LastSeen)); err != nil {
		l.Error().Err(err).Str(log.FieldUserID, payload.UserID).Msg("relay: broadcast error")
	}
}

func (r *Relay) messageCreated(event *pubsub.Event) {
	l := log.L()

	var payload pubsub.MessageCreatedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.Warn().Err(err).Msg("relay: invalid message payload")
		return
	}
	if payload.MessageID == "" {
		return
	}

	out := domain.NewMessageReceivedEvent(&domain.Message{
		ID:             payload.MessageID,
		SenderID:       payload.SenderID,
		RecipientID:    payload.RecipientID,
		GroupID:        payload.GroupID,
		ConversationID: payload.ConversationID,
		Content:        payload.Content,
		Kind:           domain.MessageKind(payload.Kind),
		CreatedAt:      payload.CreatedAt,
	})
	r.sendEach(payload.Recipients, out, payload.MessageID)
}

func (r *Relay) groupDeleted(event *pubsub.Event) {
	l := log.L()

	var payload pubsub.GroupDeletedPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.Warn().Err(err).Msg("relay: invalid group payload")
		return
	}
	if payload.GroupID == "" {
		return
	}

	out := &domain.GroupDeletedEvent{Type: domain.EventGroupDeleted, GroupID: payload.GroupID}
	r.sendEach(payload.MemberIDs, out, payload.GroupID)
}

// sendEach pushes out to every listed identity with a session here. Identities
// held elsewhere are skipped silently.
func (r *Relay) sendEach(userIDs []string, out any, ref string) {
	l := log.L()
	for _, id := range userIDs {
		if _, err := r.deliverer.SendTo(id, out); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, id).Str("ref", ref).Msg("relay: delivery failed")
		}
	}
}
