package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/mocks"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func feed(t *testing.T, events ...*pubsub.Event) <-chan *pubsub.Event {
	t.Helper()
	ch := make(chan *pubsub.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func newEvent(t *testing.T, eventType, key, source string, payload any) *pubsub.Event {
	t.Helper()
	e, err := pubsub.NewEvent(eventType, key, source, payload)
	require.NoError(t, err)
	return e
}

func expectSubscription(sub *mocks.MockSubscriber, events <-chan *pubsub.Event) {
	sub.EXPECT().SubscribePattern(gomock.Any(), pubsub.PatternAll).Return(events, nil)
	sub.EXPECT().Unsubscribe(gomock.Any(), pubsub.PatternAll).Return(nil)
}

func TestRelay_Presence_SkipsOwnEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	deliverer := mocks.NewMockDeliverer(ctrl)
	r := New(sub, deliverer, "inst-1")

	// Given one presence change from this instance and one from a peer
	expectSubscription(sub, feed(t,
		newEvent(t, pubsub.EventPresenceChanged, "u1", "inst-1", pubsub.PresenceChangedPayload{UserID: "u1", Online: true}),
		newEvent(t, pubsub.EventPresenceChanged, "u2", "inst-2", pubsub.PresenceChangedPayload{UserID: "u2", Online: false, LastSeen: fixedNow}),
	))

	// Then only the peer's change is broadcast
	deliverer.EXPECT().Broadcast(gomock.Any()).DoAndReturn(func(event any) error {
		ev := event.(*domain.UserStatusChangedEvent)
		req.Equal(domain.EventUserStatusChanged, ev.Type)
		req.Equal("u2", ev.Identity)
		req.False(ev.Online)
		req.True(fixedNow.Equal(ev.LastSeen))
		return nil
	}).Times(1)

	// When
	req.NoError(r.Run(context.Background()))
	<-r.Done()
}

func TestRelay_MessageCreated_DeliversToLocalRecipients(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	deliverer := mocks.NewMockDeliverer(ctrl)
	r := New(sub, deliverer, "inst-1")

	// Given a group message persisted on another instance for a, b and c
	expectSubscription(sub, feed(t,
		newEvent(t, pubsub.EventMessageCreated, "g1", "inst-2", pubsub.MessageCreatedPayload{
			MessageID:      "m-1",
			SenderID:       "a",
			Kind:           string(domain.MessageKindGroup),
			ConversationID: "g1",
			GroupID:        "g1",
			Content:        "hello",
			Recipients:     []string{"a", "b", "c"},
			CreatedAt:      fixedNow,
		}),
	))

	// Then every recipient is offered the message; c is not held here and
	// b's session fails, neither stops the rest
	var delivered []string
	deliverer.EXPECT().SendTo(gomock.Any(), gomock.Any()).DoAndReturn(func(userID string, event any) (bool, error) {
		ev := event.(*domain.MessageReceivedEvent)
		req.Equal(domain.EventMessageReceived, ev.Type)
		req.Equal("m-1", ev.Message.ID)
		req.Equal("hello", ev.Message.Content)
		req.Equal("g1", ev.Message.ConversationID)
		req.Equal(domain.MessageKindGroup, ev.Message.Kind)
		req.True(fixedNow.Equal(ev.Message.CreatedAt))
		delivered = append(delivered, userID)
		switch userID {
		case "b":
			return false, errors.New("buffer full")
		case "c":
			return false, nil
		}
		return true, nil
	}).Times(3)

	// When
	req.NoError(r.Run(context.Background()))

	req.Equal([]string{"a", "b", "c"}, delivered)
}

func TestRelay_MessageCreated_SkipsOwnEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	deliverer := mocks.NewMockDeliverer(ctrl)
	r := New(sub, deliverer, "inst-1")

	// Given a message this instance already delivered locally
	expectSubscription(sub, feed(t,
		newEvent(t, pubsub.EventMessageCreated, "a:b", "inst-1", pubsub.MessageCreatedPayload{
			MessageID:  "m-1",
			Recipients: []string{"a", "b"},
		}),
	))

	// When / Then no SendTo is expected
	req.NoError(r.Run(context.Background()))
}

func TestRelay_GroupDeleted_NotifiesMembers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	deliverer := mocks.NewMockDeliverer(ctrl)
	r := New(sub, deliverer, "inst-1")

	// Given a group deleted on another instance
	expectSubscription(sub, feed(t,
		newEvent(t, pubsub.EventGroupDeleted, "g1", "inst-2", pubsub.GroupDeletedPayload{GroupID: "g1", MemberIDs: []string{"a", "b"}}),
	))

	// Then each member is told
	want := &domain.GroupDeletedEvent{Type: domain.EventGroupDeleted, GroupID: "g1"}
	deliverer.EXPECT().SendTo("a", want).Return(true, nil)
	deliverer.EXPECT().SendTo("b", want).Return(false, nil)

	// When
	req.NoError(r.Run(context.Background()))
}

func TestRelay_IgnoresMalformedAndUnknownEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	deliverer := mocks.NewMockDeliverer(ctrl)
	r := New(sub, deliverer, "inst-1")

	// Given events that carry nothing deliverable
	expectSubscription(sub, feed(t,
		&pubsub.Event{Type: pubsub.EventMessageCreated, Source: "inst-2", Payload: []byte("not json")},
		newEvent(t, pubsub.EventGroupDeleted, "", "inst-2", pubsub.GroupDeletedPayload{}),
		newEvent(t, "user.renamed", "u1", "inst-2", map[string]string{"name": "x"}),
	))

	// When / Then the deliverer is never called
	req.NoError(r.Run(context.Background()))
}

func TestRelay_SubscribeFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	r := New(sub, mocks.NewMockDeliverer(ctrl), "inst-1")

	// Given the bus refuses the subscription
	sub.EXPECT().SubscribePattern(gomock.Any(), pubsub.PatternAll).Return(nil, errors.New("bus down"))

	// When
	err := r.Run(context.Background())

	// Then the error surfaces and Done is still closed
	req.Error(err)
	<-r.Done()
}

func TestRelay_StopsOnContextCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	sub := mocks.NewMockSubscriber(ctrl)
	r := New(sub, mocks.NewMockDeliverer(ctrl), "inst-1")

	// Given an open subscription that never delivers
	events := make(chan *pubsub.Event)
	expectSubscription(sub, events)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When / Then Run returns and unsubscribes
	req.NoError(r.Run(ctx))
	<-r.Done()
}
