package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/mocks"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

var fixedNow = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func newSession(ctrl *gomock.Controller, id, userID string) *mocks.MockSession {
	s := mocks.NewMockSession(ctrl)
	s.EXPECT().ID().Return(id).AnyTimes()
	s.EXPECT().UserID().Return(userID).AnyTimes()
	return s
}

func TestBroadcaster_Attach(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	reg := registry.NewMemoryRegistry()
	users := mocks.NewMockUserRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	directory := mocks.NewMockDirectory(ctrl)
	b := NewBroadcaster(reg, users, notifier,
		WithPublisher(publisher, "inst-1"),
		WithDirectory(directory),
		WithClock(func() time.Time { return fixedNow }))

	s := newSession(ctrl, "s1", "u1")

	// Given: persisted first, then broadcast including the new session
	gomock.InOrder(
		users.EXPECT().SetPresence(gomock.Any(), "u1", true, fixedNow).Return(nil),
		directory.EXPECT().Register(gomock.Any(), "u1").Return(nil),
		notifier.EXPECT().Broadcast(gomock.Any()).DoAndReturn(func(event any) error {
			_, ok := reg.Lookup("u1")
			req.True(ok)
			ev := event.(*domain.UserStatusChangedEvent)
			req.Equal("u1", ev.Identity)
			req.True(ev.Online)
			return nil
		}),
		publisher.EXPECT().Publish(gomock.Any(), pubsub.ChannelPresence, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, event *pubsub.Event) error {
				req.Equal(pubsub.EventPresenceChanged, event.Type)
				req.Equal("inst-1", event.Source)
				return nil
			}),
	)

	// When
	b.Attach(context.Background(), s)

	// Then
	got, ok := reg.Lookup("u1")
	req.True(ok)
	req.Equal("s1", got.ID())
}

func TestBroadcaster_PersistenceFailureIsBestEffort(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := registry.NewMemoryRegistry()
	users := mocks.NewMockUserRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	b := NewBroadcaster(reg, users, notifier, WithClock(func() time.Time { return fixedNow }))
	s := newSession(ctrl, "s1", "u1")

	users.EXPECT().SetPresence(gomock.Any(), "u1", true, fixedNow).Return(errors.New("db down"))
	notifier.EXPECT().Broadcast(gomock.Any()).Return(nil)
	b.Attach(context.Background(), s)

	users.EXPECT().SetPresence(gomock.Any(), "u1", false, fixedNow).Return(errors.New("db down"))
	notifier.EXPECT().Broadcast(gomock.Any()).DoAndReturn(func(event any) error {
		require.False(t, event.(*domain.UserStatusChangedEvent).Online)
		return nil
	})
	b.Detach(context.Background(), s)

	_, ok := reg.Lookup("u1")
	require.False(t, ok)
}

func TestBroadcaster_DetachUnregistersBeforePersisting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reg := registry.NewMemoryRegistry()
	users := mocks.NewMockUserRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	b := NewBroadcaster(reg, users, notifier, WithClock(func() time.Time { return fixedNow }))
	s := newSession(ctrl, "s1", "u1")
	reg.Register("u1", s)

	users.EXPECT().SetPresence(gomock.Any(), "u1", false, fixedNow).DoAndReturn(
		func(context.Context, string, bool, time.Time) error {
			_, ok := reg.Lookup("u1")
			require.False(t, ok)
			return nil
		})
	notifier.EXPECT().Broadcast(gomock.Any()).Return(nil)

	b.Detach(context.Background(), s)
}

func TestBroadcaster_DisplacedSessionDetach(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	req := require.New(t)
	reg := registry.NewMemoryRegistry()
	users := mocks.NewMockUserRepository(ctrl)
	notifier := mocks.NewMockNotifier(ctrl)
	b := NewBroadcaster(reg, users, notifier)

	old := newSession(ctrl, "old", "u1")
	cur := newSession(ctrl, "new", "u1")

	// Given two attaches for the same identity
	users.EXPECT().SetPresence(gomock.Any(), "u1", true, gomock.Any()).Return(nil).Times(2)
	notifier.EXPECT().Broadcast(gomock.Any()).Return(nil).Times(2)
	b.Attach(context.Background(), old)
	b.Attach(context.Background(), cur)

	// When the displaced session goes away, nothing is persisted or broadcast
	b.Detach(context.Background(), old)

	// Then the newer session is still reachable
	got, ok := reg.Lookup("u1")
	req.True(ok)
	req.Equal("new", got.ID())
}
