package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/mocks"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/presence"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/router"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	svcmocks "github.com/weiawesome/wes-io-chat/chat-service/internal/service/mocks"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

type chatFixture struct {
	*repoFixture
	ctrl     *gomock.Controller
	tokens   *svcmocks.MockTokenManager
	notifier *mocks.MockNotifier
	registry *registry.MemoryRegistry
	svc      service.ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	ctrl := gomock.NewController(t)
	f := &chatFixture{
		repoFixture: newRepoFixture(t),
		ctrl:        ctrl,
		tokens:      svcmocks.NewMockTokenManager(ctrl),
		notifier:    mocks.NewMockNotifier(ctrl),
		registry:    registry.NewMemoryRegistry(),
	}
	b := presence.NewBroadcaster(f.registry, f.users, f.notifier)
	r := router.New(f.messages, f.groups, f.users, f.registry)
	f.svc = service.NewChatService(f.tokens, b, r, f.tracker)
	return f
}

func (f *chatFixture) peer(sessionID, userID string) *svcmocks.MockPeer {
	p := svcmocks.NewMockPeer(f.ctrl)
	p.EXPECT().ID().Return(sessionID).AnyTimes()
	p.EXPECT().UserID().Return(userID).AnyTimes()
	return p
}

func TestChatService_Authenticate(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newChatFixture(t)

		_, err := f.svc.Authenticate(context.Background(), "")

		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("invalid token", func(t *testing.T) {
		f := newChatFixture(t)
		f.tokens.EXPECT().ValidateToken("bad").Return(nil, errors.New("signature is invalid"))

		_, err := f.svc.Authenticate(context.Background(), "bad")

		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("valid token", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.tokens.EXPECT().ValidateToken("good").Return(&jwt.Claims{UserID: "u-1"}, nil)

		claims, err := f.svc.Authenticate(context.Background(), "good")

		req.NoError(err)
		req.Equal("u-1", claims.UserID)
	})
}

func TestChatService_ConnectAndDisconnect(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	p := f.peer("s-1", "u-1")

	// Given
	gomock.InOrder(
		f.users.EXPECT().SetPresence(gomock.Any(), "u-1", true, gomock.Any()).Return(nil),
		f.notifier.EXPECT().Broadcast(gomock.Any()).Return(nil),
		f.users.EXPECT().SetPresence(gomock.Any(), "u-1", false, gomock.Any()).Return(nil),
		f.notifier.EXPECT().Broadcast(gomock.Any()).Return(nil),
	)

	// When
	f.svc.HandleConnect(context.Background(), p)

	// Then
	_, ok := f.registry.Lookup("u-1")
	req.True(ok)

	// When
	f.svc.HandleDisconnect(context.Background(), p)

	// Then
	_, ok = f.registry.Lookup("u-1")
	req.False(ok)
}

func TestChatService_HandleDirectMessage_ReportsValidationError(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	p := f.peer("s-1", "u-1")

	// Given
	var pushed *domain.ErrorEvent
	p.EXPECT().SendEvent(gomock.Any()).DoAndReturn(func(event interface{}) error {
		pushed = event.(*domain.ErrorEvent)
		return nil
	})

	// When
	err := f.svc.HandleDirectMessage(context.Background(), p, "u-2", "   ")

	// Then
	req.ErrorIs(err, domain.ErrValidation)
	req.NotNil(pushed)
	req.Equal(domain.EventError, pushed.Type)
}

func TestChatService_HandleSignal_RequiresExactlyOneTarget(t *testing.T) {
	f := newChatFixture(t)
	p := f.peer("s-1", "u-1")
	p.EXPECT().SendEvent(gomock.Any()).Return(nil)

	err := f.svc.HandleSignal(context.Background(), p, domain.EventTypingStart, "u-2", "g-1")

	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestChatService_HandleMarkAsRead(t *testing.T) {
	f := newChatFixture(t)
	p := f.peer("s-1", "u-1")
	f.reads.EXPECT().Upsert(gomock.Any(), "u-1", "g-1", gomock.Any()).Return(nil)

	require.NoError(t, f.svc.HandleMarkAsRead(context.Background(), p, "g-1"))
}
