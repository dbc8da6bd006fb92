package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	svcmocks "github.com/weiawesome/wes-io-chat/chat-service/internal/service/mocks"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func newWSServer(t *testing.T, svc service.ChatService) *httptest.Server {
	r := mux.NewRouter()
	NewWSHandler(svc, config.WebSocketConfig{
		PingInterval: time.Hour,
		PongWait:     time.Hour,
		WriteWait:    time.Second,
		SendBuffer:   16,
	}).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt map[string]interface{}
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestWSHandler_RejectsBeforeUpgrade(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	svc := svcmocks.NewMockChatService(ctrl)
	srv := newWSServer(t, svc)

	// Given
	svc.EXPECT().Authenticate(gomock.Any(), "").Return(nil, domain.NewAuthError("authentication token required", nil))

	// When
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)

	// Then
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestWSHandler_Session(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	svc := svcmocks.NewMockChatService(ctrl)
	srv := newWSServer(t, svc)

	sent := make(chan string, 1)
	disconnected := make(chan struct{})

	// Given
	svc.EXPECT().Authenticate(gomock.Any(), "tok").Return(&jwt.Claims{UserID: "u-1", Email: "u1@example.com"}, nil)
	connected := make(chan string, 1)
	svc.EXPECT().HandleConnect(gomock.Any(), gomock.Any()).Do(func(_ context.Context, p service.Peer) {
		connected <- p.UserID()
	})
	svc.EXPECT().HandleDirectMessage(gomock.Any(), gomock.Any(), "u-2", "hello").DoAndReturn(
		func(_ context.Context, _ service.Peer, _, content string) error {
			sent <- content
			return nil
		})
	svc.EXPECT().HandleDisconnect(gomock.Any(), gomock.Any()).Do(func(context.Context, service.Peer) {
		close(disconnected)
	})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=tok"), nil)
	req.NoError(err)
	req.Equal("u-1", <-connected)

	// When / Then: ping is answered
	req.NoError(conn.WriteJSON(map[string]string{"type": "ping"}))
	req.Equal("pong", readEvent(t, conn)["type"])

	// When / Then: unknown event type
	req.NoError(conn.WriteJSON(map[string]string{"type": "dance"}))
	evt := readEvent(t, conn)
	req.Equal("error", evt["type"])
	req.Equal(domain.ErrCodeBadRequest, evt["code"])

	// When / Then: payload fails validation
	req.NoError(conn.WriteJSON(map[string]string{"type": "send_direct_message", "recipientId": "u-2"}))
	req.Equal(domain.ErrCodeBadRequest, readEvent(t, conn)["code"])

	// When / Then: valid direct message reaches the service
	req.NoError(conn.WriteJSON(map[string]string{"type": "send_direct_message", "recipientId": "u-2", "content": "hello"}))
	select {
	case content := <-sent:
		req.Equal("hello", content)
	case <-time.After(2 * time.Second):
		t.Fatal("direct message not dispatched")
	}

	// When / Then: closing the socket detaches the session
	req.NoError(conn.Close())
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not detached")
	}
}

func TestWSHandler_BearerHeader(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	svc := svcmocks.NewMockChatService(ctrl)
	srv := newWSServer(t, svc)
	disconnected := make(chan struct{})

	// Given
	svc.EXPECT().Authenticate(gomock.Any(), "hdr").Return(&jwt.Claims{UserID: "u-1"}, nil)
	svc.EXPECT().HandleConnect(gomock.Any(), gomock.Any())
	svc.EXPECT().HandleDisconnect(gomock.Any(), gomock.Any()).Do(func(context.Context, service.Peer) {
		close(disconnected)
	})

	// When
	header := http.Header{}
	header.Set("Authorization", "Bearer hdr")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)

	// Then
	req.NoError(err)
	req.NoError(conn.Close())
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("session was not detached")
	}
}

func TestWSHandler_CheckOrigin(t *testing.T) {
	req := require.New(t)
	h := NewWSHandler(nil, config.WebSocketConfig{AllowedOrigins: []string{"https://chat.example.com"}})

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.True(h.checkOrigin(r))

	r.Header.Set("Origin", "https://chat.example.com")
	req.True(h.checkOrigin(r))

	r.Header.Set("Origin", "https://evil.example.com")
	req.False(h.checkOrigin(r))
}
