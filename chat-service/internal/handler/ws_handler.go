package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
)

// WSHandler upgrades authenticated requests to websocket sessions and
// dispatches their inbound events.
type WSHandler struct {
	service  service.ChatService
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
	validate *validator.Validate
	mu       sync.Mutex
	clients  map[*hub.Client]struct{}
	sessions sync.WaitGroup
}

func NewWSHandler(svc service.ChatService, wsCfg config.WebSocketConfig) *WSHandler {
	h := &WSHandler{
		service:  svc,
		wsCfg:    wsCfg,
		validate: validator.New(),
		clients:  make(map[*hub.Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.wsCfg.AllowedOrigins) == 0 || lo.Contains(h.wsCfg.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || lo.Contains(h.wsCfg.AllowedOrigins, origin)
}

// HandleWebSocket handles GET /ws. The token comes from ?token= or the
// Authorization header and is verified before the upgrade.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	l := log.Ctx(ctx)

	claims, err := h.service.Authenticate(ctx, handshakeToken(r))
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, domain.PublicMessage(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, claims.UserID).Msg("websocket upgrade failed")
		return
	}

	session := domain.NewSession(uuid.New().String(), claims.UserID, claims.Email)
	client := hub.NewClient(ctx, session, conn, h.wsCfg)
	h.track(client)
	defer h.untrack(client)
	cl := log.Ctx(client.Context())
	cl.Info().Msg("websocket session opened")

	h.service.HandleConnect(client.Context(), client)

	go client.WritePump()
	client.ReadPump(h.handleMessage)

	h.service.HandleDisconnect(client.Context(), client)
	cl.Info().Msg("websocket session closed")
}

func (h *WSHandler) track(c *hub.Client) {
	h.sessions.Add(1)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WSHandler) untrack(c *hub.Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	h.sessions.Done()
}

// Shutdown closes every open session, including displaced ones the registry
// no longer knows about, and waits until each has been detached or ctx is done.
func (h *WSHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for c := range h.clients {
		c.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) handleMessage(client *hub.Client, message []byte) {
	ctx := client.Context()
	l := log.Ctx(ctx)

	var base domain.BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		h.reject(client, "invalid message format")
		return
	}

	var err error
	switch base.Type {
	case domain.EventSendDirectMessage:
		var evt domain.SendDirectMessageEvent
		if !h.decode(client, message, &evt) {
			return
		}
		err = h.service.HandleDirectMessage(ctx, client, evt.RecipientID, evt.Content)

	case domain.EventSendGroupMessage:
		var evt domain.SendGroupMessageEvent
		if !h.decode(client, message, &evt) {
			return
		}
		err = h.service.HandleGroupMessage(ctx, client, evt.GroupID, evt.Content)

	case domain.EventMarkAsRead:
		var evt domain.MarkAsReadEvent
		if !h.decode(client, message, &evt) {
			return
		}
		err = h.service.HandleMarkAsRead(ctx, client, evt.ConversationID)

	case domain.EventTypingStart, domain.EventTypingStop, domain.EventChatCleared:
		var evt domain.SignalEvent
		if !h.decode(client, message, &evt) {
			return
		}
		err = h.service.HandleSignal(ctx, client, base.Type, evt.RecipientID, evt.GroupID)

	case domain.EventPing:
		err = client.SendEvent(domain.PongEvent)

	default:
		h.reject(client, "unknown event type")
		return
	}

	if err != nil {
		l.Debug().Err(err).Str(log.FieldEventType, base.Type).Msg("event handling failed")
	}
}

// decode unmarshals and validates an inbound event, replying with a
// BAD_REQUEST error event on failure.
func (h *WSHandler) decode(client *hub.Client, message []byte, v interface{}) bool {
	if err := json.Unmarshal(message, v); err != nil {
		h.reject(client, "invalid message format")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		h.reject(client, "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (h *WSHandler) reject(client *hub.Client, msg string) {
	if err := client.SendEvent(domain.NewErrorEvent(domain.ErrCodeBadRequest, msg)); err != nil {
		l := log.Ctx(client.Context())
		l.Debug().Err(err).Msg("failed to push error event")
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *WSHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws", h.HandleWebSocket).Methods(http.MethodGet)
}

func handshakeToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	token, err := middleware.BearerToken(r.Header.Get(middleware.AuthHeaderKey))
	if err != nil {
		return ""
	}
	return token
}
