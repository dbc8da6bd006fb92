package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

var ErrHubStopped = errors.New("hub stopped")

// Hub pushes events to the sessions held by a Connection Registry. Broadcasts
// go through the Run loop, which also emits the periodic ping event.
type Hub struct {
	registry  registry.Registry
	broadcast chan []byte
	heartbeat time.Duration
	done      chan struct{}
	stopOnce  sync.Once
}

func NewHub(reg registry.Registry, heartbeat time.Duration) *Hub {
	return &Hub{
		registry:  reg,
		broadcast: make(chan []byte, 256),
		heartbeat: heartbeat,
		done:      make(chan struct{}),
	}
}

func (h *Hub) Registry() registry.Registry {
	return h.registry
}

// Run fans out broadcasts until ctx is done or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	var tick <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		tick = ticker.C
	}

	ping, _ := json.Marshal(domain.PingEvent)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case data := <-h.broadcast:
			h.fanOut(data)
		case <-tick:
			h.fanOut(ping)
		}
	}
}

func (h *Hub) fanOut(data []byte) {
	for _, s := range h.registry.Sessions() {
		if err := s.Send(data); err != nil {
			l := log.L()
			l.Debug().Err(err).Str(log.FieldSessionID, s.ID()).Str(log.FieldUserID, s.UserID()).Msg("broadcast skipped session")
		}
	}
}

// Broadcast queues event for every connected session.
func (h *Hub) Broadcast(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return h.BroadcastRaw(data)
}

func (h *Hub) BroadcastRaw(data []byte) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// SendTo pushes event to userID's live session. It reports false without an
// error when the identity is offline.
func (h *Hub) SendTo(userID string, event interface{}) (bool, error) {
	s, ok := h.registry.Lookup(userID)
	if !ok {
		return false, nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return false, err
	}
	if err := s.Send(data); err != nil {
		return false, err
	}
	return true, nil
}

// Stop ends the Run loop and closes every session.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
	for _, s := range h.registry.Sessions() {
		s.Close()
	}
}
