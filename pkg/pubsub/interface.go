package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Event is the envelope every chat instance publishes on the bus.
type Event struct {
	Type string `json:"type"`
	// Key orders related events: conversation id for messages, user id for
	// presence, group id for group changes.
	Key       string          `json:"key"`
	Source    string          `json:"source,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

var errMalformedEvent = errors.New("pubsub: event has no type")

func NewEvent(eventType, key, source string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Key:       key,
		Source:    source,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// FromInstance reports whether the event was published by instanceID.
func (e *Event) FromInstance(instanceID string) bool {
	return instanceID != "" && e.Source == instanceID
}

func decodeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if evt.Type == "" {
		return nil, errMalformedEvent
	}
	return &evt, nil
}

//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../../chat-service/internal/mocks/mock_pubsub.go -package=mocks

type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber hands out a channel per subscription. The channel is closed when
// ctx ends, the subscription is removed, or the bus is closed.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *Event, error)
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
	Unsubscribe(ctx context.Context, channel string) error
}

type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
