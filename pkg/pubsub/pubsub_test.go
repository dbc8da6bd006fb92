package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicFor(t *testing.T) {
	req := require.New(t)

	topic, err := topicFor(ChannelPresence)
	req.NoError(err)
	req.Equal("chat-presence", topic)

	_, err = topicFor("chat:*")
	req.Error(err)
	_, err = topicFor("")
	req.Error(err)
}

func TestTopicPattern(t *testing.T) {
	req := require.New(t)

	topic, err := topicPattern(PatternAll)
	req.NoError(err)
	req.Equal("^chat-.*", topic)

	topic, err = topicPattern(ChannelGroups)
	req.NoError(err)
	req.Equal("chat-groups", topic)
}

func TestConsumerGroup(t *testing.T) {
	req := require.New(t)

	req.Equal("chat-svc-chat--", consumerGroup("chat-svc", "chat:*"))
	req.Equal("chat-service-chat-groups", consumerGroup("", "chat-groups"))
}

func TestNewEvent(t *testing.T) {
	req := require.New(t)

	evt, err := NewEvent(EventPresenceChanged, "u1", "instance-a", PresenceChangedPayload{UserID: "u1", Online: true})
	req.NoError(err)
	req.Equal("u1", evt.Key)
	req.True(evt.FromInstance("instance-a"))
	req.False(evt.FromInstance("instance-b"))
	req.False(evt.FromInstance(""))
	req.Equal(time.UTC, evt.Timestamp.Location())

	var p PresenceChangedPayload
	req.NoError(evt.UnmarshalPayload(&p))
	req.Equal("u1", p.UserID)
	req.True(p.Online)
}

func TestDecodeEvent(t *testing.T) {
	req := require.New(t)

	evt, err := decodeEvent([]byte(`{"type":"group.deleted","key":"g-1","payload":{"group_id":"g-1"}}`))
	req.NoError(err)
	req.Equal(EventGroupDeleted, evt.Type)

	_, err = decodeEvent([]byte(`{"key":"g-1"}`))
	req.ErrorIs(err, errMalformedEvent)

	_, err = decodeEvent([]byte(`not json`))
	req.Error(err)
}

func TestForward_DropsWhenFull(t *testing.T) {
	req := require.New(t)
	out := make(chan *Event, 1)
	ctx, cancel := context.WithCancel(context.Background())

	// Given: a subscriber queue that already holds one event
	req.True(forward(ctx, out, &Event{Type: "a"}, DriverRedis))

	// When: another event arrives
	// Then: it is dropped and the loop keeps going
	req.True(forward(ctx, out, &Event{Type: "b"}, DriverRedis))
	req.Equal("a", (<-out).Type)

	// When: the subscription context ends while the queue is full
	out <- &Event{Type: "c"}
	cancel()
	req.False(forward(ctx, out, &Event{Type: "d"}, DriverRedis))
}

func TestNewPubSub_UnknownDriver(t *testing.T) {
	_, err := NewPubSub(Config{Driver: "nats"})
	require.ErrorContains(t, err, "unknown driver")
}

func TestDefaultConfig(t *testing.T) {
	req := require.New(t)
	cfg := DefaultConfig()

	req.Equal(DriverRedis, cfg.Driver)
	req.Equal("localhost:6379", cfg.Redis.Address)
	req.Equal(256, cfg.Buffer)
}
