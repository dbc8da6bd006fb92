package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// RedisPubSub carries events over Redis PUBLISH/SUBSCRIBE. Delivery is at
// most once and only to instances subscribed at publish time.
type RedisPubSub struct {
	client *redis.Client
	buffer int

	mu   sync.Mutex
	subs map[string]*redis.PubSub
}

func NewRedisPubSub(cfg RedisConfig, buffer int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub: redis ping %s: %w", cfg.Address, err)
	}

	return newRedisPubSub(client, buffer), nil
}

func newRedisPubSub(client *redis.Client, buffer int) *RedisPubSub {
	if buffer <= 0 {
		buffer = DefaultConfig().Buffer
	}
	return &RedisPubSub{
		client: client,
		buffer: buffer,
		subs:   make(map[string]*redis.PubSub),
	}
}

func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: encode %s: %w", event.Type, err)
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("pubsub: publish to %s: %w", channel, err)
	}
	return nil
}

func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return r.attach(ctx, channel, r.client.Subscribe(ctx, channel))
}

func (r *RedisPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return r.attach(ctx, pattern, r.client.PSubscribe(ctx, pattern))
}

// attach waits for the subscription confirmation so events published right
// after Subscribe returns are not missed, then starts the read loop.
func (r *RedisPubSub) attach(ctx context.Context, key string, ps *redis.PubSub) (<-chan *Event, error) {
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("pubsub: subscribe %s: %w", key, err)
	}

	r.mu.Lock()
	if prev, ok := r.subs[key]; ok {
		_ = prev.Close()
	}
	r.subs[key] = ps
	r.mu.Unlock()

	out := make(chan *Event, r.buffer)
	go r.read(ctx, ps, out)
	return out, nil
}

func (r *RedisPubSub) Unsubscribe(_ context.Context, channel string) error {
	r.mu.Lock()
	ps, ok := r.subs[channel]
	delete(r.subs, channel)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return ps.Close()
}

func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*redis.PubSub)
	r.mu.Unlock()

	var errs []error
	for _, ps := range subs {
		errs = append(errs, ps.Close())
	}
	errs = append(errs, r.client.Close())
	return errors.Join(errs...)
}

func (r *RedisPubSub) read(ctx context.Context, ps *redis.PubSub, out chan<- *Event) {
	defer close(out)
	l := log.L()
	msgs := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			evt, err := decodeEvent([]byte(msg.Payload))
			if err != nil {
				l.Warn().Err(err).Str("channel", msg.Channel).Msg("pubsub: dropping undecodable redis event")
				continue
			}
			if !forward(ctx, out, evt, DriverRedis) {
				return
			}
		}
	}
}
