package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// deregisterScript deletes the key only while it still names this instance,
// so a reconnect on another instance is not erased.
var deregisterScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisDirectory is a Directory backed by Redis keys with a TTL refreshed by
// a heartbeat. A crashed instance's entries expire on their own.
type RedisDirectory struct {
	client            *redis.Client
	instanceID        string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{} // keys managed by this instance
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisDirectory(cfg config.RedisConfig, instanceID string) (*RedisDirectory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisDirectory(client, cfg, instanceID), nil
}

func newRedisDirectory(client *redis.Client, cfg config.RedisConfig, instanceID string) *RedisDirectory {
	return &RedisDirectory{
		client:            client,
		instanceID:        instanceID,
		prefix:            cfg.DirectoryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

// keyFor builds {prefix}:user:{userID}.
func (r *RedisDirectory) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

func (r *RedisDirectory) Register(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, r.instanceID, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldUserID, userID).Str(log.FieldInstance, r.instanceID).Msg("registered user in directory")
	return nil
}

func (r *RedisDirectory) Deregister(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	if err := deregisterScript.Run(ctx, r.client, []string{key}, r.instanceID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to deregister user: %w", err)
	}

	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldUserID, userID).Msg("deregistered user from directory")
	return nil
}

// Lookup returns the instance id holding userID's session.
func (r *RedisDirectory) Lookup(ctx context.Context, userID string) (string, error) {
	instance, err := r.client.Get(ctx, r.keyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotRegistered
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup user: %w", err)
	}
	return instance, nil
}

func (r *RedisDirectory) StartHeartbeat(ctx context.Context) error {
	if r.heartbeatInterval <= 0 {
		return fmt.Errorf("invalid heartbeat interval %s", r.heartbeatInterval)
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("directory heartbeat started")
	return nil
}

func (r *RedisDirectory) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisDirectory) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, r.instanceID, r.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.L()
		l.Error().Err(err).Int("keys", len(keys)).Msg("failed to refresh directory keys")
	}
}

func (r *RedisDirectory) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisDirectory) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
