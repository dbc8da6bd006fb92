package pubsub

import (
	"fmt"
	"strings"
	"time"
)

// Supported bus drivers.
const (
	DriverRedis = "redis"
	DriverKafka = "kafka"
)

// Config selects the driver that carries cross-instance chat events.
type Config struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
	Kafka  KafkaConfig `mapstructure:"kafka"`

	// Buffer is the per-subscription queue depth. Events beyond it are dropped.
	Buffer int `mapstructure:"buffer"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// KafkaConfig names the brokers and the consumer group prefix. Callers that
// want every instance to see every event must make GroupID unique per instance.
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	GroupID    string `mapstructure:"group_id"`
	Partitions int    `mapstructure:"partitions"`
}

func DefaultConfig() Config {
	return Config{
		Driver: DriverRedis,
		Redis: RedisConfig{
			Address:      "localhost:6379",
			PoolSize:     10,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			GroupID:    "chat-service",
			Partitions: 8,
		},
		Buffer: 256,
	}
}

// NewPubSub connects the configured driver. An empty driver means redis.
func NewPubSub(cfg Config) (PubSub, error) {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverRedis, "":
		return NewRedisPubSub(cfg.Redis, cfg.Buffer)
	case DriverKafka:
		return NewKafkaPubSub(cfg.Kafka, cfg.Buffer)
	default:
		return nil, fmt.Errorf("pubsub: unknown driver %q", cfg.Driver)
	}
}
