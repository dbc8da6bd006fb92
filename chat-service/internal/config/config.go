package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
	pkgconfig "github.com/weiawesome/wes-io-chat/pkg/config"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

const (
	SignalScopeAll     = "all"
	SignalScopeMembers = "members"
)

type Config struct {
	InstanceID string `mapstructure:"instance_id"`
	Server     ServerConfig
	API        ServerConfig `mapstructure:"api"`
	GRPC       GRPCConfig
	WebSocket  WebSocketConfig
	Chat       ChatConfig
	Auth       AuthConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	PubSub     PubSubConfig `mapstructure:"pubsub"`
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

type ChatConfig struct {
	// HeartbeatInterval is how often every session receives a ping event.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	GroupSignalScope  string        `mapstructure:"group_signal_scope"`
	HistoryPageSize   int           `mapstructure:"history_page_size"`
	MaxPageSize       int           `mapstructure:"max_page_size"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	AccessTTL time.Duration `mapstructure:"access_ttl"`
	Issuer    string
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	DirectoryPrefix   string        `mapstructure:"directory_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
}

type PubSubConfig struct {
	Enabled bool
	Driver  string
	Buffer  int
	Kafka   pubsub.KafkaConfig
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	if err := pkgconfig.LoadDotEnv(); err != nil {
		return nil, err
	}

	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("instance_id", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50052)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.allowed_origins", []string{})
	v.SetDefault("chat.heartbeat_interval", "30s")
	v.SetDefault("chat.group_signal_scope", SignalScopeAll)
	v.SetDefault("chat.history_page_size", 50)
	v.SetDefault("chat.max_page_size", 200)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", "168h")
	v.SetDefault("auth.issuer", "wes-io-chat")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chat_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/chat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.directory_prefix", "chat:directory")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.buffer", 256)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "chat-service")
	v.SetDefault("pubsub.kafka.partitions", 8)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("instance_id", "INSTANCE_ID")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("api.port", "API_PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("chat.group_signal_scope", "CHAT_GROUP_SIGNAL_SCOPE")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.enabled", "PUBSUB_ENABLED")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.ParseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.ParseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.ParseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Chat.HeartbeatInterval = pkgconfig.ParseDuration(v, "chat.heartbeat_interval", 30*time.Second)
	cfg.Auth.AccessTTL = pkgconfig.ParseDuration(v, "auth.access_ttl", 7*24*time.Hour)
	cfg.Redis.HeartbeatInterval = pkgconfig.ParseDuration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.ParseDuration(v, "redis.key_ttl", 30*time.Second)

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.InstanceID == "" {
		c.InstanceID = uuid.New().String()
	}
	scope := strings.ToLower(strings.TrimSpace(c.Chat.GroupSignalScope))
	if scope != SignalScopeMembers {
		scope = SignalScopeAll
	}
	c.Chat.GroupSignalScope = scope
	if c.Chat.HistoryPageSize <= 0 {
		c.Chat.HistoryPageSize = 50
	}
	if c.Chat.MaxPageSize < c.Chat.HistoryPageSize {
		c.Chat.MaxPageSize = c.Chat.HistoryPageSize
	}
	if c.WebSocket.SendBuffer <= 0 {
		c.WebSocket.SendBuffer = 256
	}
}

// DatabaseOptions converts the database section for pkg/database.
func (c *Config) DatabaseOptions() *database.Config {
	d := c.Database
	return &database.Config{
		Driver:          d.Driver,
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		DBName:          d.DBName,
		SSLMode:         d.SSLMode,
		FilePath:        d.FilePath,
		MaxIdleConns:    d.MaxIdleConns,
		MaxOpenConns:    d.MaxOpenConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		LogLevel:        d.LogLevel,
	}
}

// PubSubOptions converts the pubsub section, reusing the redis connection
// settings. The Kafka consumer group is made unique per instance so every
// instance sees every event.
func (c *Config) PubSubOptions() pubsub.Config {
	cfg := pubsub.DefaultConfig()
	cfg.Driver = c.PubSub.Driver
	cfg.Buffer = c.PubSub.Buffer
	cfg.Redis.Address = c.Redis.Address
	cfg.Redis.Password = c.Redis.Password
	cfg.Redis.DB = c.Redis.DB
	cfg.Kafka = c.PubSub.Kafka
	cfg.Kafka.GroupID = c.PubSub.Kafka.GroupID + "-" + c.InstanceID
	return cfg
}

func (c *Config) LogOptions(serviceName string) pkglog.Config {
	return pkglog.Config{
		Level:       c.Log.Level,
		Pretty:      c.Log.Pretty,
		ServiceName: serviceName,
		InstanceID:  c.InstanceID,
	}
}
