package config

import (
	"time"

	pkgconfig "github.com/JimmyPiedrahita/netflis/pkg/config"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Token     TokenConfig     `mapstructure:"token"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Log       pkglog.Config   `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	// RateLimit is inbound frames per second per connection; 0 disables it.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// Change video policies.
const (
	ChangeVideoHost = "host"
	ChangeVideoAny  = "any"
)

type SyncConfig struct {
	MaxRooms          int    `mapstructure:"max_rooms"`
	MaxMembersPerRoom int    `mapstructure:"max_members_per_room"`
	RequireRoomToken  bool   `mapstructure:"require_room_token"`
	ChangeVideoPolicy string `mapstructure:"change_video_policy"`
	RoomIDFormat      string `mapstructure:"room_id_format"`
}

type TokenConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

type KafkaConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Brokers    string `mapstructure:"brokers"`
	Topic      string `mapstructure:"topic"`
	Partitions int    `mapstructure:"partitions"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.rate_limit", 20)
	v.SetDefault("websocket.rate_burst", 40)
	v.SetDefault("sync.max_rooms", 10000)
	v.SetDefault("sync.max_members_per_room", 50)
	v.SetDefault("sync.require_room_token", false)
	v.SetDefault("sync.change_video_policy", ChangeVideoHost)
	v.SetDefault("sync.room_id_format", "uuid")
	v.SetDefault("token.secret", "")
	v.SetDefault("token.ttl", "24h")
	v.SetDefault("token.issuer", "netflis-sync")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "room-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "sync-service")

	if err := pkgconfig.BindEnvs(v,
		"server.port", "PORT",
		"sync.require_room_token", "REQUIRE_ROOM_TOKEN",
		"sync.change_video_policy", "CHANGE_VIDEO_POLICY",
		"token.secret", "ROOM_TOKEN_SECRET",
		"kafka.enabled", "KAFKA_ENABLED",
		"kafka.brokers", "KAFKA_BROKERS",
		"kafka.topic", "KAFKA_ROOM_TOPIC",
		"log.level", "LOG_LEVEL",
	); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Token.TTL = pkgconfig.Duration(v, "token.ttl", 24*time.Hour)

	if cfg.Sync.ChangeVideoPolicy != ChangeVideoAny {
		cfg.Sync.ChangeVideoPolicy = ChangeVideoHost
	}

	return &cfg, nil
}
