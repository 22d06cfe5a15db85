package config

import (
	"time"

	pkgconfig "github.com/JimmyPiedrahita/netflis/pkg/config"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
)

// Config holds all configuration for the stream service.
type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Origin OriginConfig  `mapstructure:"origin"`
	Stream StreamConfig  `mapstructure:"stream"`
	Cache  CacheConfig   `mapstructure:"cache"`
	Log    pkglog.Config `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// WriteTimeout of zero lets long byte streams run to completion.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// OriginConfig describes the remote object store the proxy reads from.
type OriginConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	MediaQuery string `mapstructure:"media_query"`

	SizeTimeout    time.Duration `mapstructure:"size_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`

	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

type StreamConfig struct {
	// FastStartBytes bounds the first slice served for an open range at 0.
	FastStartBytes     int64  `mapstructure:"fast_start_bytes"`
	CopyBufferBytes    int    `mapstructure:"copy_buffer_bytes"`
	DefaultContentType string `mapstructure:"default_content_type"`
}

type CacheConfig struct {
	Driver     string        `mapstructure:"driver"` // "memory" or "redis"
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("origin.base_url", "https://www.googleapis.com/drive/v3/files")
	v.SetDefault("origin.media_query", "alt=media")
	v.SetDefault("origin.size_timeout", "5s")
	v.SetDefault("origin.max_retries", 3)
	v.SetDefault("origin.initial_backoff", "200ms")
	v.SetDefault("origin.max_backoff", "2s")
	v.SetDefault("origin.max_conns_per_host", 64)
	v.SetDefault("origin.max_idle_conns_per_host", 16)
	v.SetDefault("origin.idle_conn_timeout", "90s")
	v.SetDefault("stream.fast_start_bytes", 2<<20)
	v.SetDefault("stream.copy_buffer_bytes", 32<<10)
	v.SetDefault("stream.default_content_type", "video/mp4")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "stream:size:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "stream-service")

	if err := pkgconfig.BindEnvs(v,
		"server.port", "PORT",
		"origin.base_url", "ORIGIN_BASE_URL",
		"origin.max_retries", "ORIGIN_MAX_RETRIES",
		"stream.fast_start_bytes", "FAST_START_BYTES",
		"cache.driver", "CACHE_DRIVER",
		"cache.redis.address", "REDIS_ADDRESS",
		"cache.redis.password", "REDIS_PASSWORD",
		"log.level", "LOG_LEVEL",
	); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.WriteTimeout = pkgconfig.Duration(v, "server.write_timeout", 0)
	cfg.Origin.SizeTimeout = pkgconfig.Duration(v, "origin.size_timeout", 5*time.Second)
	cfg.Origin.InitialBackoff = pkgconfig.Duration(v, "origin.initial_backoff", 200*time.Millisecond)
	cfg.Origin.MaxBackoff = pkgconfig.Duration(v, "origin.max_backoff", 2*time.Second)
	cfg.Origin.IdleConnTimeout = pkgconfig.Duration(v, "origin.idle_conn_timeout", 90*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 10*time.Minute)

	return &cfg, nil
}
