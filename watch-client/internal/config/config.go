package config

import (
	"time"

	pkgconfig "github.com/JimmyPiedrahita/netflis/pkg/config"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
)

type Config struct {
	Sync   SyncConfig    `mapstructure:"sync"`
	Room   RoomConfig    `mapstructure:"room"`
	Stream StreamConfig  `mapstructure:"stream"`
	Video  VideoConfig   `mapstructure:"video"`
	Log    pkglog.Config `mapstructure:"log"`
}

type SyncConfig struct {
	// URL is the relay's websocket endpoint.
	URL string `mapstructure:"url"`
	// APIURL is the relay's HTTP base, used to create rooms.
	APIURL       string        `mapstructure:"api_url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type RoomConfig struct {
	// ID of the room to join. Empty creates a new room and joins as host.
	ID    string `mapstructure:"id"`
	Token string `mapstructure:"token"`
	Role  string `mapstructure:"role"`
}

type StreamConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	AccessToken string `mapstructure:"access_token"`
}

// VideoConfig optionally selects a video right after joining.
type VideoConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	MimeType string `mapstructure:"mime_type"`
	Size     string `mapstructure:"size"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "watch-client")
	if err != nil {
		return nil, err
	}

	v.SetDefault("sync.url", "ws://localhost:3001/ws")
	v.SetDefault("sync.api_url", "http://localhost:3001")
	v.SetDefault("sync.dial_timeout", "10s")
	v.SetDefault("sync.ping_interval", "25s")
	v.SetDefault("room.role", "guest")
	v.SetDefault("stream.base_url", "http://localhost:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("log.service_name", "watch-client")

	if err := pkgconfig.BindEnvs(v,
		"sync.url", "SYNC_URL",
		"sync.api_url", "SYNC_API_URL",
		"room.id", "ROOM_ID",
		"room.token", "ROOM_TOKEN",
		"stream.base_url", "STREAM_BASE_URL",
		"stream.access_token", "STREAM_ACCESS_TOKEN",
		"video.id", "VIDEO_ID",
		"video.name", "VIDEO_NAME",
		"log.level", "LOG_LEVEL",
	); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Sync.DialTimeout = pkgconfig.Duration(v, "sync.dial_timeout", 10*time.Second)
	cfg.Sync.PingInterval = pkgconfig.Duration(v, "sync.ping_interval", 25*time.Second)
	return &cfg, nil
}
