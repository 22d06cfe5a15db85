package kafka

import (
	"context"
	"time"
)

// RoomEvent is published whenever a room comes into or goes out of existence.
type RoomEvent struct {
	Type       string `json:"type"`
	RoomID     string `json:"room_id"`
	LifetimeMs int64  `json:"lifetime_ms,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Event types
const (
	EventRoomCreated   = "room_created"
	EventRoomDestroyed = "room_destroyed"
)

// RoomEventProducer publishes room lifecycle events for analytics consumers.
type RoomEventProducer interface {
	ProduceRoomCreated(ctx context.Context, roomID string) error
	ProduceRoomDestroyed(ctx context.Context, roomID string, lifetime time.Duration) error
	Close() error
}
