package service

import (
	"context"
	"time"

	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/hub"
)

// RoomGrant is what a room creator receives: the id to share and, when
// room tokens are configured, the capabilities to hand out.
type RoomGrant struct {
	RoomID     string    `json:"roomId"`
	HostToken  string    `json:"hostToken,omitempty"`
	GuestToken string    `json:"guestToken,omitempty"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
}

// SyncService handles relay operations. Errors returned are for logging;
// anything the client should see has already been sent to it.
type SyncService interface {
	// HandleJoinRoom adds the client to a room and notifies its members.
	HandleJoinRoom(ctx context.Context, client *hub.Client, msg protocol.JoinRoom) error

	// HandleLeaveRoom removes the client from a room and notifies those left.
	HandleLeaveRoom(ctx context.Context, client *hub.Client, roomID string) error

	// HandleSyncAction forwards frame unchanged to everyone else in the room.
	HandleSyncAction(ctx context.Context, client *hub.Client, frame []byte, action protocol.ActionHeader) error

	// HandleDisconnect removes the client from every room it was in.
	HandleDisconnect(ctx context.Context, client *hub.Client) error

	// CreateRoom mints a fresh room id and its tokens.
	CreateRoom(ctx context.Context) (*RoomGrant, error)

	// RoomCount returns the number of live rooms.
	RoomCount() int
}
