// Package protocol defines the websocket frames exchanged between the sync
// relay and its participants. Every frame is a JSON text message of the
// form {"event": "...", "data": {...}}.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> server events.
const (
	EventJoinRoom   = "join_room"
	EventLeaveRoom  = "leave_room"
	EventSyncAction = "sync_action"
	EventPing       = "ping"
)

// Server -> client events. sync_action is also relayed server -> client.
const (
	EventRoomUsersUpdate = "room_users_update"
	EventUserJoined      = "user_joined"
	EventError           = "error"
	EventPong            = "pong"
)

// Error codes carried by EventError frames.
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeRoomFull     = "ROOM_FULL"
	ErrCodeRoomLimit    = "ROOM_LIMIT"
	ErrCodeRateLimited  = "RATE_LIMITED"
)

var ErrMissingEvent = errors.New("frame has no event name")

// Envelope is the outer shape of every frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode parses the envelope of a frame without interpreting Data.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// Encode builds a frame for event with data marshalled as its payload.
func Encode(event string, data any) ([]byte, error) {
	env := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: event, Data: data}
	return json.Marshal(env)
}

// MustEncode is Encode for payloads that cannot fail to marshal.
func MustEncode(event string, data any) []byte {
	b, err := Encode(event, data)
	if err != nil {
		panic(err)
	}
	return b
}

// Unmarshal decodes the envelope payload into v.
func (e Envelope) Unmarshal(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
