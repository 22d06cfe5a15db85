package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType is the kind of a playback SyncEvent.
type ActionType string

const (
	ActionPlay          ActionType = "play"
	ActionPause         ActionType = "pause"
	ActionSeek          ActionType = "seek"
	ActionChangeVideo   ActionType = "change_video"
	ActionSyncFullState ActionType = "sync_full_state"
)

// Known reports whether t is one of the defined action kinds.
func (t ActionType) Known() bool {
	switch t {
	case ActionPlay, ActionPause, ActionSeek, ActionChangeVideo, ActionSyncFullState:
		return true
	}
	return false
}

// JoinRoom asks the relay to add the connection to a room. The payload may
// also be the bare room id string.
type JoinRoom struct {
	RoomID string `json:"roomId"`
	Token  string `json:"token,omitempty"`
}

func (j *JoinRoom) UnmarshalJSON(b []byte) error {
	type plain JoinRoom
	if id, ok, err := bareRoomID(b); ok {
		*j = JoinRoom{RoomID: id}
		return err
	}
	return json.Unmarshal(b, (*plain)(j))
}

// LeaveRoom asks the relay to remove the connection from a room. The
// payload may also be the bare room id string.
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

func (l *LeaveRoom) UnmarshalJSON(b []byte) error {
	type plain LeaveRoom
	if id, ok, err := bareRoomID(b); ok {
		*l = LeaveRoom{RoomID: id}
		return err
	}
	return json.Unmarshal(b, (*plain)(l))
}

func bareRoomID(b []byte) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '"' {
		return "", false, nil
	}
	var id string
	err := json.Unmarshal(b, &id)
	return id, true, err
}

// VideoData references a playable object. ID and URL identify it; the
// rest is display metadata from the catalog.
type VideoData struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Size     ByteSize `json:"size,omitempty"`
	URL      string   `json:"url"`
}

// ByteSize is an object size in bytes. It is sent as a decimal string, as
// catalogs report 64-bit sizes, but a JSON number is accepted too.
type ByteSize string

func (s *ByteSize) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = ByteSize(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	*s = ByteSize(n.String())
	return nil
}

// SameAs reports whether v and o point at the same object through the same URL.
func (v *VideoData) SameAs(o *VideoData) bool {
	if v == nil || o == nil {
		return false
	}
	return v.ID == o.ID && v.URL == o.URL
}

// SyncAction is a playback SyncEvent. Optional fields are pointers so a
// missing value is distinguishable from zero.
type SyncAction struct {
	RoomID      string     `json:"roomId"`
	Type        ActionType `json:"type"`
	CurrentTime *float64   `json:"currentTime,omitempty"`
	IsPlaying   *bool      `json:"isPlaying,omitempty"`
	VideoData   *VideoData `json:"videoData,omitempty"`
}

// ActionHeader is the subset of a sync_action the relay looks at.
type ActionHeader struct {
	RoomID string     `json:"roomId"`
	Type   ActionType `json:"type"`
}

// RoomUsersUpdate carries the membership count after a change.
type RoomUsersUpdate struct {
	Count  int    `json:"count"`
	RoomID string `json:"roomId"`
}

// UserJoined tells existing members someone arrived.
type UserJoined struct {
	ParticipantID string `json:"participantId"`
	RoomID        string `json:"roomId"`
}

// Error is sent to a single connection when one of its requests is refused.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Float and Bool return pointers for optional SyncAction fields.
func Float(f float64) *float64 { return &f }
func Bool(b bool) *bool { return &b }
