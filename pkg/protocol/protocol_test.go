package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSyncActionHeader(t *testing.T) {
	frame := []byte(`{"event":"sync_action","data":{"roomId":"r1","type":"seek","currentTime":12.5,"isPlaying":false,"extra":{"x":1}}}`)

	env, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, EventSyncAction, env.Event)

	var hdr ActionHeader
	require.NoError(t, env.Unmarshal(&hdr))
	assert.Equal(t, "r1", hdr.RoomID)
	assert.Equal(t, ActionSeek, hdr.Type)

	var act SyncAction
	require.NoError(t, env.Unmarshal(&act))
	require.NotNil(t, act.CurrentTime)
	require.NotNil(t, act.IsPlaying)
	assert.Equal(t, 12.5, *act.CurrentTime)
	assert.False(t, *act.IsPlaying)
	assert.Nil(t, act.VideoData)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMissingEvent)

	env, err := Decode([]byte(`{"event":"sync_action"}`))
	require.NoError(t, err)
	var hdr ActionHeader
	assert.Error(t, env.Unmarshal(&hdr))

	env, err = Decode([]byte(`{"event":"sync_action","data":{"roomId":42}}`))
	require.NoError(t, err)
	assert.Error(t, env.Unmarshal(&hdr))
}

func TestEncodeOmitsMissingOptionals(t *testing.T) {
	b, err := Encode(EventSyncAction, SyncAction{RoomID: "r", Type: ActionPause, CurrentTime: Float(3)})
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	data := raw["data"]
	assert.Equal(t, "pause", data["type"])
	assert.Equal(t, float64(3), data["currentTime"])
	assert.NotContains(t, data, "isPlaying")
	assert.NotContains(t, data, "videoData")

	pong, err := Encode(EventPong, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"pong"}`, string(pong))
}

func TestVideoDataSameAs(t *testing.T) {
	a := &VideoData{ID: "1", URL: "u", Name: "A"}
	assert.True(t, a.SameAs(&VideoData{ID: "1", URL: "u", Name: "renamed"}))
	assert.False(t, a.SameAs(&VideoData{ID: "1", URL: "u2"}))
	assert.False(t, a.SameAs(nil))
	var none *VideoData
	assert.False(t, none.SameAs(a))
}

func TestRoomRequestsAcceptBareID(t *testing.T) {
	env, err := Decode([]byte(`{"event":"join_room","data":"movie-night"}`))
	require.NoError(t, err)
	var join JoinRoom
	require.NoError(t, env.Unmarshal(&join))
	assert.Equal(t, JoinRoom{RoomID: "movie-night"}, join)

	env, err = Decode([]byte(`{"event":"join_room","data":{"roomId":"r","token":"t"}}`))
	require.NoError(t, err)
	require.NoError(t, env.Unmarshal(&join))
	assert.Equal(t, JoinRoom{RoomID: "r", Token: "t"}, join)

	env, err = Decode([]byte(`{"event":"leave_room","data":"movie-night"}`))
	require.NoError(t, err)
	var leave LeaveRoom
	require.NoError(t, env.Unmarshal(&leave))
	assert.Equal(t, "movie-night", leave.RoomID)

	env, err = Decode([]byte(`{"event":"leave_room","data":42}`))
	require.NoError(t, err)
	assert.Error(t, env.Unmarshal(&leave))
}

func TestVideoSizeAcceptsNumberOrString(t *testing.T) {
	for _, raw := range []string{`"10000000"`, `10000000`} {
		var v VideoData
		require.NoError(t, json.Unmarshal([]byte(`{"id":"a","url":"u","size":`+raw+`}`), &v), raw)
		assert.Equal(t, ByteSize("10000000"), v.Size, raw)
	}

	var v VideoData
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","url":"u","size":null}`), &v))
	assert.Empty(t, v.Size)
	assert.Error(t, json.Unmarshal([]byte(`{"id":"a","url":"u","size":true}`), &v))

	b, err := json.Marshal(VideoData{ID: "a", URL: "u", Size: "5"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","url":"u","size":"5"}`, string(b))
}
