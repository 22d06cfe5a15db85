package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/hub"
)

type fakeProducer struct {
	created   []string
	destroyed []string
}

func (f *fakeProducer) ProduceRoomCreated(_ context.Context, roomID string) error {
	f.created = append(f.created, roomID)
	return nil
}

func (f *fakeProducer) ProduceRoomDestroyed(_ context.Context, roomID string, _ time.Duration) error {
	f.destroyed = append(f.destroyed, roomID)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func newHub() *hub.Hub {
	return hub.NewHub(config.WebSocketConfig{SendBuffer: 64})
}

// drain returns every frame queued for c so far, decoded.
func drain(t *testing.T, c *hub.Client) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case frame := <-c.Outbox():
			env, err := protocol.Decode(frame)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

func events(envs []protocol.Envelope) []string {
	names := make([]string, 0, len(envs))
	for _, e := range envs {
		names = append(names, e.Event)
	}
	return names
}

func countOf(t *testing.T, env protocol.Envelope) int {
	t.Helper()
	var u protocol.RoomUsersUpdate
	require.NoError(t, env.Unmarshal(&u))
	return u.Count
}

func TestJoinBroadcastsCountAndArrival(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{ChangeVideoPolicy: config.ChangeVideoHost}, nil, nil, nil, nil)

	a := hub.NewClient("a", h, nil, nil)
	b := hub.NewClient("b", h, nil, nil)

	require.NoError(t, svc.HandleJoinRoom(ctx, a, protocol.JoinRoom{RoomID: "r"}))
	got := drain(t, a)
	require.Equal(t, []string{protocol.EventRoomUsersUpdate}, events(got))
	assert.Equal(t, 1, countOf(t, got[0]))

	require.NoError(t, svc.HandleJoinRoom(ctx, b, protocol.JoinRoom{RoomID: "r"}))

	gotA := drain(t, a)
	require.Equal(t, []string{protocol.EventRoomUsersUpdate, protocol.EventUserJoined}, events(gotA))
	assert.Equal(t, 2, countOf(t, gotA[0]))
	var joined protocol.UserJoined
	require.NoError(t, gotA[1].Unmarshal(&joined))
	assert.Equal(t, "b", joined.ParticipantID)

	// The joiner gets the count but no arrival notice about itself.
	gotB := drain(t, b)
	require.Equal(t, []string{protocol.EventRoomUsersUpdate}, events(gotB))
	assert.Equal(t, 2, countOf(t, gotB[0]))
}

func TestRelayNeverEchoesAndForwardsVerbatim(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{ChangeVideoPolicy: config.ChangeVideoAny}, nil, nil, nil, nil)

	a := hub.NewClient("a", h, nil, nil)
	b := hub.NewClient("b", h, nil, nil)
	c := hub.NewClient("c", h, nil, nil)
	for _, cl := range []*hub.Client{a, b, c} {
		require.NoError(t, svc.HandleJoinRoom(ctx, cl, protocol.JoinRoom{RoomID: "r"}))
	}
	drain(t, a)
	drain(t, b)
	drain(t, c)

	// Unknown fields and types pass through untouched.
	frame := []byte(`{"event":"sync_action","data":{"roomId":"r","type":"wobble","currentTime":"soon","x":[1,2]}}`)
	require.NoError(t, svc.HandleSyncAction(ctx, a, frame, protocol.ActionHeader{RoomID: "r", Type: "wobble"}))

	assert.Empty(t, drain(t, a))
	for _, peer := range []*hub.Client{b, c} {
		select {
		case got := <-peer.Outbox():
			assert.Equal(t, frame, got)
		default:
			t.Fatalf("peer %s got nothing", peer.ID())
		}
	}
}

func TestRelayToUnknownRoomIsSilent(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{}, nil, nil, nil, nil)
	a := hub.NewClient("a", h, nil, nil)

	assert.NoError(t, svc.HandleSyncAction(ctx, a, []byte(`{}`), protocol.ActionHeader{RoomID: "nope", Type: protocol.ActionPlay}))
	assert.NoError(t, svc.HandleSyncAction(ctx, a, []byte(`{}`), protocol.ActionHeader{Type: protocol.ActionPlay}))
	assert.NoError(t, svc.HandleJoinRoom(ctx, a, protocol.JoinRoom{RoomID: "  "}))
	assert.NoError(t, svc.HandleLeaveRoom(ctx, a, "nope"))
	assert.Empty(t, drain(t, a))
}

func TestLeaveAndDisconnectBroadcastRemainingCount(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	prod := &fakeProducer{}
	svc := NewSyncService(config.SyncConfig{}, nil, nil, prod, nil)

	a := hub.NewClient("a", h, nil, nil)
	b := hub.NewClient("b", h, nil, nil)
	c := hub.NewClient("c", h, nil, nil)
	for _, cl := range []*hub.Client{a, b, c} {
		require.NoError(t, svc.HandleJoinRoom(ctx, cl, protocol.JoinRoom{RoomID: "r"}))
	}
	drain(t, a)
	drain(t, b)
	drain(t, c)

	require.NoError(t, svc.HandleLeaveRoom(ctx, c, "r"))
	gotA := drain(t, a)
	require.Len(t, gotA, 1)
	assert.Equal(t, 2, countOf(t, gotA[0]))
	assert.Empty(t, drain(t, c))

	require.NoError(t, svc.HandleDisconnect(ctx, b))
	gotA = drain(t, a)
	require.Len(t, gotA, 1)
	assert.Equal(t, 1, countOf(t, gotA[0]))

	require.NoError(t, svc.HandleDisconnect(ctx, a))
	assert.Equal(t, []string{"r"}, prod.created)
	assert.Equal(t, []string{"r"}, prod.destroyed)
}

func TestChangeVideoHostPolicy(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{ChangeVideoPolicy: config.ChangeVideoHost}, nil, nil, nil, nil)

	host := hub.NewClient("host", h, nil, nil)
	guest := hub.NewClient("guest", h, nil, nil)
	require.NoError(t, svc.HandleJoinRoom(ctx, host, protocol.JoinRoom{RoomID: "r"}))
	require.NoError(t, svc.HandleJoinRoom(ctx, guest, protocol.JoinRoom{RoomID: "r"}))
	drain(t, host)
	drain(t, guest)

	hdr := protocol.ActionHeader{RoomID: "r", Type: protocol.ActionChangeVideo}
	err := svc.HandleSyncAction(ctx, guest, []byte(`{"event":"sync_action"}`), hdr)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, drain(t, host))
	gotGuest := drain(t, guest)
	require.Equal(t, []string{protocol.EventError}, events(gotGuest))
	var e protocol.Error
	require.NoError(t, gotGuest[0].Unmarshal(&e))
	assert.Equal(t, protocol.ErrCodeForbidden, e.Code)

	require.NoError(t, svc.HandleSyncAction(ctx, host, []byte(`{"event":"sync_action"}`), hdr))
	assert.Len(t, drain(t, guest), 1)

	// Other kinds are open to guests.
	require.NoError(t, svc.HandleSyncAction(ctx, guest, []byte(`{"event":"sync_action"}`), protocol.ActionHeader{RoomID: "r", Type: protocol.ActionPause}))
	assert.Len(t, drain(t, host), 1)
}

func TestChangeVideoOpensUpWhenHostLeaves(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{ChangeVideoPolicy: config.ChangeVideoHost}, nil, nil, nil, nil)

	host := hub.NewClient("host", h, nil, nil)
	guest := hub.NewClient("guest", h, nil, nil)
	other := hub.NewClient("other", h, nil, nil)
	for _, cl := range []*hub.Client{host, guest, other} {
		require.NoError(t, svc.HandleJoinRoom(ctx, cl, protocol.JoinRoom{RoomID: "r"}))
	}
	drain(t, host)
	drain(t, guest)
	drain(t, other)

	hdr := protocol.ActionHeader{RoomID: "r", Type: protocol.ActionChangeVideo}
	assert.ErrorIs(t, svc.HandleSyncAction(ctx, guest, []byte(`{}`), hdr), ErrForbidden)
	drain(t, guest)

	require.NoError(t, svc.HandleDisconnect(ctx, host))
	drain(t, guest)
	drain(t, other)

	require.NoError(t, svc.HandleSyncAction(ctx, guest, []byte(`{}`), hdr))
	assert.Len(t, drain(t, other), 1)

	// Strangers still cannot pick the video.
	stranger := hub.NewClient("stranger", h, nil, nil)
	assert.ErrorIs(t, svc.HandleSyncAction(ctx, stranger, []byte(`{}`), hdr), ErrForbidden)
	assert.Empty(t, drain(t, other))
}

func TestRoomTokens(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	tokens, err := jwt.NewManager("secret", time.Hour, "test")
	require.NoError(t, err)
	svc := NewSyncService(config.SyncConfig{RequireRoomToken: true, ChangeVideoPolicy: config.ChangeVideoHost}, tokens, nil, nil, nil)

	grant, err := svc.CreateRoom(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, grant.RoomID)
	require.NotEmpty(t, grant.HostToken)
	require.NotEmpty(t, grant.GuestToken)

	// The guest arrives first but the host token still makes the creator host.
	guest := hub.NewClient("guest", h, nil, nil)
	host := hub.NewClient("host", h, nil, nil)
	intruder := hub.NewClient("intruder", h, nil, nil)

	require.NoError(t, svc.HandleJoinRoom(ctx, guest, protocol.JoinRoom{RoomID: grant.RoomID, Token: grant.GuestToken}))
	require.NoError(t, svc.HandleJoinRoom(ctx, host, protocol.JoinRoom{RoomID: grant.RoomID, Token: grant.HostToken}))
	err = svc.HandleJoinRoom(ctx, intruder, protocol.JoinRoom{RoomID: grant.RoomID})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, []string{protocol.EventError}, events(drain(t, intruder)))

	// Ids the room API could not have minted are refused before the token is read.
	require.Error(t, svc.HandleJoinRoom(ctx, intruder, protocol.JoinRoom{RoomID: "made-up", Token: grant.GuestToken}))
	got := drain(t, intruder)
	require.Len(t, got, 1)
	var e protocol.Error
	require.NoError(t, got[0].Unmarshal(&e))
	assert.Equal(t, protocol.ErrCodeBadRequest, e.Code)
	assert.Equal(t, 1, svc.RoomCount())
	drain(t, guest)
	drain(t, host)

	// Non-members cannot inject events.
	require.NoError(t, svc.HandleSyncAction(ctx, intruder, []byte(`{}`), protocol.ActionHeader{RoomID: grant.RoomID, Type: protocol.ActionPlay}))
	assert.Empty(t, drain(t, guest))

	require.NoError(t, svc.HandleSyncAction(ctx, host, []byte(`{}`), protocol.ActionHeader{RoomID: grant.RoomID, Type: protocol.ActionChangeVideo}))
	assert.Len(t, drain(t, guest), 1)
}

func TestRoomFullIsReported(t *testing.T) {
	ctx := context.Background()
	h := newHub()
	svc := NewSyncService(config.SyncConfig{MaxMembersPerRoom: 1}, nil, nil, nil, nil)

	a := hub.NewClient("a", h, nil, nil)
	b := hub.NewClient("b", h, nil, nil)
	require.NoError(t, svc.HandleJoinRoom(ctx, a, protocol.JoinRoom{RoomID: "r"}))
	assert.Error(t, svc.HandleJoinRoom(ctx, b, protocol.JoinRoom{RoomID: "r"}))

	got := drain(t, b)
	require.Len(t, got, 1)
	var e protocol.Error
	require.NoError(t, got[0].Unmarshal(&e))
	assert.Equal(t, protocol.ErrCodeRoomFull, e.Code)
}

func TestCreateRoomWithoutTokens(t *testing.T) {
	svc := NewSyncService(config.SyncConfig{}, nil, nil, nil, nil)
	grant, err := svc.CreateRoom(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, grant.RoomID)
	assert.Empty(t, grant.HostToken)
}
