package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JimmyPiedrahita/netflis/pkg/idgen"
	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/config"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/hub"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/kafka"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/metrics"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/registry"
)

var (
	ErrForbidden    = errors.New("action not allowed for this participant")
	ErrUnauthorized = errors.New("room token rejected")
)

// Drop reasons reported to metrics.
const (
	DropNoRoom      = "no_room"
	DropNotMember   = "not_member"
	DropForbidden   = "forbidden"
	DropRateLimited = "rate_limited"
	DropMalformed   = "malformed"
)

type syncService struct {
	registry *registry.Registry
	tokens   *jwt.Manager
	ids      idgen.Generator
	producer kafka.RoomEventProducer
	metrics  metrics.Collector
	cfg      config.SyncConfig
}

// NewSyncService wires a registry whose lifecycle hooks feed metrics and
// Kafka. tokens and producer may be nil.
func NewSyncService(
	cfg config.SyncConfig,
	tokens *jwt.Manager,
	ids idgen.Generator,
	producer kafka.RoomEventProducer,
	collector metrics.Collector,
) SyncService {
	if collector == nil {
		collector = metrics.Noop{}
	}
	if ids == nil {
		ids = idgen.NewUUIDGenerator()
	}

	s := &syncService{
		tokens:   tokens,
		ids:      ids,
		producer: producer,
		metrics:  collector,
		cfg:      cfg,
	}
	s.registry = registry.New(
		registry.Limits{MaxRooms: cfg.MaxRooms, MaxMembersPerRoom: cfg.MaxMembersPerRoom},
		registry.Hooks{OnCreate: s.roomCreated, OnDestroy: s.roomDestroyed},
	)
	return s
}

func (s *syncService) HandleJoinRoom(ctx context.Context, c *hub.Client, msg protocol.JoinRoom) error {
	roomID := strings.TrimSpace(msg.RoomID)
	if roomID == "" {
		s.metrics.FrameDropped(DropNoRoom)
		return nil
	}
	l := pkglog.Ctx(ctx).With().Str(pkglog.FieldRoomID, roomID).Str(pkglog.FieldParticipantID, c.ID()).Logger()

	var role jwt.Role
	if s.cfg.RequireRoomToken {
		if s.tokens == nil {
			return errors.New("room tokens required but no token manager configured")
		}
		// Rooms only come from CreateRoom, so the id must be one it minted.
		if err := s.ids.Validate(roomID); err != nil {
			s.metrics.FrameDropped(DropMalformed)
			c.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: "unknown room id"})
			return fmt.Errorf("join %q: %w", roomID, err)
		}
		claims, err := s.tokens.Validate(msg.Token, roomID)
		if err != nil {
			c.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeUnauthorized, Message: "invalid room token"})
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		role = claims.Role
	}

	joined, err := s.registry.Join(roomID, c, role, func(v registry.View) {
		broadcastCount(v)
		arrival := protocol.MustEncode(protocol.EventUserJoined, protocol.UserJoined{
			ParticipantID: c.ID(),
			RoomID:        v.RoomID,
		})
		for _, m := range v.Others(c.ID()) {
			m.Member.Enqueue(arrival)
		}
	})
	switch {
	case errors.Is(err, registry.ErrRoomFull):
		c.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeRoomFull, Message: "room is full"})
		return err
	case errors.Is(err, registry.ErrRegistryFull):
		c.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeRoomLimit, Message: "too many rooms, try again later"})
		return err
	case err != nil:
		return err
	}

	if joined {
		ms, _ := s.registry.Membership(roomID, c.ID())
		if ms != nil {
			l.Info().Str(pkglog.FieldRole, string(ms.Role)).Msg("participant joined room")
		}
	}
	return nil
}

func (s *syncService) HandleLeaveRoom(ctx context.Context, c *hub.Client, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		s.metrics.FrameDropped(DropNoRoom)
		return nil
	}

	if s.registry.Leave(roomID, c.ID(), s.departed(ctx)) {
		l := pkglog.Ctx(ctx)
		l.Info().Str(pkglog.FieldRoomID, roomID).Str(pkglog.FieldParticipantID, c.ID()).Msg("participant left room")
	}
	return nil
}

func (s *syncService) HandleSyncAction(ctx context.Context, c *hub.Client, frame []byte, action protocol.ActionHeader) error {
	roomID := strings.TrimSpace(action.RoomID)
	if roomID == "" {
		s.metrics.FrameDropped(DropNoRoom)
		return nil
	}

	view, ok := s.registry.Snapshot(roomID)
	if !ok {
		s.metrics.FrameDropped(DropNoRoom)
		return nil
	}

	ms, isMember := s.registry.Membership(roomID, c.ID())
	if s.cfg.RequireRoomToken && !isMember {
		s.metrics.FrameDropped(DropNotMember)
		return nil
	}

	if action.Type == protocol.ActionChangeVideo && s.cfg.ChangeVideoPolicy != config.ChangeVideoAny {
		// Once the host is gone any member may pick the video.
		hostless := view.HostLeft && isMember
		if !hostless && (!isMember || ms.Role != jwt.RoleHost) {
			s.metrics.FrameDropped(DropForbidden)
			c.SendMessage(protocol.EventError, protocol.Error{
				Code:    protocol.ErrCodeForbidden,
				Message: "only the host can change the video",
			})
			return ErrForbidden
		}
	}

	others := view.Others(c.ID())
	for _, m := range others {
		m.Member.Enqueue(frame)
	}
	s.metrics.FrameRelayed(string(action.Type), len(others))
	return nil
}

func (s *syncService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	rooms := s.registry.Disconnect(c.ID(), s.departed(ctx))
	if len(rooms) > 0 {
		l := pkglog.Ctx(ctx)
		l.Info().Str(pkglog.FieldParticipantID, c.ID()).Strs("rooms", rooms).Msg("participant disconnected from rooms")
	}
	return nil
}

func (s *syncService) CreateRoom(ctx context.Context) (*RoomGrant, error) {
	roomID, err := s.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate room id: %w", err)
	}

	grant := &RoomGrant{RoomID: roomID}
	if s.tokens == nil {
		return grant, nil
	}

	hostToken, exp, err := s.tokens.Issue(roomID, jwt.RoleHost)
	if err != nil {
		return nil, fmt.Errorf("issue host token: %w", err)
	}
	guestToken, _, err := s.tokens.Issue(roomID, jwt.RoleGuest)
	if err != nil {
		return nil, fmt.Errorf("issue guest token: %w", err)
	}
	grant.HostToken = hostToken
	grant.GuestToken = guestToken
	grant.ExpiresAt = exp
	return grant, nil
}

func (s *syncService) RoomCount() int {
	return s.registry.RoomCount()
}

func (s *syncService) roomCreated(roomID string) {
	s.metrics.RoomCreated()
	if s.producer != nil {
		if err := s.producer.ProduceRoomCreated(context.Background(), roomID); err != nil {
			l := pkglog.L()
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to publish room_created")
		}
	}
}

func (s *syncService) roomDestroyed(roomID string, lifetime time.Duration) {
	s.metrics.RoomDestroyed(lifetime)
	l := pkglog.L()
	l.Info().Str(pkglog.FieldRoomID, roomID).Dur("lifetime", lifetime).Msg("room closed")
	if s.producer != nil {
		if err := s.producer.ProduceRoomDestroyed(context.Background(), roomID, lifetime); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to publish room_destroyed")
		}
	}
}

// departed broadcasts the new count after a member leaves and notes when
// that member was the room's host.
func (s *syncService) departed(ctx context.Context) registry.Notify {
	return func(v registry.View) {
		broadcastCount(v)
		if v.Changed == nil || v.Changed.Role != jwt.RoleHost || !v.HostLeft {
			return
		}
		l := pkglog.Ctx(ctx).With().
			Str(pkglog.FieldRoomID, v.RoomID).
			Str(pkglog.FieldParticipantID, v.Changed.Member.ID()).
			Int(pkglog.FieldCount, v.Count).
			Logger()
		if s.cfg.ChangeVideoPolicy == config.ChangeVideoAny {
			l.Debug().Msg("host left room")
			return
		}
		l.Warn().Msg("host left room, video choice is open to every member")
	}
}

// broadcastCount sends the view's membership count to every member.
func broadcastCount(v registry.View) {
	frame := protocol.MustEncode(protocol.EventRoomUsersUpdate, protocol.RoomUsersUpdate{
		Count:  v.Count,
		RoomID: v.RoomID,
	})
	for _, m := range v.Members {
		m.Member.Enqueue(frame)
	}
}
