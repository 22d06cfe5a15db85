package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/JimmyPiedrahita/netflis/pkg/idgen"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/domain"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/hub"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/metrics"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/service"
)

// WSHandler upgrades connections and routes their frames to the service.
type WSHandler struct {
	hub      *hub.Hub
	service  service.SyncService
	metrics  metrics.Collector
	ids      idgen.Generator
	upgrader websocket.Upgrader
}

// NewWSHandler creates a handler. An empty allowedOrigins accepts any origin.
func NewWSHandler(h *hub.Hub, svc service.SyncService, collector metrics.Collector, allowedOrigins []string) *WSHandler {
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &WSHandler{
		hub:     h,
		service: svc,
		metrics: collector,
		ids:     idgen.NewUUIDGenerator(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandleWebSocket upgrades the request and starts the client's pumps.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID, err := h.ids.Generate()
	if err != nil {
		l.Error().Err(err).Msg("failed to allocate participant id")
		conn.Close()
		return
	}

	session := domain.NewSession(clientID, r.RemoteAddr, r.UserAgent())
	client := hub.NewClient(clientID, h.hub, conn, session)

	// The request context ends with the handler; keep only its logger.
	ctx := pkglog.WithStr(pkglog.WithLogger(context.Background(), l), pkglog.FieldParticipantID, clientID)

	client.SetDisconnectHandler(func(c *hub.Client) {
		cl := pkglog.Ctx(ctx)
		if err := h.service.HandleDisconnect(ctx, c); err != nil {
			cl.Error().Err(err).Msg("disconnect handler error")
		}
		h.metrics.ClientDisconnected()
		_, in, dropped := c.Session.Stats()
		cl.Info().
			Str(pkglog.FieldClientIP, c.Session.RemoteAddr).
			Str("user_agent", c.Session.UserAgent).
			Int64("frames_in", in).
			Int64("frames_dropped", dropped).
			Dur("connected_for", timeSince(c.Session.ConnectedAt)).
			Msg("participant disconnected")
	})

	h.hub.Register(client)
	h.metrics.ClientConnected()

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, frame []byte) {
		h.handleMessage(ctx, c, frame)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, frame []byte) {
	l := pkglog.Ctx(ctx)

	env, err := protocol.Decode(frame)
	if err != nil {
		h.drop(client, service.DropMalformed)
		client.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: "invalid frame"})
		return
	}
	h.metrics.FrameReceived(env.Event, len(frame))

	if env.Event != protocol.EventPing && !client.Allow() {
		h.drop(client, service.DropRateLimited)
		client.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeRateLimited, Message: "slow down"})
		return
	}

	switch env.Event {
	case protocol.EventJoinRoom:
		var msg protocol.JoinRoom
		if err := env.Unmarshal(&msg); err != nil {
			h.drop(client, service.DropMalformed)
			return
		}
		if err := h.service.HandleJoinRoom(ctx, client, msg); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("join room failed")
		}

	case protocol.EventLeaveRoom:
		var msg protocol.LeaveRoom
		if err := env.Unmarshal(&msg); err != nil {
			h.drop(client, service.DropMalformed)
			return
		}
		if err := h.service.HandleLeaveRoom(ctx, client, msg.RoomID); err != nil {
			l.Warn().Err(err).Str(pkglog.FieldRoomID, msg.RoomID).Msg("leave room failed")
		}

	case protocol.EventSyncAction:
		// Only the routing fields are read; the frame is relayed as received.
		var action protocol.ActionHeader
		if err := env.Unmarshal(&action); err != nil {
			h.drop(client, service.DropMalformed)
			return
		}
		if err := h.service.HandleSyncAction(ctx, client, frame, action); err != nil {
			l.Debug().Err(err).Str(pkglog.FieldRoomID, action.RoomID).Str(pkglog.FieldEvent, string(action.Type)).Msg("sync action refused")
		}

	case protocol.EventPing:
		client.SendMessage(protocol.EventPong, nil)

	default:
		h.drop(client, service.DropMalformed)
		client.SendMessage(protocol.EventError, protocol.Error{Code: protocol.ErrCodeBadRequest, Message: "unknown event"})
	}
}

func (h *WSHandler) drop(client *hub.Client, reason string) {
	h.metrics.FrameDropped(reason)
	if client.Session != nil {
		client.Session.Dropped()
	}
}

// RegisterRoutes registers the WebSocket route.
func (h *WSHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWebSocket)
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
