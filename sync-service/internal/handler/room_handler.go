package handler

import (
	"encoding/json"
	"net/http"
	"time"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/sync-service/internal/service"
)

// RoomHandler serves the room creation API.
type RoomHandler struct {
	service service.SyncService
}

func NewRoomHandler(svc service.SyncService) *RoomHandler {
	return &RoomHandler{service: svc}
}

// RegisterRoutes registers the room routes.
func (h *RoomHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/rooms", h.handleCreate)
}

// handleCreate mints a room id (and tokens when configured). The room
// itself only comes to life when someone joins it.
func (h *RoomHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("METHOD_NOT_ALLOWED", "use POST"))
		return
	}

	grant, err := h.service.CreateRoom(r.Context())
	if err != nil {
		l := pkglog.Ctx(r.Context())
		l.Error().Err(err).Msg("failed to create room")
		writeJSON(w, http.StatusInternalServerError, errorBody("INTERNAL_ERROR", "failed to create room"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": grant})
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	started time.Time
	clients func() int
	rooms   func() int
}

// NewHealthHandler reports the given live counts; either may be nil.
func NewHealthHandler(version string, clients, rooms func() int) *HealthHandler {
	return &HealthHandler{version: version, started: time.Now(), clients: clients, rooms: rooms}
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/healthz", h.handleHealth)
}

func (h *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"service": "sync-service",
		"version": h.version,
		"uptime":  timeSince(h.started).Round(time.Second).String(),
	}
	if h.clients != nil {
		body["clients"] = h.clients()
	}
	if h.rooms != nil {
		body["rooms"] = h.rooms()
	}
	writeJSON(w, http.StatusOK, body)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

var timeSince = time.Since
