package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldBytes     = "bytes"

	// Sync relay
	FieldRoomID        = "room_id"
	FieldParticipantID = "participant_id"
	FieldRole          = "role"
	FieldEvent         = "event"
	FieldCount         = "count"

	// Streaming proxy
	FieldObjectID       = "object_id"
	FieldRange          = "range"
	FieldUpstreamStatus = "upstream_status"
	FieldAttempt        = "attempt"

	// Service
	FieldService = "service"
)
