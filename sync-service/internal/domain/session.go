package domain

import (
	"sync"
	"time"
)

// Session is per-connection bookkeeping that outlives room membership
// changes. Membership itself lives in the registry.
type Session struct {
	ID          string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time

	mu            sync.Mutex
	lastActiveAt  time.Time
	framesIn      int64
	framesDropped int64
}

// NewSession creates a session for a freshly upgraded connection.
func NewSession(id, remoteAddr, userAgent string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RemoteAddr:   remoteAddr,
		UserAgent:    userAgent,
		ConnectedAt:  now,
		lastActiveAt: now,
	}
}

// Touch records an inbound frame.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
	s.framesIn++
}

// Dropped records an inbound frame that was refused.
func (s *Session) Dropped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesDropped++
}

// Stats returns the activity counters.
func (s *Session) Stats() (lastActive time.Time, in, dropped int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActiveAt, s.framesIn, s.framesDropped
}
