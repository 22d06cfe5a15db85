package syncclient

import "time"

// Clock is the time source the controller reads. Tests substitute a
// manually advanced one.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc call.
type Timer interface {
	Stop() bool
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SuppressionState tags whether local surface callbacks are being
// attributed to a remote event that was just applied.
type SuppressionState int

const (
	Idle SuppressionState = iota
	ApplyingRemote
)

func (s SuppressionState) String() string {
	if s == ApplyingRemote {
		return "applying_remote"
	}
	return "idle"
}

// Suppression is Idle or ApplyingRemote(until). It clears itself when the
// clock passes until, so there is no timer to leak or race.
type Suppression struct {
	until time.Time
}

// Arm enters ApplyingRemote until now+window, extending any current window.
func (s *Suppression) Arm(now time.Time, window time.Duration) {
	if u := now.Add(window); u.After(s.until) {
		s.until = u
	}
}

// State reports the state at now and, when applying, when it ends.
func (s *Suppression) State(now time.Time) (SuppressionState, time.Time) {
	if now.Before(s.until) {
		return ApplyingRemote, s.until
	}
	return Idle, time.Time{}
}

// Active is shorthand for State(now) == ApplyingRemote.
func (s *Suppression) Active(now time.Time) bool {
	st, _ := s.State(now)
	return st == ApplyingRemote
}

// Reset returns to Idle.
func (s *Suppression) Reset() { s.until = time.Time{} }
