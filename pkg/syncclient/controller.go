// Package syncclient keeps a local playback surface converged with the
// other members of a watch-party room.
//
// The Controller turns local gestures into sync_action frames and applies
// frames from peers to the surface. Applying a remote frame makes the
// surface fire the same callbacks a user gesture would, so for a short
// quiet window afterwards local callbacks are treated as echoes and not
// re-broadcast.
package syncclient

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JimmyPiedrahita/netflis/pkg/jwt"
	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
)

// Defaults for Options.
const (
	DefaultDriftThreshold = 0.5
	DefaultQuietWindow    = 500 * time.Millisecond
	DefaultSettleDelay    = 500 * time.Millisecond
)

var ErrNotJoined = errors.New("not in a room")

// Surface is the local player. Its methods must not call back into the
// Controller synchronously.
type Surface interface {
	Position() float64
	Paused() bool
	SetPosition(seconds float64)
	Play() error
	Pause()
	Load(ref protocol.VideoData)
}

// Emitter sends a frame to the relay.
type Emitter interface {
	Emit(event string, data any) error
}

// Phase is the controller's coarse state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseNoVideo
	PhasePlaying
	PhasePaused
)

func (p Phase) String() string {
	switch p {
	case PhaseNoVideo:
		return "joined_no_video"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "idle"
	}
}

// State is a snapshot for display.
type State struct {
	Phase       Phase
	RoomID      string
	Role        jwt.Role
	Video       *protocol.VideoData
	Users       int
	Suppression SuppressionState
}

type Options struct {
	// DriftThreshold in seconds below which play and pause leave the
	// position alone.
	DriftThreshold float64
	QuietWindow    time.Duration
	// SettleDelay separates loading a full-state offer from seeking into it.
	SettleDelay time.Duration
	Clock       Clock
	Logger      *zerolog.Logger
}

// Controller is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	emitter Emitter
	clock   Clock
	log     zerolog.Logger

	drift  float64
	quiet  time.Duration
	settle time.Duration

	roomID  string
	role    jwt.Role
	joined  bool
	video   *protocol.VideoData
	users   int
	supp    Suppression
	pending Timer
}

func NewController(surface Surface, emitter Emitter, opts Options) *Controller {
	c := &Controller{
		surface: surface,
		emitter: emitter,
		clock:   opts.Clock,
		drift:   opts.DriftThreshold,
		quiet:   opts.QuietWindow,
		settle:  opts.SettleDelay,
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.drift <= 0 {
		c.drift = DefaultDriftThreshold
	}
	if c.quiet <= 0 {
		c.quiet = DefaultQuietWindow
	}
	if c.settle <= 0 {
		c.settle = DefaultSettleDelay
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	} else {
		c.log = pkglog.L()
	}
	return c
}

// Join enters roomID. role is what the caller was granted; the relay
// makes the final call when tokens are in use.
func (c *Controller) Join(roomID, token string, role jwt.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.joined && c.roomID != roomID {
		c.leaveLocked()
	}
	if err := c.emitter.Emit(protocol.EventJoinRoom, protocol.JoinRoom{RoomID: roomID, Token: token}); err != nil {
		return err
	}
	c.roomID = roomID
	c.role = role
	c.joined = true
	return nil
}

// Leave exits the room and forgets the active video.
func (c *Controller) Leave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return nil
	}
	return c.leaveLocked()
}

func (c *Controller) leaveLocked() error {
	err := c.emitter.Emit(protocol.EventLeaveRoom, protocol.LeaveRoom{RoomID: c.roomID})
	c.stopPending()
	c.roomID = ""
	c.role = ""
	c.joined = false
	c.video = nil
	c.users = 0
	c.supp.Reset()
	return err
}

// SelectVideo plays ref locally and asks the room to follow.
func (c *Controller) SelectVideo(ref protocol.VideoData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joined {
		return ErrNotJoined
	}

	c.stopPending()
	v := ref
	c.video = &v
	c.surface.Load(v)
	return c.emitter.Emit(protocol.EventSyncAction, protocol.SyncAction{
		RoomID:    c.roomID,
		Type:      protocol.ActionChangeVideo,
		VideoData: &v,
	})
}

// OnLocalPlay is called when the surface starts playing.
func (c *Controller) OnLocalPlay() error {
	return c.local(protocol.ActionPlay, func(a *protocol.SyncAction) {
		a.IsPlaying = protocol.Bool(true)
	})
}

// OnLocalPause is called when the surface pauses.
func (c *Controller) OnLocalPause() error {
	return c.local(protocol.ActionPause, func(a *protocol.SyncAction) {
		a.IsPlaying = protocol.Bool(false)
	})
}

// OnLocalSeek is called when the surface position jumps. The event carries
// the play state the seek left behind, which peers cannot infer.
func (c *Controller) OnLocalSeek() error {
	return c.local(protocol.ActionSeek, func(a *protocol.SyncAction) {
		a.IsPlaying = protocol.Bool(!c.surface.Paused())
	})
}

func (c *Controller) local(kind protocol.ActionType, fill func(*protocol.SyncAction)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || c.video == nil {
		return nil
	}
	if c.supp.Active(c.clock.Now()) {
		c.log.Debug().Str(pkglog.FieldEvent, string(kind)).Msg("local callback attributed to remote event")
		return nil
	}

	action := protocol.SyncAction{
		RoomID:      c.roomID,
		Type:        kind,
		CurrentTime: protocol.Float(c.surface.Position()),
	}
	fill(&action)
	return c.emitter.Emit(protocol.EventSyncAction, action)
}

// Apply applies a peer's sync_action to the surface.
func (c *Controller) Apply(a protocol.SyncAction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || (a.RoomID != "" && a.RoomID != c.roomID) {
		return
	}
	if !a.Type.Known() {
		c.log.Debug().Str(pkglog.FieldEvent, string(a.Type)).Msg("ignoring unknown sync action")
		return
	}

	c.supp.Arm(c.clock.Now(), c.quiet)

	switch a.Type {
	case protocol.ActionPlay:
		c.snapIfDrifted(a.CurrentTime)
		c.play()

	case protocol.ActionPause:
		c.surface.Pause()
		c.snapIfDrifted(a.CurrentTime)

	case protocol.ActionSeek:
		if a.CurrentTime != nil {
			c.surface.SetPosition(*a.CurrentTime)
		}
		c.setPlaying(a.IsPlaying != nil && *a.IsPlaying)

	case protocol.ActionChangeVideo:
		if a.VideoData == nil || c.video.SameAs(a.VideoData) {
			return
		}
		c.stopPending()
		v := *a.VideoData
		c.video = &v
		c.surface.Load(v)

	case protocol.ActionSyncFullState:
		if c.video != nil || a.VideoData == nil {
			return
		}
		v := *a.VideoData
		c.video = &v
		c.surface.Load(v)

		pos := a.CurrentTime
		playing := a.IsPlaying != nil && *a.IsPlaying
		c.stopPending()
		c.pending = c.clock.AfterFunc(c.settle, func() {
			c.settleFullState(&v, pos, playing)
		})
	}
}

// settleFullState finishes a full-state offer once the surface has loaded.
func (c *Controller) settleFullState(ref *protocol.VideoData, pos *float64, playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || !c.video.SameAs(ref) {
		return
	}
	c.pending = nil
	c.supp.Arm(c.clock.Now(), c.quiet)
	if pos != nil {
		c.surface.SetPosition(*pos)
	}
	c.setPlaying(playing)
}

// HandleUserJoined offers the current state to a newcomer. Every member
// with a video does this; the first offer to arrive wins.
func (c *Controller) HandleUserJoined(msg protocol.UserJoined) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.joined || c.video == nil || (msg.RoomID != "" && msg.RoomID != c.roomID) {
		return nil
	}
	v := *c.video
	return c.emitter.Emit(protocol.EventSyncAction, protocol.SyncAction{
		RoomID:      c.roomID,
		Type:        protocol.ActionSyncFullState,
		CurrentTime: protocol.Float(c.surface.Position()),
		IsPlaying:   protocol.Bool(!c.surface.Paused()),
		VideoData:   &v,
	})
}

// HandleRoomUsers records the room's membership count.
func (c *Controller) HandleRoomUsers(msg protocol.RoomUsersUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.joined && (msg.RoomID == "" || msg.RoomID == c.roomID) {
		c.users = msg.Count
	}
}

// Dispatch routes an inbound frame to the matching handler.
func (c *Controller) Dispatch(env protocol.Envelope) {
	var err error
	switch env.Event {
	case protocol.EventSyncAction:
		var a protocol.SyncAction
		if err = env.Unmarshal(&a); err == nil {
			c.Apply(a)
		}
	case protocol.EventUserJoined:
		var msg protocol.UserJoined
		if err = env.Unmarshal(&msg); err == nil {
			err = c.HandleUserJoined(msg)
		}
	case protocol.EventRoomUsersUpdate:
		var msg protocol.RoomUsersUpdate
		if err = env.Unmarshal(&msg); err == nil {
			c.HandleRoomUsers(msg)
		}
	case protocol.EventError:
		var msg protocol.Error
		if err = env.Unmarshal(&msg); err == nil {
			c.log.Warn().Str("code", msg.Code).Str("message", msg.Message).Msg("relay refused request")
		}
	case protocol.EventPong:
	default:
		c.log.Debug().Str(pkglog.FieldEvent, env.Event).Msg("ignoring unknown event")
	}
	if err != nil {
		c.log.Warn().Err(err).Str(pkglog.FieldEvent, env.Event).Msg("failed to handle frame")
	}
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{RoomID: c.roomID, Role: c.role, Users: c.users}
	st.Suppression, _ = c.supp.State(c.clock.Now())
	switch {
	case !c.joined:
		st.Phase = PhaseIdle
	case c.video == nil:
		st.Phase = PhaseNoVideo
	case c.surface.Paused():
		st.Phase = PhasePaused
	default:
		st.Phase = PhasePlaying
	}
	if c.video != nil {
		v := *c.video
		st.Video = &v
	}
	return st
}

func (c *Controller) snapIfDrifted(target *float64) {
	if target == nil {
		return
	}
	if math.Abs(c.surface.Position()-*target) > c.drift {
		c.surface.SetPosition(*target)
	}
}

func (c *Controller) setPlaying(playing bool) {
	if playing {
		c.play()
		return
	}
	c.surface.Pause()
}

// play never fails the controller; autoplay refusals and the like are logged.
func (c *Controller) play() {
	if err := c.surface.Play(); err != nil {
		c.log.Warn().Err(err).Msg("surface refused to play")
	}
}

func (c *Controller) stopPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}
