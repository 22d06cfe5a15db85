// Package surface provides a playback surface with no picture: a clock
// that runs while "playing".
package surface

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
)

// Virtual tracks position and play state of a video nobody is watching.
type Virtual struct {
	mu  sync.Mutex
	now func() time.Time
	log zerolog.Logger

	video   *protocol.VideoData
	base    float64
	since   time.Time
	playing bool
}

func NewVirtual(log zerolog.Logger) *Virtual {
	return &Virtual{now: time.Now, log: log}
}

func (v *Virtual) Position() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.positionLocked()
}

func (v *Virtual) positionLocked() float64 {
	if !v.playing {
		return v.base
	}
	return v.base + v.now().Sub(v.since).Seconds()
}

func (v *Virtual) Paused() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return !v.playing
}

func (v *Virtual) SetPosition(seconds float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	v.base = seconds
	v.since = v.now()
	v.log.Info().Float64("position", seconds).Msg("surface seek")
}

// Play fails when nothing is loaded.
func (v *Virtual) Play() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.video == nil {
		return ErrNothingLoaded
	}
	if !v.playing {
		v.since = v.now()
		v.playing = true
		v.log.Info().Float64("position", v.base).Msg("surface play")
	}
	return nil
}

func (v *Virtual) Pause() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.playing {
		v.base = v.positionLocked()
		v.playing = false
		v.log.Info().Float64("position", v.base).Msg("surface pause")
	}
}

func (v *Virtual) Load(ref protocol.VideoData) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.video = &ref
	v.base = 0
	v.playing = false
	v.log.Info().Str("video_id", ref.ID).Str("name", ref.Name).Str("url", redact(ref.URL)).Msg("surface load")
}
