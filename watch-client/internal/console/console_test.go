package console

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/pkg/syncclient"
)

type fakeCtrl struct {
	calls    []string
	selected []protocol.VideoData
}

func (f *fakeCtrl) OnLocalPlay() error { f.calls = append(f.calls, "play"); return nil }
func (f *fakeCtrl) OnLocalPause() error { f.calls = append(f.calls, "pause"); return nil }
func (f *fakeCtrl) OnLocalSeek() error { f.calls = append(f.calls, "seek"); return nil }

func (f *fakeCtrl) SelectVideo(ref protocol.VideoData) error {
	f.calls = append(f.calls, "select")
	f.selected = append(f.selected, ref)
	return nil
}

func (f *fakeCtrl) State() syncclient.State { return syncclient.State{} }

type fakeSurface struct {
	pos    float64
	paused bool
}

func (s *fakeSurface) Play() error { s.paused = false; return nil }
func (s *fakeSurface) Pause() { s.paused = true }
func (s *fakeSurface) SetPosition(p float64) { s.pos = p }
func (s *fakeSurface) Position() float64 { return s.pos }

func TestRunExecutesUntilQuit(t *testing.T) {
	ctrl := &fakeCtrl{}
	surf := &fakeSurface{paused: true}
	c := New(ctrl, surf, "http://proxy:3000/", "tok en", zerolog.Nop())

	in := strings.NewReader("load abc Big Movie\nplay\n\nseek 42.5\nseek nope\nbogus\nstatus\npause\nquit\nplay\n")
	require.NoError(t, c.Run(context.Background(), in))

	assert.Equal(t, []string{"select", "play", "seek", "pause"}, ctrl.calls)
	require.Len(t, ctrl.selected, 1)
	assert.Equal(t, "Big Movie", ctrl.selected[0].Name)
	assert.Equal(t, "http://proxy:3000/stream/abc?access_token=tok+en", ctrl.selected[0].URL)
	assert.Equal(t, 42.5, surf.pos)
	assert.True(t, surf.paused)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "http://h/stream/a%2Fb", StreamURL("http://h", "a/b", ""))
	assert.Equal(t, "http://h/stream/x?access_token=t", StreamURL("http://h/", "x", "t"))
}
