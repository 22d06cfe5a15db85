// Package console drives a watch-client from line commands on stdin.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
	"github.com/JimmyPiedrahita/netflis/pkg/syncclient"
)

// Controller is the part of syncclient.Controller the console uses.
type Controller interface {
	OnLocalPlay() error
	OnLocalPause() error
	OnLocalSeek() error
	SelectVideo(ref protocol.VideoData) error
	State() syncclient.State
}

// Surface is the part of the playback surface a user can poke.
type Surface interface {
	Play() error
	Pause()
	SetPosition(seconds float64)
	Position() float64
}

// Console maps commands to surface gestures followed by the matching
// controller callback, the same order a real player fires them in.
type Console struct {
	ctrl    Controller
	surface Surface
	log     zerolog.Logger

	streamBase  string
	accessToken string
}

func New(ctrl Controller, surface Surface, streamBase, accessToken string, log zerolog.Logger) *Console {
	return &Console{
		ctrl:        ctrl,
		surface:     surface,
		log:         log,
		streamBase:  streamBase,
		accessToken: accessToken,
	}
}

// Run reads commands until "quit", EOF, or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}
		if err := c.Exec(line); err != nil {
			c.log.Warn().Err(err).Str("command", line).Msg("command failed")
		}
	}
	return scanner.Err()
}

// Exec runs a single command.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "play":
		if err := c.surface.Play(); err != nil {
			return err
		}
		return c.ctrl.OnLocalPlay()

	case "pause":
		c.surface.Pause()
		return c.ctrl.OnLocalPause()

	case "seek":
		if len(fields) != 2 {
			return fmt.Errorf("usage: seek <seconds>")
		}
		sec, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("bad position %q: %w", fields[1], err)
		}
		c.surface.SetPosition(sec)
		return c.ctrl.OnLocalSeek()

	case "load":
		if len(fields) < 2 {
			return fmt.Errorf("usage: load <video id> [name]")
		}
		ref := protocol.VideoData{
			ID:   fields[1],
			Name: strings.Join(fields[2:], " "),
			URL:  StreamURL(c.streamBase, fields[1], c.accessToken),
		}
		return c.ctrl.SelectVideo(ref)

	case "status":
		st := c.ctrl.State()
		evt := c.log.Info().
			Str("phase", st.Phase.String()).
			Str("room_id", st.RoomID).
			Str("role", string(st.Role)).
			Int("users", st.Users).
			Float64("position", c.surface.Position()).
			Str("suppression", st.Suppression.String())
		if st.Video != nil {
			evt = evt.Str("video_id", st.Video.ID)
		}
		evt.Msg("status")
		return nil

	default:
		return fmt.Errorf("unknown command %q (play, pause, seek, load, status, quit)", fields[0])
	}
}

// StreamURL is where the stream proxy serves objectID. Browsers cannot
// attach headers to a media element, so the credential rides in the query.
func StreamURL(base, objectID, accessToken string) string {
	u := strings.TrimRight(base, "/") + "/stream/" + url.PathEscape(objectID)
	if accessToken != "" {
		u += "?access_token=" + url.QueryEscape(accessToken)
	}
	return u
}
