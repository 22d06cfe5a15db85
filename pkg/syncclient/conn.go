package syncclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	pkglog "github.com/JimmyPiedrahita/netflis/pkg/log"
	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
)

const writeWait = 10 * time.Second

// Conn is a websocket connection to the sync relay. Emit may be called
// from any goroutine; Run must be called from exactly one.
type Conn struct {
	ws  *websocket.Conn
	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the relay's websocket endpoint.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws}, nil
}

// Emit encodes and writes one frame.
func (c *Conn) Emit(event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// Ping asks the relay for a pong frame.
func (c *Conn) Ping() error {
	return c.Emit(protocol.EventPing, nil)
}

// Run reads frames and hands each to handle until ctx is done or the
// connection fails. A clean close returns nil.
func (c *Conn) Run(ctx context.Context, handle func(protocol.Envelope)) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Warn().Err(err).Msg("dropping malformed frame from relay")
			continue
		}
		handle(env)
	}
}

// Close says goodbye and closes the socket. Later calls return the
// first call's result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		err := c.ws.Close()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			err = errors.Join(werr, err)
		}
		c.closeErr = err
	})
	return c.closeErr
}
