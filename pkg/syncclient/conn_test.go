package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JimmyPiedrahita/netflis/pkg/protocol"
)

// pongServer answers every ping frame with a pong frame.
func pongServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.Decode(frame)
			if err == nil && env.Event == protocol.EventPing {
				ws.WriteMessage(websocket.TextMessage, protocol.MustEncode(protocol.EventPong, nil))
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnRoundTrip(t *testing.T) {
	srv := pongServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url, nil)
	require.NoError(t, err)

	got := make(chan string, 1)
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- conn.Run(runCtx, func(env protocol.Envelope) { got <- env.Event })
	}()

	require.NoError(t, conn.Ping())
	select {
	case ev := <-got:
		assert.Equal(t, protocol.EventPong, ev)
	case <-ctx.Done():
		t.Fatal("no pong")
	}

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Run did not return after cancel")
	}
	assert.NoError(t, conn.Close(), "close is idempotent")
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/ws", nil)
	assert.Error(t, err)
}
