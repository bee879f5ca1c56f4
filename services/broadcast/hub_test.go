package broadcastsvc

import (
	"io/ioutil"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logsvc "github.com/skillforge/skillforge/services/logger"
)

func newTestHub() *Hub {
	return NewHub(logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0)))
}

// dialServed opens a websocket handled by hub.Serve for the user and
// returns the peer side of the connection.
func dialServed(t *testing.T, h *Hub, userID int) *websocket.Conn {
	t.Helper()
	upgrader := Upgrader()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.Serve(userID, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return h.ClientCount(userID) == 1 })
	return conn
}

// serverConn upgrades a connection without running Serve on it, so a
// test can control draining itself.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := Upgrader()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			conns <- conn
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })
	return <-conns
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestHub_Broadcast(t *testing.T) {
	h := newTestHub()
	conn := dialServed(t, h, 7)

	h.Broadcast(7, map[string]string{"event": "contest_finished"})

	var payload map[string]string
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Equal(t, "contest_finished", payload["event"])
}

func TestHub_Broadcast_dropsStalledClient(t *testing.T) {
	h := newTestHub()
	c := &client{userID: 7, conn: serverConn(t), send: make(chan interface{}, clientBuffer)}
	h.add(c)

	// Nothing drains c.send, so the buffer fills and the overflow path
	// drops the client.
	for i := 0; i <= clientBuffer; i++ {
		h.Broadcast(7, i)
	}
	assert.Equal(t, 0, h.ClientCount(7))

	// A broadcast that snapshotted the client before the drop may still
	// push into its channel. The channel stays open so that push never
	// panics.
	assert.NotPanics(t, func() {
		select {
		case c.send <- "stale":
		default:
		}
	})
}

func TestHub_Serve_peerDisconnect(t *testing.T) {
	h := newTestHub()
	conn := dialServed(t, h, 7)

	conn.Close()
	waitFor(t, func() bool { return h.ClientCount(7) == 0 })
}
