package api

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
)

func TestSocketKeepAliveSurvivesIdleChannel(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conns := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
		// Reading answers pings with pongs; no frames are ever sent.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	sock, err := dialSocket(context.Background(),
		"ws"+strings.TrimPrefix(server.URL, "http"), "tok")
	require.NoError(t, err)

	// Compressed timings: several ping rounds fit inside the test, and
	// the read deadline would fire well before the test ends if pongs
	// did not extend it.
	sock.pingInterval = 20 * time.Millisecond
	sock.readTimeout = 100 * time.Millisecond

	closed := make(chan error, 1)
	go sock.readPump(func([]byte) {}, func(err error) { closed <- err })

	select {
	case err := <-closed:
		t.Fatalf("idle channel was torn down: %v", err)
	case <-time.After(500 * time.Millisecond):
	}

	// A peer-initiated normal closure still surfaces as a clean close.
	serverConn := <-conns
	serverConn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	serverConn.Close()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close never surfaced")
	}
}

func TestSocketDeadlineFiresWhenPingsGoUnanswered(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Never read: pings go unanswered and the peer looks dead.
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	sock, err := dialSocket(context.Background(),
		"ws"+strings.TrimPrefix(server.URL, "http"), "tok")
	require.NoError(t, err)

	sock.pingInterval = 20 * time.Millisecond
	sock.readTimeout = 100 * time.Millisecond

	closed := make(chan error, 1)
	go sock.readPump(func([]byte) {}, func(err error) { closed <- err })

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("dead channel never detected")
	}
}
