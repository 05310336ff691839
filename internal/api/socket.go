package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	socketConnectTimeout = 30 * time.Second
	socketWriteTimeout   = 10 * time.Second
	socketReadTimeout    = 90 * time.Second
	socketPingInterval   = 30 * time.Second
)

// Socket is the persistent duplex push channel to the backend. Frames are
// read by a single pump goroutine, so inbound messages are always handed
// to the router in arrival order. A keepalive pinger holds the channel
// open across quiet periods; the read deadline only fires when the peer
// stops answering pings.
type Socket struct {
	conn *websocket.Conn

	pingInterval time.Duration
	readTimeout  time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// dialSocket opens the push channel, authenticating the upgrade handshake
// with the bearer token.
func dialSocket(ctx context.Context, url, token string) (*Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: socketConnectTimeout,
	}

	header := http.Header{}
	header.Set("Authorization", token)

	dialCtx, cancel := context.WithTimeout(ctx, socketConnectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(dialCtx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("socket handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to open socket to %s: %w", url, err)
	}

	return &Socket{
		conn:         conn,
		pingInterval: socketPingInterval,
		readTimeout:  socketReadTimeout,
		done:         make(chan struct{}),
	}, nil
}

// readPump reads frames until the connection dies. It is the only reader,
// which guarantees per-handler ordering of push messages. onClose fires
// exactly once, with nil for a clean closure.
func (s *Socket) readPump(onMessage func([]byte), onClose func(error)) {
	defer s.conn.Close()
	defer close(s.done)

	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	go s.keepAlive()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Msg("push channel closed by peer")
				onClose(nil)
			} else {
				log.Warn().Err(err).Msg("push channel read failed")
				onClose(err)
			}
			return
		}

		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		onMessage(data)
	}
}

// keepAlive pings the peer so an idle but healthy channel is never torn
// down by the read deadline. It exits with the read pump.
func (s *Socket) keepAlive() {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Send writes a single frame to the channel.
func (s *Socket) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal-closure control frame and closes the connection.
// Safe to call more than once.
func (s *Socket) Close() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()

		s.conn.Close()
	})
}
