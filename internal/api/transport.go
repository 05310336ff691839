package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// ErrNotAuthenticated is returned when a request that requires a bearer
// token is issued while no token is held. The request is rejected before
// any network traffic occurs.
var ErrNotAuthenticated = errors.New("api: request requires authentication but no token is held")

// Transport wraps the HTTP client for request/response calls and the
// persistent socket for push events. It owns the bearer token and the
// socket handle; the two are guarded by a single mutex so no request
// ever observes a half-updated pair.
type Transport struct {
	cfg    *config.Config
	logger zerolog.Logger
	client *http.Client

	// Guards token and sock together.
	mu    sync.Mutex
	token string
	sock  *Socket
}

// NewTransport creates a transport against the configured backend.
func NewTransport(cfg *config.Config) *Transport {
	timeout := time.Duration(cfg.GetAPIData().RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transport{
		cfg:    cfg,
		logger: util.ComponentLogger("transport"),
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

// Get issues an asynchronous GET request.
func (t *Transport) Get(req *Request) *Call { return t.Do(req, http.MethodGet) }

// Post issues an asynchronous POST request.
func (t *Transport) Post(req *Request) *Call { return t.Do(req, http.MethodPost) }

// Patch issues an asynchronous PATCH request.
func (t *Transport) Patch(req *Request) *Call { return t.Do(req, http.MethodPatch) }

// Delete issues an asynchronous DELETE request.
func (t *Transport) Delete(req *Request) *Call { return t.Do(req, http.MethodDelete) }

// Do executes a request asynchronously. Transport failures (refused
// connection, timeout, I/O error) resolve the call with the client-error
// sentinel response. The one failure mode that fails the call itself is
// the pre-flight rejection of an authenticated request without a token.
func (t *Transport) Do(req *Request, method string) *Call {
	token := t.Token()
	if req.RequiresAuth() && token == "" {
		t.logger.Warn().
			Str("route", req.Route().String()).
			Msg("rejecting request, not authenticated")
		return resolvedCall(nil, fmt.Errorf("%w: %s %s", ErrNotAuthenticated, method, req.Route()))
	}

	call := newCall()
	go func() {
		call.settle(t.execute(req, method, token))
	}()
	return call
}

func (t *Transport) execute(req *Request, method, token string) (*Response, error) {
	url := req.URL(t.cfg.GetAPIData().BaseURL)

	body, err := encodeBody(req)
	if err != nil {
		t.logger.Error().Err(err).Str("url", url).Msg("failed to encode request body")
		return ClientErrorResponse(), nil
	}

	httpReq, err := http.NewRequest(method, url, body)
	if err != nil {
		t.logger.Error().Err(err).Str("url", url).Msg("failed to build request")
		return ClientErrorResponse(), nil
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	t.logDetailed(func(e *zerolog.Event) {
		e.Str("method", method).Str("url", url).
			Interface("headers", httpReq.Header).
			Msg("sending request")
	})

	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.logger.Warn().Err(err).Str("method", method).Str("url", url).
			Msg("request failed on the transport level")
		return ClientErrorResponse(), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.logger.Warn().Err(err).Str("url", url).Msg("failed to read response body")
		return ClientErrorResponse(), nil
	}

	t.logDetailed(func(e *zerolog.Event) {
		e.Int("status", resp.StatusCode).Str("url", url).
			Str("body", string(data)).
			Msg("received response")
	})

	return NewResponse(resp.StatusCode, resp.Header, data), nil
}

func encodeBody(req *Request) (io.Reader, error) {
	if req.rawBody != nil {
		return bytes.NewReader(req.rawBody), nil
	}
	if len(req.fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(req.fields)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// logDetailed runs the log closure only when detailed logging is enabled.
// Verbose dumps, including headers, never reach the logs otherwise.
func (t *Transport) logDetailed(fn func(e *zerolog.Event)) {
	if t.cfg.DetailedLogging() {
		fn(t.logger.Debug())
	}
}

// SetToken stores the bearer token used for all subsequent calls.
func (t *Transport) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// Token returns the current bearer token, or "" when unauthenticated.
func (t *Transport) Token() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// OpenSocket opens the single long-lived push channel, authenticated with
// the current token. onMessage is invoked for every inbound frame in
// arrival order; onClose fires once when the channel goes away.
func (t *Transport) OpenSocket(ctx context.Context, onMessage func([]byte), onClose func(error)) error {
	t.mu.Lock()
	if t.sock != nil {
		t.mu.Unlock()
		return errors.New("api: socket already open")
	}
	token := t.token
	t.mu.Unlock()

	if token == "" {
		return ErrNotAuthenticated
	}

	// The dial happens outside the lock so requests in flight never wait
	// on the websocket handshake.
	sock, err := dialSocket(ctx, t.cfg.GetAPIData().SocketURL, token)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.sock != nil {
		t.mu.Unlock()
		sock.Close()
		return errors.New("api: socket already open")
	}
	t.sock = sock
	t.mu.Unlock()

	go sock.readPump(onMessage, func(err error) {
		t.dropSocket(sock)
		onClose(err)
	})

	t.logger.Debug().Msg("push channel established")
	return nil
}

// CloseSocket sends a normal-closure frame if the socket is open.
// Calling it with no open socket is a no-op.
func (t *Transport) CloseSocket() {
	t.mu.Lock()
	sock := t.sock
	t.sock = nil
	t.mu.Unlock()

	if sock != nil {
		sock.Close()
		t.logger.Debug().Msg("push channel closed")
	}
}

// Shutdown clears the token and tears down the socket as one atomic swap.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	sock := t.sock
	t.sock = nil
	t.token = ""
	t.mu.Unlock()

	if sock != nil {
		sock.Close()
	}
}

// Connected reports whether the push channel is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock != nil
}

// SendFrame writes a frame to the push channel.
func (t *Transport) SendFrame(data []byte) error {
	t.mu.Lock()
	sock := t.sock
	t.mu.Unlock()

	if sock == nil {
		return errors.New("api: push channel not open")
	}
	return sock.Send(data)
}

// dropSocket clears the socket handle if it still refers to the given
// socket. A reconnect may already have replaced it.
func (t *Transport) dropSocket(sock *Socket) {
	t.mu.Lock()
	if t.sock == sock {
		t.sock = nil
	}
	t.mu.Unlock()
}
