package api

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/events"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// statusWarmup is the short delay before the first presence report after
// the session comes up.
const statusWarmup = 50 * time.Millisecond

// MenuID identifies the menu the local player is currently in.
type MenuID string

const (
	MenuMain       MenuID = "main_menu"
	MenuServerList MenuID = "server_list"
	MenuSettings   MenuID = "settings"
)

// StatusOnlineRequest builds a presence report for a player sitting in a
// menu.
func StatusOnlineRequest(menu MenuID) *Request {
	return RouteStatusUpdate.Builder().
		Field("location", string(menu)).
		Build()
}

// StatusInGameRequest builds a presence report for a player in a world or
// on a server whose kind is not further known.
func StatusInGameRequest(description string) *Request {
	return RouteStatusUpdate.Builder().
		Field("location", "in_game").
		Field("description", description).
		Build()
}

// startStatusLoop spawns the presence-update task. The task is bound to
// the session lifetime through a cancel function, and additionally exits
// on its own as soon as connection state goes false.
func (s *Session) startStatusLoop() {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.statusCancel != nil {
		s.statusCancel()
	}
	s.statusCancel = cancel
	s.mu.Unlock()

	go s.runStatusLoop(ctx)
}

func (s *Session) stopStatusLoop() {
	s.mu.Lock()
	cancel := s.statusCancel
	s.statusCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// runStatusLoop periodically asks the status provider for the current
// presence and posts it. A nil request means "no change to report".
func (s *Session) runStatusLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(statusWarmup):
	}

	interval := time.Duration(s.cfg.GetAPIData().StatusUpdateInterval) * time.Second
	if interval <= 0 {
		interval = 40 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if !s.Connected() {
			return
		}

		if req := s.statusProvider.Status(); req != nil {
			s.transport.Post(req).Then(func(res *Response, err error) {
				if err != nil {
					s.logger.Warn().Err(err).Msg("presence report rejected")
					return
				}
				if res.IsError() {
					s.logger.Warn().Str("reason", res.ErrorDescription()).Msg("presence report failed")
					return
				}
				s.bus.Emit(ctx, events.Event{Type: events.EventStatusPosted, Source: "session"})
			})
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// statusUpdateHandler applies inbound presence pushes to the user cache.
type statusUpdateHandler struct {
	session *Session
	logger  zerolog.Logger
}

func newStatusUpdateHandler(session *Session) *statusUpdateHandler {
	return &statusUpdateHandler{
		session: session,
		logger:  util.ComponentLogger("status"),
	}
}

func (h *statusUpdateHandler) Applicable(target string) bool {
	return target == "status_update"
}

func (h *statusUpdateHandler) Handle(res *Response) {
	uuid := res.BodyString("uuid")
	status := ParseStatus(res.BodyString("status"))

	h.session.usersMu.Lock()
	if u, ok := h.session.users[uuid]; ok {
		u.Status = status
	}
	h.session.usersMu.Unlock()

	h.logger.Debug().Str("uuid", uuid).Str("status", string(status)).Msg("friend status changed")

	h.session.bus.Emit(context.Background(), events.Event{
		Type:    events.EventStatusUpdate,
		Source:  "status",
		Payload: events.StatusPayload{UUID: uuid, Status: string(status)},
	})
}
