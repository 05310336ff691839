package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// PushHandler claims responsibility for a subset of push message types.
type PushHandler interface {
	// Applicable reports whether this handler wants messages with the
	// given target tag.
	Applicable(target string) bool

	// Handle processes one inbound push message.
	Handle(res *Response)
}

// Router dispatches unsolicited push frames to the correct subsystem
// handler by the frame's target tag. The handler list is fixed at
// construction and ordered: the first handler whose predicate matches
// receives the message, later matches are never consulted.
type Router struct {
	logger   zerolog.Logger
	handlers []PushHandler
}

// NewRouter creates a router over a fixed, ordered handler list.
func NewRouter(handlers ...PushHandler) *Router {
	return &Router{
		logger:   util.ComponentLogger("router"),
		handlers: handlers,
	}
}

// Dispatch routes one inbound frame. Frames without a target tag and
// frames no handler claims are dropped; the latter is deliberate so old
// clients survive new message types.
func (r *Router) Dispatch(frame []byte) {
	res := NewResponse(http.StatusOK, nil, frame)

	target := res.BodyString("target")
	if target == "" {
		r.logger.Warn().Str("frame", string(frame)).Msg("push message without target field")
		return
	}

	for _, h := range r.handlers {
		if h.Applicable(target) {
			h.Handle(res)
			return
		}
	}

	r.logger.Trace().Str("target", target).Msg("no handler for push message, dropping")
}
