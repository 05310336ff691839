package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/events"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// FriendHandler is the friends subsystem: list, request, and react to
// friend requests.
type FriendHandler struct {
	session *Session
	logger  zerolog.Logger
}

func newFriendHandler(session *Session) *FriendHandler {
	return &FriendHandler{
		session: session,
		logger:  util.ComponentLogger("friends"),
	}
}

// Friends fetches the friend list.
func (h *FriendHandler) Friends(ctx context.Context) ([]*User, error) {
	res, err := h.session.transport.Get(RouteFriends.Builder().Build()).Await(ctx)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		h.logger.Warn().Str("reason", res.ErrorDescription()).Msg("friend list fetch rejected")
		return nil, nil
	}

	records := res.BodyList()
	friends := make([]*User, 0, len(records))
	for _, record := range records {
		uuid, _ := record["uuid"].(string)
		u := NewUser(uuid, StatusUnknown)
		u.Name, _ = record["username"].(string)
		if status, ok := record["status"].(string); ok {
			u.Status = ParseStatus(status)
		}
		h.session.cacheUser(u)
		friends = append(friends, u)
	}
	return friends, nil
}

// Request sends a friend request to the given user.
func (h *FriendHandler) Request(uuid string) *Call {
	return h.session.transport.Post(RouteFriendRequest.Builder().
		Field("uuid", uuid).
		Build())
}

// Accept accepts a pending friend request from the given user.
func (h *FriendHandler) Accept(uuid string) *Call {
	return h.session.transport.Post(RouteFriendRequest.Builder().
		Path(uuid).
		Field("accept", true).
		Build())
}

// Decline declines a pending friend request from the given user.
func (h *FriendHandler) Decline(uuid string) *Call {
	return h.session.transport.Post(RouteFriendRequest.Builder().
		Path(uuid).
		Field("accept", false).
		Build())
}

// Remove removes a friend.
func (h *FriendHandler) Remove(uuid string) *Call {
	return h.session.transport.Delete(RouteFriends.Builder().
		Path(uuid).
		Build())
}

// friendRequestHandler reacts to inbound friend request pushes.
type friendRequestHandler struct {
	session *Session
	logger  zerolog.Logger
}

func newFriendRequestHandler(session *Session) *friendRequestHandler {
	return &friendRequestHandler{
		session: session,
		logger:  util.ComponentLogger("friends"),
	}
}

func (h *friendRequestHandler) Applicable(target string) bool {
	return target == "friend_request"
}

func (h *friendRequestHandler) Handle(res *Response) {
	from := res.BodyString("from")

	ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
	defer cancel()

	user, err := h.session.User(ctx, from)
	if err != nil {
		h.logger.Warn().Err(err).Str("uuid", from).Msg("failed to resolve friend request sender")
		user = NewUser(from, StatusUnknown)
	}

	h.session.notifier.AddStatus(
		h.session.translator.Translate("api.friends.request"),
		h.session.translator.Translate("api.friends.request.desc", user.Name),
	)

	h.session.bus.Emit(context.Background(), events.Event{
		Type:    events.EventFriendRequest,
		Source:  "friends",
		Payload: events.StatusPayload{UUID: from},
	})
}

// friendRequestReactionHandler reacts to the other side accepting or
// declining one of our requests.
type friendRequestReactionHandler struct {
	session *Session
	logger  zerolog.Logger
}

func newFriendRequestReactionHandler(session *Session) *friendRequestReactionHandler {
	return &friendRequestReactionHandler{
		session: session,
		logger:  util.ComponentLogger("friends"),
	}
}

func (h *friendRequestReactionHandler) Applicable(target string) bool {
	return target == "friend_request_reaction"
}

func (h *friendRequestReactionHandler) Handle(res *Response) {
	from := res.BodyString("from")
	accepted, _ := res.BodyField("accepted").(bool)

	ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
	defer cancel()

	user, err := h.session.User(ctx, from)
	if err != nil {
		user = NewUser(from, StatusUnknown)
	}

	key := "api.friends.request.declined"
	if accepted {
		key = "api.friends.request.accepted"
	}
	h.session.notifier.AddStatus(
		h.session.translator.Translate(key),
		h.session.translator.Translate(key+".desc", user.Name),
	)

	h.session.bus.Emit(context.Background(), events.Event{
		Type:    events.EventFriendRequestReaction,
		Source:  "friends",
		Payload: events.StatusPayload{UUID: from},
	})
}
