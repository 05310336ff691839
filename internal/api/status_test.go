package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axolotlclient/axolotlclient-api/internal/events"
)

func TestStatusRequestConstructors(t *testing.T) {
	req := StatusOnlineRequest(MenuServerList)
	assert.Equal(t, RouteStatusUpdate, req.Route())
	assert.Contains(t, req.String(), "status/update")

	req = StatusInGameRequest("Hypixel")
	assert.Equal(t, RouteStatusUpdate, req.Route())

	// The constructors must not shadow the presence enum.
	assert.Equal(t, StatusOnline, ParseStatus("online"))
	assert.Equal(t, StatusInGame, ParseStatus("in_game"))
}

func TestStatusUpdateHandlerAppliesToCache(t *testing.T) {
	session := chatSession(t, nil)

	friend := NewUser("abcdefabcdefabcdefabcdefabcdef12", StatusOnline)
	session.cacheUser(friend)

	handler := newStatusUpdateHandler(session)
	require.True(t, handler.Applicable("status_update"))
	assert.False(t, handler.Applicable("chat_message"))

	handler.Handle(NewResponse(http.StatusOK, nil, []byte(
		`{"target":"status_update","uuid":"abcdefabcdefabcdefabcdefabcdef12","status":"in_game"}`,
	)))

	assert.Equal(t, StatusInGame, friend.Status)
}

func TestStatusUpdateHandlerIgnoresUnknownUsers(t *testing.T) {
	session := chatSession(t, nil)
	handler := newStatusUpdateHandler(session)

	// A push for a user never seen must not fault or populate the cache.
	handler.Handle(NewResponse(http.StatusOK, nil, []byte(
		`{"target":"status_update","uuid":"ffffffffffffffffffffffffffffffff","status":"online"}`,
	)))

	session.usersMu.Lock()
	_, cached := session.users["ffffffffffffffffffffffffffffffff"]
	session.usersMu.Unlock()
	assert.False(t, cached)
}

type fixedStatusProvider struct {
	initialized bool
}

func (p *fixedStatusProvider) Initialize() { p.initialized = true }

func (p *fixedStatusProvider) Status() *Request {
	return StatusOnlineRequest(MenuMain)
}

func TestStatusLoopStopsWhenDisconnected(t *testing.T) {
	provider := &fixedStatusProvider{}
	session := NewSession(testConfig("http://127.0.0.1:1"), events.NewEventBus(), SessionOptions{
		StatusProvider: provider,
	})

	// Never connected: the loop must exit on its own after the warm-up.
	session.startStatusLoop()
	session.stopStatusLoop()

	// Stopping twice is harmless.
	session.stopStatusLoop()
}
