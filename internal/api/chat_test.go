package api

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axolotlclient/axolotlclient-api/internal/events"
)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) AddStatus(title, description string, args ...interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func chatSession(t *testing.T, notifier NotificationProvider) *Session {
	t.Helper()
	// No listener behind this address: chat behavior under test must not
	// depend on the network.
	return NewSession(testConfig("http://127.0.0.1:1"), events.NewEventBus(), SessionOptions{
		Notifier: notifier,
	})
}

func TestSendMessageEchoesLocally(t *testing.T) {
	session := chatSession(t, nil)

	self := NewUser("1234567890abcdef1234567890abcdef", StatusOnline)
	self.Name = "Alex"
	session.mu.Lock()
	session.self = self
	session.mu.Unlock()

	var got []ChatMessage
	session.Chat().SetMessageConsumer(func(msg ChatMessage) {
		got = append(got, msg)
	})

	session.Chat().SendMessage(Channel{ID: "42", Name: "general"}, "hi")

	// The echo is delivered synchronously, before any network round trip.
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ChannelID)
	assert.Equal(t, "hi", got[0].Content)
	assert.Same(t, self, got[0].Sender)
	assert.Equal(t, "Alex", got[0].SenderName)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestSendMessageWithoutSelfIsDropped(t *testing.T) {
	session := chatSession(t, nil)

	called := false
	session.Chat().SetMessageConsumer(func(ChatMessage) { called = true })

	session.Chat().SendMessage(Channel{ID: "42"}, "hi")
	assert.False(t, called)
}

func TestChatConsumerLastRegistrationWins(t *testing.T) {
	session := chatSession(t, nil)

	self := NewUser("1234567890abcdef1234567890abcdef", StatusOnline)
	session.mu.Lock()
	session.self = self
	session.mu.Unlock()

	first, second := 0, 0
	session.Chat().SetMessageConsumer(func(ChatMessage) { first++ })
	session.Chat().SetMessageConsumer(func(ChatMessage) { second++ })

	session.Chat().SendMessage(Channel{ID: "42"}, "hi")

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	// Nil restores the no-op default without panicking.
	session.Chat().SetMessageConsumer(nil)
	session.Chat().SendMessage(Channel{ID: "42"}, "hi")
	assert.Equal(t, 1, second)
}

func TestChatHandleInboundMessage(t *testing.T) {
	notifier := &recordingNotifier{}
	session := chatSession(t, notifier)

	sender := NewUser("abcdefabcdefabcdefabcdefabcdef12", StatusOnline)
	sender.Name = "Friend"
	session.cacheUser(sender)

	var got []ChatMessage
	session.Chat().SetMessageConsumer(func(msg ChatMessage) {
		got = append(got, msg)
	})

	session.Chat().Handle(NewResponse(http.StatusOK, nil, []byte(
		`{"target":"chat_message","channel":42,"sender":"abcdefabcdefabcdefabcdefabcdef12","sender_name":"Friend","content":"hello there"}`,
	)))

	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ChannelID)
	assert.Equal(t, "hello there", got[0].Content)
	assert.Same(t, sender, got[0].Sender)
	assert.Equal(t, 1, notifier.count())
}

func TestChatHandleUnknownSenderFallsBack(t *testing.T) {
	session := chatSession(t, nil)

	var got []ChatMessage
	session.Chat().SetMessageConsumer(func(msg ChatMessage) {
		got = append(got, msg)
	})

	// Sender is not cached and cannot be fetched; the message is still
	// delivered with a placeholder profile.
	session.Chat().Handle(NewResponse(http.StatusOK, nil, []byte(
		`{"target":"chat_message","channel":42,"sender":"ffffffffffffffffffffffffffffffff","sender_name":"Ghost","content":"boo"}`,
	)))

	require.Len(t, got, 1)
	assert.Equal(t, "ffffffffffffffffffffffffffffffff", got[0].Sender.UUID)
	assert.Equal(t, StatusUnknown, got[0].Sender.Status)
	assert.Equal(t, "boo", got[0].Content)
}

func TestChatNotificationsCanBeSuppressed(t *testing.T) {
	notifier := &recordingNotifier{}
	session := chatSession(t, notifier)

	sender := NewUser("abcdefabcdefabcdefabcdefabcdef12", StatusOnline)
	session.cacheUser(sender)

	session.Chat().SetNotificationsEnabler(func(ChatMessage) bool { return false })

	session.Chat().Handle(NewResponse(http.StatusOK, nil, []byte(
		`{"target":"chat_message","channel":42,"sender":"abcdefabcdefabcdefabcdefabcdef12","content":"quiet"}`,
	)))

	assert.Equal(t, 0, notifier.count())
}

func TestChatRouting(t *testing.T) {
	session := chatSession(t, nil)

	assert.True(t, session.Chat().Applicable("chat_message"))
	assert.False(t, session.Chat().Applicable("status_update"))
}
