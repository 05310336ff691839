package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/events"
	"github.com/axolotlclient/axolotlclient-api/internal/history"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// MessageConsumer receives single chat messages: inbound pushes and the
// local echo of sent messages.
type MessageConsumer func(ChatMessage)

// MessagesConsumer receives history batches.
type MessagesConsumer func([]ChatMessage)

// NotificationsEnabler decides whether an inbound message should raise a
// user-visible notification.
type NotificationsEnabler func(ChatMessage) bool

// ChatHandler is the chat subsystem. Exactly one consumer of each kind
// is active at a time; registering a new one replaces the previous.
type ChatHandler struct {
	session *Session
	logger  zerolog.Logger
	store   *history.Store

	mu                  sync.Mutex
	messageConsumer     MessageConsumer
	messagesConsumer    MessagesConsumer
	enableNotifications NotificationsEnabler
}

func newChatHandler(session *Session, store *history.Store) *ChatHandler {
	return &ChatHandler{
		session:             session,
		logger:              util.ComponentLogger("chat"),
		store:               store,
		messageConsumer:     func(ChatMessage) {},
		messagesConsumer:    func([]ChatMessage) {},
		enableNotifications: func(ChatMessage) bool { return true },
	}
}

// Applicable claims chat message pushes.
func (h *ChatHandler) Applicable(target string) bool {
	return target == "chat_message"
}

// Handle processes one inbound chat push: resolve the sender profile,
// stamp the message with receipt time, optionally notify, then deliver.
func (h *ChatHandler) Handle(res *Response) {
	now := time.Now()

	channelID, _ := res.BodyFieldWith("channel", UnsignedString).(string)
	senderUUID := res.BodyString("sender")
	senderName := res.BodyString("sender_name")
	content := res.BodyString("content")

	ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
	defer cancel()

	sender, err := h.session.User(ctx, senderUUID)
	if err != nil {
		h.logger.Warn().Err(err).Str("uuid", senderUUID).Msg("failed to resolve message sender")
		sender = NewUser(senderUUID, StatusUnknown)
	}

	msg := ChatMessage{
		ChannelID:  channelID,
		Sender:     sender,
		SenderName: senderName,
		Content:    content,
		Timestamp:  now,
	}

	if h.notificationsEnabler()(msg) {
		h.session.notifier.AddStatus(
			h.session.translator.Translate("api.chat.newMessageFrom", sender.Name),
			msg.Content,
		)
	}

	h.record(msg)
	h.consumer()(msg)

	h.session.bus.Emit(context.Background(), events.Event{
		Type:   events.EventChatMessage,
		Source: "chat",
		Payload: events.ChatMessagePayload{
			ChannelID:  msg.ChannelID,
			Sender:     senderUUID,
			SenderName: senderName,
			Content:    content,
		},
	})
}

// SendMessage posts a message to a channel and immediately echoes it to
// the message consumer, stamped with the current time. The echo is
// optimistic: the server-confirmed copy is never reconciled against it.
func (h *ChatHandler) SendMessage(channel Channel, content string) {
	self := h.session.Self()
	if self == nil {
		h.logger.Warn().Msg("not sending chat message, no authenticated user")
		return
	}

	displayName := self.DisplayName(content)

	h.session.transport.Post(RouteChannel.Builder().
		Path(channel.ID).
		Field("content", content).
		Field("display_name", displayName).
		Build()).Then(func(res *Response, err error) {
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to send chat message")
			return
		}
		if res.IsError() {
			h.logger.Warn().Str("reason", res.ErrorDescription()).Msg("backend rejected chat message")
		}
	})

	echo := ChatMessage{
		ChannelID:  channel.ID,
		Sender:     self,
		SenderName: displayName,
		Content:    content,
		Timestamp:  time.Now(),
	}
	h.record(echo)
	h.consumer()(echo)
}

// GetMessagesBefore fetches a page of channel history older than the
// given epoch second and delivers it as a batch to the messages consumer.
func (h *ChatHandler) GetMessagesBefore(channel Channel, beforeEpochSeconds int64) {
	before := time.Unix(beforeEpochSeconds, 0).UTC()

	h.session.transport.Get(RouteChannel.Builder().
		Path(channel.ID).
		Path("messages").
		Query("before", before.Format(time.RFC3339)).
		Build()).Then(func(res *Response, err error) {
		if err != nil {
			h.logger.Error().Err(err).Msg("history fetch failed")
			return
		}
		if res.IsError() {
			h.logger.Warn().Str("reason", res.ErrorDescription()).Msg("history fetch rejected")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), userLookupTimeout)
		defer cancel()

		records := res.BodyList()
		batch := make([]ChatMessage, 0, len(records))
		for _, record := range records {
			channelID, _ := UnsignedString(record["channel_id"]).(string)
			senderUUID, _ := record["sender"].(string)
			senderName, _ := record["sender_name"].(string)
			content, _ := record["content"].(string)
			timestamp, _ := ParseTimestamp(record["timestamp"]).(time.Time)

			sender, err := h.session.User(ctx, senderUUID)
			if err != nil {
				sender = NewUser(senderUUID, StatusUnknown)
			}

			batch = append(batch, ChatMessage{
				ChannelID:  channelID,
				Sender:     sender,
				SenderName: senderName,
				Content:    content,
				Timestamp:  timestamp,
			})
		}

		h.messagesConsumerFn()(batch)
	})
}

// LocalHistory serves stored messages from the local cache. Used by the
// companion's REST and CLI surfaces; never touches the network.
func (h *ChatHandler) LocalHistory(channelID string, before time.Time, limit int) ([]history.Message, error) {
	if h.store == nil {
		return nil, nil
	}
	return h.store.MessagesBefore(channelID, before, limit)
}

// LocalChannels lists channel ids with locally cached history.
func (h *ChatHandler) LocalChannels() ([]string, error) {
	if h.store == nil {
		return nil, nil
	}
	return h.store.Channels()
}

// SetMessageConsumer registers the single-message consumer.
// The last registration wins; nil restores the no-op default.
func (h *ChatHandler) SetMessageConsumer(c MessageConsumer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c == nil {
		c = func(ChatMessage) {}
	}
	h.messageConsumer = c
}

// SetMessagesConsumer registers the history-batch consumer.
// The last registration wins; nil restores the no-op default.
func (h *ChatHandler) SetMessagesConsumer(c MessagesConsumer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c == nil {
		c = func([]ChatMessage) {}
	}
	h.messagesConsumer = c
}

// SetNotificationsEnabler registers the notification predicate.
// Nil restores the always-on default.
func (h *ChatHandler) SetNotificationsEnabler(e NotificationsEnabler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e == nil {
		e = func(ChatMessage) bool { return true }
	}
	h.enableNotifications = e
}

func (h *ChatHandler) consumer() MessageConsumer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messageConsumer
}

func (h *ChatHandler) messagesConsumerFn() MessagesConsumer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.messagesConsumer
}

func (h *ChatHandler) notificationsEnabler() NotificationsEnabler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enableNotifications
}

func (h *ChatHandler) record(msg ChatMessage) {
	if h.store == nil {
		return
	}
	err := h.store.Append(history.Message{
		ChannelID:  msg.ChannelID,
		Sender:     msg.Sender.UUID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to store message in local history")
	}
}
