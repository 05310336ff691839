// Package events defines the asynchronous publish-subscribe backbone that
// connects the backend session to the companion's local surfaces
// (REST, CLI, MQTT telemetry).
package events

// EventType represents the type of event emitted through the EventBus.
type EventType string

const (
	// Session lifecycle
	EventSessionStarting      EventType = "session_starting"
	EventSessionAuthenticated EventType = "session_authenticated"
	EventSessionClosed        EventType = "session_closed"
	EventSocketOpened         EventType = "socket_opened"
	EventSocketClosed         EventType = "socket_closed"

	// Social events
	EventChatMessage           EventType = "chat_message"
	EventFriendRequest         EventType = "friend_request"
	EventFriendRequestReaction EventType = "friend_request_reaction"
	EventStatusUpdate          EventType = "status_update"

	// Presence reporting
	EventStatusPosted EventType = "status_posted"

	// UI notifications
	EventNotification EventType = "notification"

	// System events
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType
	Source  string
	Payload interface{}
}

// NotificationPayload carries a user-visible notification.
type NotificationPayload struct {
	Title string
	Body  string
}

// ChatMessagePayload carries an inbound or locally echoed chat message.
type ChatMessagePayload struct {
	ChannelID  string
	Sender     string
	SenderName string
	Content    string
}

// StatusPayload carries a friend presence change.
type StatusPayload struct {
	UUID   string
	Status string
}

// SessionStatePayload carries a session state transition.
type SessionStatePayload struct {
	State string
}
