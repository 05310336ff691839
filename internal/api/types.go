package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidUUID marks an identity value that failed normalization.
// Bad UUIDs are rejected hard since they indicate a corrupted identity.
var ErrInvalidUUID = errors.New("api: invalid uuid")

// Status is a user's presence as reported by the backend.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOffline Status = "offline"
	StatusOnline  Status = "online"
	StatusInGame  Status = "in_game"
)

// ParseStatus maps a wire value onto a Status, defaulting to unknown.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusOffline, StatusOnline, StatusInGame:
		return Status(s)
	default:
		return StatusUnknown
	}
}

// User is an identity record known to the backend.
type User struct {
	UUID string
	Name string

	// Optional display-name override.
	DisplayNameOverride string

	Status Status

	// Optional linked system identity for multi-identity proxying.
	System *PkSystem
}

// NewUser creates a user with just an identity and presence.
func NewUser(uuid string, status Status) *User {
	return &User{UUID: uuid, Status: status}
}

// DisplayName computes the name a chat message should be sent under.
// With a linked system identity the fronter whose proxy tags match the
// message wins; otherwise the override or plain name applies.
func (u *User) DisplayName(message string) string {
	if u.System != nil {
		if m := u.System.Proxy(message); m != nil {
			return m.DisplayName
		}
	}
	if u.DisplayNameOverride != "" {
		return u.DisplayNameOverride
	}
	return u.Name
}

// IsSystem reports whether a system identity is linked.
func (u *User) IsSystem() bool {
	return u.System != nil
}

// Channel is a chat channel on the backend.
type Channel struct {
	ID      string
	Name    string
	Owner   string
	Members []string
}

// ChatMessage is one message in a channel. Messages within a channel are
// ordered by timestamp, ties broken by arrival order.
type ChatMessage struct {
	ChannelID  string
	Sender     *User
	SenderName string
	Content    string
	Timestamp  time.Time
}

// SanitizeUUID normalizes a player uuid: dash separators are stripped and
// anything that is not exactly 32 hex characters afterwards is rejected.
func SanitizeUUID(raw string) (string, error) {
	stripped := strings.ReplaceAll(raw, "-", "")
	if len(stripped) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidUUID, raw)
	}
	if _, err := uuid.Parse(stripped); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidUUID, raw, err)
	}
	return stripped, nil
}
