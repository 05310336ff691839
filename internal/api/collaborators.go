package api

import (
	"github.com/rs/zerolog/log"
)

// NotificationProvider surfaces user-visible status notifications.
// The companion's REST/CLI layers plug in here; the library itself only
// emits through this interface.
type NotificationProvider interface {
	AddStatus(title, description string, args ...interface{})
}

// TranslationProvider resolves translation keys to display strings.
type TranslationProvider interface {
	Translate(key string, args ...interface{}) string
}

// ConsentPrompter asks the user to answer the privacy note. The callback
// fires once the user has decided; implementations may take arbitrarily
// long (a UI screen, a terminal prompt).
type ConsentPrompter interface {
	OpenPrivacyNote(answered func(accepted bool))
}

// ProofProvider obtains the game-session proof that the login exchange
// presents to the backend.
type ProofProvider interface {
	SessionProof(uuid, username string) (string, error)
}

// StatusUpdateProvider supplies the periodic presence report. Status may
// return nil, meaning there is no change to report this round.
type StatusUpdateProvider interface {
	Initialize()
	Status() *Request
}

// LogNotifier is the default NotificationProvider: notifications land in
// the log only.
type LogNotifier struct{}

func (LogNotifier) AddStatus(title, description string, args ...interface{}) {
	log.Info().
		Str("title", title).
		Str("description", description).
		Msg("notification")
}

// KeyTranslator is the default TranslationProvider; it passes keys
// through unchanged.
type KeyTranslator struct{}

func (KeyTranslator) Translate(key string, args ...interface{}) string {
	return key
}

// NoConsentPrompter never answers the privacy note, leaving consent
// unset. Used when no UI is attached.
type NoConsentPrompter struct{}

func (NoConsentPrompter) OpenPrivacyNote(func(accepted bool)) {
	log.Warn().Msg("privacy note unanswered and no prompt available, backend stays disabled")
}

// StaticProof returns a fixed proof value. The zero value presents an
// empty proof, which the backend rejects for online-mode accounts.
type StaticProof string

func (p StaticProof) SessionProof(uuid, username string) (string, error) {
	return string(p), nil
}

// NoStatusProvider reports nothing.
type NoStatusProvider struct{}

func (NoStatusProvider) Initialize() {}

func (NoStatusProvider) Status() *Request { return nil }
