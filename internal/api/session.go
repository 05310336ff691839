// Package api implements the AxolotlClient backend session layer: HTTP
// request/response transport, the persistent push channel, the session
// auth state machine, push-message routing, and the chat, friends, and
// presence subsystems.
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/axolotlclient/axolotlclient-api/internal/config"
	"github.com/axolotlclient/axolotlclient-api/internal/events"
	"github.com/axolotlclient/axolotlclient-api/internal/history"
	"github.com/axolotlclient/axolotlclient-api/internal/util"
)

// State is the session's position in the authentication state machine.
type State string

// userLookupTimeout bounds profile lookups made from push handlers, so a
// cache miss can never stall the socket read pump for a full HTTP timeout.
const userLookupTimeout = 5 * time.Second

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateConnecting      State = "connecting"
	StateConnected       State = "connected"
)

// Identity is the local game account the session authenticates as.
type Identity struct {
	UUID     string
	Username string
	Offline  bool
}

// SessionOptions are the external collaborators a session consumes.
// Zero fields fall back to no-op defaults.
type SessionOptions struct {
	Notifier       NotificationProvider
	Translator     TranslationProvider
	Consent        ConsentPrompter
	StatusProvider StatusUpdateProvider
	Proof          ProofProvider
	History        *history.Store
}

// Session owns the connection to the social backend: it exchanges the
// game-session credentials for a token, keeps the push channel alive,
// dispatches push messages, and reports presence. The application root
// constructs exactly one Session and passes it to all consumers;
// uniqueness is the owner's construction discipline, not a runtime guard.
type Session struct {
	cfg    *config.Config
	bus    *events.EventBus
	logger zerolog.Logger

	transport *Transport
	router    *Router

	notifier       NotificationProvider
	translator     TranslationProvider
	consent        ConsentPrompter
	statusProvider StatusUpdateProvider
	proof          ProofProvider

	chat    *ChatHandler
	friends *FriendHandler

	mu           sync.Mutex
	state        State
	identity     *Identity
	self         *User
	closing      bool
	statusCancel context.CancelFunc

	usersMu sync.Mutex
	users   map[string]*User
}

// NewSession creates a session over the given configuration and event
// bus. The push handler set is fixed here: chat, friend request, friend
// request reaction, status update — in that order.
func NewSession(cfg *config.Config, bus *events.EventBus, opts SessionOptions) *Session {
	s := &Session{
		cfg:            cfg,
		bus:            bus,
		logger:         util.ComponentLogger("session"),
		transport:      NewTransport(cfg),
		notifier:       opts.Notifier,
		translator:     opts.Translator,
		consent:        opts.Consent,
		statusProvider: opts.StatusProvider,
		proof:          opts.Proof,
		state:          StateUnauthenticated,
		users:          make(map[string]*User),
	}

	if s.notifier == nil {
		s.notifier = LogNotifier{}
	}
	if s.translator == nil {
		s.translator = KeyTranslator{}
	}
	if s.consent == nil {
		s.consent = NoConsentPrompter{}
	}
	if s.statusProvider == nil {
		s.statusProvider = NoStatusProvider{}
	}
	if s.proof == nil {
		s.proof = StaticProof("")
	}

	s.chat = newChatHandler(s, opts.History)
	s.friends = newFriendHandler(s)

	s.router = NewRouter(
		s.chat,
		newFriendRequestHandler(s),
		newFriendRequestReactionHandler(s),
		newStatusUpdateHandler(s),
	)

	return s
}

// Startup stores the identity and, when the feature is enabled and the
// account is not offline-mode, proceeds through the privacy-consent gate
// into authentication.
func (s *Session) Startup(identity Identity) {
	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()

	if !s.cfg.Enabled() {
		s.logger.Debug().Msg("backend integration disabled, not starting session")
		return
	}
	if identity.Offline {
		s.logger.Info().Msg("offline-mode account, not starting session")
		return
	}

	switch s.cfg.PrivacyConsent() {
	case config.ConsentAccepted:
		go s.startupAPI()
	case config.ConsentUnset:
		s.consent.OpenPrivacyNote(func(accepted bool) {
			if accepted {
				s.cfg.SetPrivacyConsent(config.ConsentAccepted)
				go s.startupAPI()
			} else {
				s.cfg.SetPrivacyConsent(config.ConsentDenied)
			}
		})
	default:
		// Consent denied: stay off the network.
	}
}

// startupAPI runs the authentication sequence on a background goroutine.
// Starting while a session is live is a logged no-op.
func (s *Session) startupAPI() {
	s.mu.Lock()
	if s.state != StateUnauthenticated {
		s.mu.Unlock()
		s.logger.Warn().Str("state", string(s.state)).Msg("session already running")
		return
	}
	s.state = StateAuthenticating
	s.closing = false
	identity := *s.identity
	s.mu.Unlock()

	s.bus.Emit(context.Background(), events.Event{
		Type:    events.EventSessionStarting,
		Source:  "session",
		Payload: events.SessionStatePayload{State: string(StateAuthenticating)},
	})

	s.authenticate(identity)
}

// authenticate exchanges the game-session proof for a backend token,
// fetches the self profile and account settings, opens the push channel,
// and starts the presence task. Any failure logs and returns the state
// machine to unauthenticated; there is no retry beyond the
// reconnect-on-close policy.
func (s *Session) authenticate(identity Identity) {
	uuid, err := SanitizeUUID(identity.UUID)
	if err != nil {
		s.logger.Error().Err(err).Msg("refusing to authenticate with corrupted identity")
		s.fail()
		return
	}

	proof, err := s.proof.SessionProof(uuid, identity.Username)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to obtain game-session proof")
		s.fail()
		return
	}

	ctx := context.Background()

	res, err := s.transport.Post(RouteAuthenticate.Builder().
		Field("uuid", uuid).
		Field("username", identity.Username).
		Field("server_id", proof).
		Build()).Await(ctx)
	if err != nil || res.IsError() {
		if err != nil {
			s.logger.Error().Err(err).Msg("login request failed")
		} else {
			s.logger.Error().Str("reason", res.ErrorDescription()).Msg("login rejected")
		}
		s.fail()
		return
	}

	token := res.BodyString("access_token")
	if token == "" {
		s.logger.Error().Msg("login response carried no token")
		s.fail()
		return
	}

	s.transport.SetToken(token)
	s.setState(StateAuthenticated)
	s.logger.Debug().Msg("authenticated with backend")

	// Profile and settings are fetched concurrently and joined before the
	// push channel comes up.
	selfCall := s.transport.Get(RouteUser.Builder().Path(uuid).Build())
	settingsCall := s.transport.Get(RouteAccountSettings.Builder().Build())

	selfRes, selfErr := selfCall.Await(ctx)
	settingsRes, settingsErr := settingsCall.Await(ctx)

	self := NewUser(uuid, StatusOnline)
	self.Name = identity.Username
	if selfErr == nil && !selfRes.IsError() {
		if name := selfRes.BodyString("username"); name != "" {
			self.Name = name
		}
	}
	if settingsErr == nil && !settingsRes.IsError() {
		self.DisplayNameOverride = settingsRes.BodyString("display_name")
	}

	s.mu.Lock()
	s.self = self
	s.mu.Unlock()
	s.cacheUser(self)

	if pkToken := s.cfg.GetAPIData().Account.PkToken; pkToken != "" {
		go s.linkSystem(pkToken)
	}

	s.setState(StateConnecting)

	if err := s.transport.OpenSocket(ctx, s.handleFrame, s.onSocketClose); err != nil {
		s.logger.Error().Err(err).Msg("handshake failed, closing session")
		if s.cfg.DetailedLogging() {
			s.notifier.AddStatus("api.error.handshake", err.Error())
		}
		s.transport.Shutdown()
		s.fail()
		return
	}

	s.setState(StateConnected)
	s.logger.Info().Msg("session connected")
	s.bus.Emit(ctx, events.Event{Type: events.EventSocketOpened, Source: "session"})
	if s.cfg.DetailedLogging() {
		s.notifier.AddStatus("api.success.handshake", "api.success.handshake.desc")
	}

	s.bus.Emit(ctx, events.Event{
		Type:    events.EventSessionAuthenticated,
		Source:  "session",
		Payload: events.SessionStatePayload{State: string(StateConnected)},
	})

	s.statusProvider.Initialize()
	s.startStatusLoop()
}

// linkSystem resolves the configured PluralKit token into a system
// identity attached to the self user.
func (s *Session) linkSystem(token string) {
	system, err := SystemFromToken(context.Background(), token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to resolve system identity")
		return
	}
	if system == nil {
		return
	}

	s.mu.Lock()
	if s.self != nil {
		s.self.System = system
	}
	s.mu.Unlock()
	s.logger.Debug().Str("system", system.Name).Msg("linked system identity")
}

// handleFrame receives every inbound push frame, in arrival order, on the
// socket's read pump.
func (s *Session) handleFrame(frame []byte) {
	if s.cfg.DetailedLogging() {
		s.logger.Debug().Str("frame", string(frame)).Msg("handling push message")
	}
	s.router.Dispatch(frame)
}

// onSocketClose fires once per socket closure. Unexpected closures
// re-run the full startup sequence exactly once, provided the feature is
// still enabled.
func (s *Session) onSocketClose(err error) {
	s.stopStatusLoop()

	s.mu.Lock()
	wasClosing := s.closing
	s.state = StateUnauthenticated
	identity := s.identity
	s.mu.Unlock()

	s.transport.Shutdown()

	s.bus.Emit(context.Background(), events.Event{
		Type:    events.EventSocketClosed,
		Source:  "session",
		Payload: events.SessionStatePayload{State: string(StateUnauthenticated)},
	})

	if wasClosing {
		return
	}

	if err != nil {
		s.logger.Warn().Err(err).Msg("push channel lost")
	} else {
		s.logger.Info().Msg("push channel closed by backend")
	}

	if s.cfg.Enabled() && identity != nil {
		s.logger.Info().Msg("restarting session")
		s.Startup(*identity)
	}
}

// Shutdown closes the socket and drops transport resources. Idempotent:
// calling it on an already-closed session changes nothing.
func (s *Session) Shutdown() {
	s.stopStatusLoop()

	s.mu.Lock()
	s.closing = true
	s.state = StateUnauthenticated
	s.self = nil
	s.mu.Unlock()

	s.transport.Shutdown()

	s.bus.Emit(context.Background(), events.Event{
		Type:    events.EventSessionClosed,
		Source:  "session",
		Payload: events.SessionStatePayload{State: string(StateUnauthenticated)},
	})
}

// Restart shuts down a connected session and runs startup again with the
// last known identity. Without one the feature is disabled instead.
func (s *Session) Restart() {
	if s.Connected() {
		s.Shutdown()
	}

	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()

	if identity != nil {
		s.Startup(*identity)
	} else {
		s.cfg.SetEnabled(false)
	}
}

func (s *Session) fail() {
	s.transport.SetToken("")
	s.setState(StateUnauthenticated)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the session is live: authenticated with the
// push channel open.
func (s *Session) Connected() bool {
	return s.State() == StateConnected && s.transport.Connected()
}

// Self returns the local user, or nil before authentication.
func (s *Session) Self() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.self
}

// Identity returns the stored account identity, or nil before startup.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Transport exposes the underlying transport for request issuing.
func (s *Session) Transport() *Transport {
	return s.transport
}

// Chat returns the chat subsystem.
func (s *Session) Chat() *ChatHandler {
	return s.chat
}

// Friends returns the friends subsystem.
func (s *Session) Friends() *FriendHandler {
	return s.friends
}

// User resolves a user profile by uuid, consulting the session cache
// before the backend.
func (s *Session) User(ctx context.Context, uuid string) (*User, error) {
	s.usersMu.Lock()
	if u, ok := s.users[uuid]; ok {
		s.usersMu.Unlock()
		return u, nil
	}
	s.usersMu.Unlock()

	res, err := s.transport.Get(RouteUser.Builder().Path(uuid).Build()).Await(ctx)
	if err != nil {
		return nil, err
	}

	u := NewUser(uuid, StatusUnknown)
	if !res.IsError() {
		u.Name = res.BodyString("username")
		u.DisplayNameOverride = res.BodyString("display_name")
		u.Status = ParseStatus(res.BodyString("status"))
	}

	s.cacheUser(u)
	return u, nil
}

func (s *Session) cacheUser(u *User) {
	s.usersMu.Lock()
	s.users[u.UUID] = u
	s.usersMu.Unlock()
}
