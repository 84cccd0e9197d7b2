package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
)

type SessionState int

const (
	StateAwaitingClients SessionState = iota
	StateActive
	StateTerminated
)

// SessionParams are the typed construction parameters for a session. Lifecycle
// callbacks default to no-ops.
type SessionParams struct {
	ID          int64
	Initiator   string
	Connected   string
	Ranked      bool
	Engine      Engine
	JoinTimeout time.Duration

	OnStarted   func(*Session)
	OnStopped   func(*Session)
	OnMatchOver func(winner, loser string)
}

// Session is the per-match state machine. It holds the two clients, delegates
// move legality to the engine, relays validated moves, supervises the join
// timeout and reports lifecycle transitions through its callbacks.
//
// All message handling for one session is serialized on its mutex, so at most
// one move is validated against a given pre-move state. Lifecycle callbacks
// run outside the mutex and may safely call back into the session.
type Session struct {
	id        int64
	initiator string
	connected string
	ranked    bool
	engine    Engine
	logger    *slog.Logger

	onStarted   func(*Session)
	onStopped   func(*Session)
	onMatchOver func(winner, loser string)

	mu              sync.Mutex
	state           SessionState
	initiatorClient *Client
	connectedClient *Client
	joinTimer       *time.Timer
}

func NewSession(logger *slog.Logger, params SessionParams) *Session {
	session := &Session{
		id:        params.ID,
		initiator: params.Initiator,
		connected: params.Connected,
		ranked:    params.Ranked,
		engine:    params.Engine,
		logger:    logger.With("component", "session", "gameID", params.ID),

		onStarted:   params.OnStarted,
		onStopped:   params.OnStopped,
		onMatchOver: params.OnMatchOver,

		state: StateAwaitingClients,
	}

	session.joinTimer = time.AfterFunc(params.JoinTimeout, session.joinTimedOut)

	return session
}

func (that *Session) ID() int64 { return that.id }

func (that *Session) Initiator() string { return that.initiator }

func (that *Session) Connected() string { return that.connected }

func (that *Session) Ranked() bool { return that.ranked }

func (that *Session) State() SessionState {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// InitClient binds an inbound connection to one of the session's two known
// identities. An unknown identity is rejected and its connection closed; the
// session does not change state.
func (that *Session) InitClient(login string, conn Transport) error {
	that.mu.Lock()

	if that.state == StateTerminated {
		that.mu.Unlock()
		_ = conn.Close(PayloadSessionStopped)
		return apperror.ErrSessionTerminated
	}

	if that.state == StateActive {
		that.mu.Unlock()
		_ = conn.Close(PayloadSessionStopped)
		return apperror.ErrGameAlreadyStarted
	}

	switch login {
	case that.initiator:
		that.initiatorClient = &Client{Login: login, Conn: conn}
	case that.connected:
		that.connectedClient = &Client{Login: login, Conn: conn}
	default:
		that.mu.Unlock()
		_ = conn.Close(PayloadNoSuchPlayer)
		return apperror.ErrNoSuchPlayer
	}

	started := that.tryStartLocked()
	that.mu.Unlock()

	if started != nil {
		started()
	}

	return nil
}

// HandleMessage processes one inbound message from a bound client, dispatched
// by type. Messages arriving outside the Active state are dropped.
func (that *Session) HandleMessage(login string, msg Message) {
	log := that.logger.With("method", "HandleMessage")

	var after []func()

	that.mu.Lock()

	if that.state != StateActive {
		that.mu.Unlock()
		return
	}

	client := that.clientLocked(login)
	other := that.otherClientLocked(login)
	if client == nil || other == nil {
		that.mu.Unlock()
		log.Error("message from unbound identity", "login", login)
		return
	}

	switch msg.Type {
	case MessageMove:
		after = that.processMoveLocked(client, other, msg)
	case MessageDisconnect:
		if err := other.Send(Message{Type: MessageDisconnect, Payload: PayloadOpponentDisconnected}); err != nil {
			log.Error("failed to notify opponent about disconnect", "error", err)
		}
		after = append(after, that.stopLocked())
	default:
		log.Info("ignoring message", "type", msg.Type, "payload", msg.Payload)
	}

	that.mu.Unlock()

	for _, fn := range after {
		if fn != nil {
			fn()
		}
	}
}

// Stop terminates the session from outside the message flow, e.g. when a
// transport breaks without a disconnect message. Safe to call concurrently
// with any other trigger; teardown runs at most once.
func (that *Session) Stop() {
	that.mu.Lock()
	stopped := that.stopLocked()
	that.mu.Unlock()

	if stopped != nil {
		stopped()
	}
}

func (that *Session) processMoveLocked(client, other *Client, msg Message) []func() {
	log := that.logger.With("method", "processMove")

	move, err := that.engine.Decode(msg.Payload)
	if err == nil {
		move, err = that.engine.Resolve(move, client.Login)
	}

	if err != nil || !that.engine.Validate(move) {
		if err != nil {
			log.Info("rejected move", "login", client.Login, "error", err)
		}
		if sendErr := client.Send(Message{Type: MessageError, Payload: PayloadInvalidMove}); sendErr != nil {
			log.Error("failed to report invalid move", "error", sendErr)
		}
		return nil
	}

	// relay the original message verbatim, then apply
	if err = other.Send(msg); err != nil {
		log.Error("failed to relay move", "error", err)
	}

	if err = that.engine.Apply(move); err != nil {
		log.Error("failed to apply validated move", "error", err)
		return nil
	}

	if !that.ranked {
		return nil
	}

	var winner, loser string
	switch {
	case that.engine.ConnectedLost():
		winner, loser = that.initiator, that.connected
	case that.engine.InitiatorLost():
		winner, loser = that.connected, that.initiator
	default:
		return nil
	}

	matchOver := func() {
		if that.onMatchOver != nil {
			that.onMatchOver(winner, loser)
		}
	}

	return []func(){matchOver, that.stopLocked()}
}

// tryStartLocked transitions to Active once both clients are bound and returns
// the started callback to run outside the lock, or nil if not started.
func (that *Session) tryStartLocked() func() {
	if that.state != StateAwaitingClients {
		return nil
	}
	if that.initiatorClient == nil || that.connectedClient == nil {
		return nil
	}

	that.state = StateActive
	that.joinTimer.Stop()

	started := Message{Type: MessageGameEvent, Payload: PayloadGameStarted}
	for _, client := range []*Client{that.initiatorClient, that.connectedClient} {
		if err := client.Send(started); err != nil {
			that.logger.Error("failed to send game started", "login", client.Login, "error", err)
		}
	}

	return func() {
		if that.onStarted != nil {
			that.onStarted(that)
		}
	}
}

// stopLocked transitions to Terminated, notifies and closes both bound
// clients, and returns the stopped callback to run outside the lock. A second
// call returns nil, which keeps teardown idempotent under concurrent triggers.
func (that *Session) stopLocked() func() {
	if that.state == StateTerminated {
		return nil
	}

	that.state = StateTerminated
	that.joinTimer.Stop()

	notice := Message{Type: MessageGameEvent, Payload: PayloadSessionStopped}
	for _, client := range []*Client{that.initiatorClient, that.connectedClient} {
		if client == nil {
			continue
		}
		if err := client.Send(notice); err != nil {
			that.logger.Debug("failed to send stop notice", "login", client.Login, "error", err)
		}
		if err := client.Close(PayloadSessionStopped); err != nil {
			that.logger.Debug("failed to close client channel", "login", client.Login, "error", err)
		}
	}

	return func() {
		if that.onStopped != nil {
			that.onStopped(that)
		}
	}
}

// joinTimedOut fires once the join timeout elapses. A session that reached
// Active before the timer fired is left untouched.
func (that *Session) joinTimedOut() {
	that.mu.Lock()

	if that.state != StateAwaitingClients {
		that.mu.Unlock()
		return
	}

	that.logger.Info("join timeout expired")
	stopped := that.stopLocked()
	that.mu.Unlock()

	if stopped != nil {
		stopped()
	}
}

func (that *Session) clientLocked(login string) *Client {
	switch {
	case that.initiatorClient != nil && that.initiatorClient.Login == login:
		return that.initiatorClient
	case that.connectedClient != nil && that.connectedClient.Login == login:
		return that.connectedClient
	default:
		return nil
	}
}

func (that *Session) otherClientLocked(login string) *Client {
	switch {
	case that.initiatorClient != nil && that.initiatorClient.Login == login:
		return that.connectedClient
	case that.connectedClient != nil && that.connectedClient.Login == login:
		return that.initiatorClient
	default:
		return nil
	}
}
