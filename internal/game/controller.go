package game

import (
	"log/slog"
	"math/rand"
	"sync"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
)

// Game ids are 6-digit integers shared between waiting games and sessions.
const (
	GameIDFrom  = 100000
	GameIDUntil = 999999
)

// SessionController owns the two live-game registries: id -> waiting game and
// id -> session. The registries are disjoint; an id moves from the first to
// the second exactly once, on promotion. Every mutation fans out one event to
// the registered observers.
type SessionController struct {
	logger *slog.Logger

	mu       sync.Mutex
	waiting  map[int64]*WaitingGame
	sessions map[int64]*Session
	reserved map[int64]struct{}

	observers observerList[Observer]
}

func NewSessionController(logger *slog.Logger) *SessionController {
	return &SessionController{
		logger:   logger.With("component", "session_controller"),
		waiting:  make(map[int64]*WaitingGame),
		sessions: make(map[int64]*Session),
		reserved: make(map[int64]struct{}),
	}
}

func (that *SessionController) AddObserver(observer Observer) {
	that.observers.Add(observer)
}

func (that *SessionController) RemoveObserver(observer Observer) {
	that.observers.Remove(observer)
}

// NewID generates a game id that is unique across all currently live waiting
// games, sessions and ids handed out but not yet registered, retrying on
// collision. The reservation is consumed by registration; a caller that
// aborts before registering must release it with ReleaseID.
func (that *SessionController) NewID() int64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	for {
		id := GameIDFrom + rand.Int63n(GameIDUntil-GameIDFrom+1) //nolint:gosec // ids are not secrets
		if _, ok := that.waiting[id]; ok {
			continue
		}
		if _, ok := that.sessions[id]; ok {
			continue
		}
		if _, ok := that.reserved[id]; ok {
			continue
		}
		that.reserved[id] = struct{}{}
		return id
	}
}

// ReleaseID frees a reserved id that will never be registered.
func (that *SessionController) ReleaseID(id int64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.reserved, id)
}

func (that *SessionController) AddWaitingGame(waitingGame *WaitingGame) {
	that.mu.Lock()
	delete(that.reserved, waitingGame.ID)
	that.waiting[waitingGame.ID] = waitingGame
	that.mu.Unlock()

	that.logger.Info("waiting game created", "gameID", waitingGame.ID, "initiator", waitingGame.Initiator.Login)
	that.observers.Notify(func(observer Observer) { observer.OnWaitingGameCreated(waitingGame) })
}

// PromoteToSession replaces the waiting game holding the session's id with the
// session itself. It fails if the waiting game is no longer registered, which
// happens when a join races a timeout.
func (that *SessionController) PromoteToSession(session *Session) error {
	that.mu.Lock()
	if _, ok := that.waiting[session.ID()]; !ok {
		that.mu.Unlock()
		return apperror.ErrGameNotFound
	}
	delete(that.waiting, session.ID())
	that.sessions[session.ID()] = session
	that.mu.Unlock()

	that.logger.Info("game session initialized", "gameID", session.ID())
	that.observers.Notify(func(observer Observer) { observer.OnGameSessionInitialized(session) })

	return nil
}

// RegisterSession registers a session that has no waiting-game stage, i.e. one
// constructed by matchmaking.
func (that *SessionController) RegisterSession(session *Session) {
	that.mu.Lock()
	delete(that.reserved, session.ID())
	that.sessions[session.ID()] = session
	that.mu.Unlock()

	that.logger.Info("game session initialized", "gameID", session.ID(), "ranked", session.Ranked())
	that.observers.Notify(func(observer Observer) { observer.OnGameSessionInitialized(session) })
}

// RemoveSession drops a terminated session from the registry, freeing its id
// for reuse. Removing an unknown session is a no-op fan-out-wise.
func (that *SessionController) RemoveSession(session *Session) {
	that.mu.Lock()
	_, ok := that.sessions[session.ID()]
	delete(that.sessions, session.ID())
	that.mu.Unlock()

	if !ok {
		return
	}

	that.logger.Info("game session stopped", "gameID", session.ID())
	that.observers.Notify(func(observer Observer) { observer.OnGameSessionStopped(session) })
}

// RemoveWaitingGame drops a timed-out waiting game. It reports false when the
// game was already promoted or removed, so a stale timer is a safe no-op.
func (that *SessionController) RemoveWaitingGame(waitingGame *WaitingGame) bool {
	that.mu.Lock()
	_, ok := that.waiting[waitingGame.ID]
	delete(that.waiting, waitingGame.ID)
	that.mu.Unlock()

	if !ok {
		return false
	}

	that.logger.Info("waiting game timed out", "gameID", waitingGame.ID)
	that.observers.Notify(func(observer Observer) { observer.OnWaitingGameTimedOut(waitingGame) })

	return true
}

func (that *SessionController) WaitingGame(id int64) (*WaitingGame, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	waitingGame, ok := that.waiting[id]

	return waitingGame, ok
}

func (that *SessionController) Session(id int64) (*Session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]

	return session, ok
}

func (that *SessionController) WaitingGames() []*WaitingGame {
	that.mu.Lock()
	defer that.mu.Unlock()

	games := make([]*WaitingGame, 0, len(that.waiting))
	for _, waitingGame := range that.waiting {
		games = append(games, waitingGame)
	}

	return games
}

func (that *SessionController) Sessions() []*Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	sessions := make([]*Session, 0, len(that.sessions))
	for _, session := range that.sessions {
		sessions = append(sessions, session)
	}

	return sessions
}
