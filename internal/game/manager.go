package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
)

type scoreRepository interface {
	GetScore(ctx context.Context, login string) (int, error)
	IncrementScore(ctx context.Context, login string) error
	DecrementScore(ctx context.Context, login string) error
}

// Config groups the manager's orchestration knobs. RankedBoard is the battle
// setup used for matchmade sessions, where no initiator picks one.
type Config struct {
	JoinTimeout     time.Duration
	MatchingTimeout time.Duration
	ScoreWindow     int
	RankedBoard     BoardConfig
}

// Manager is the facade the rest of the server talks to: it creates games,
// promotes joins, runs matchmaking enqueues and converts pairings into ranked
// sessions whose outcomes update persisted scores.
type Manager struct {
	logger     *slog.Logger
	conf       Config
	controller *SessionController
	matchmaker *Matchmaker
	scores     scoreRepository
	newEngine  EngineFactory

	matchObservers observerList[MatchObserver]
}

func NewManager(logger *slog.Logger, conf Config, controller *SessionController, scores scoreRepository, newEngine EngineFactory) *Manager {
	manager := &Manager{
		logger:     logger.With("component", "game_manager"),
		conf:       conf,
		controller: controller,
		scores:     scores,
		newEngine:  newEngine,
	}

	manager.matchmaker = NewMatchmaker(logger, MatchmakerConfig{
		ScoreWindow: conf.ScoreWindow,
		Timeout:     conf.MatchingTimeout,
	}, manager.startMatchedSession)

	return manager
}

// CreateGame registers a waiting game slot owned by the initiator's live
// connection. The slot times out unless a second player joins in time.
func (that *Manager) CreateGame(login string, conn Transport, cfg BoardConfig) (*WaitingGame, error) {
	waitingGame := &WaitingGame{
		ID:        that.controller.NewID(),
		Initiator: &Client{Login: login, Conn: conn},
		Config:    cfg,
		CreatedAt: time.Now(),
		promoted:  make(chan *Session, 1),
	}
	waitingGame.timer = time.AfterFunc(that.conf.JoinTimeout, func() { that.waitingGameTimedOut(waitingGame) })

	that.controller.AddWaitingGame(waitingGame)

	return waitingGame, nil
}

// JoinGame promotes a waiting game into a session between its initiator and
// the joining player, binding both connections. A join that races the waiting
// game's timeout loses cleanly with ErrGameNotFound.
func (that *Manager) JoinGame(id int64, login string, conn Transport) (*Session, error) {
	waitingGame, ok := that.controller.WaitingGame(id)
	if !ok {
		return nil, fmt.Errorf("%w: id %d", apperror.ErrGameNotFound, id)
	}

	if login == waitingGame.Initiator.Login {
		return nil, apperror.ErrOwnGame
	}

	engine, err := that.newEngine(waitingGame.Config, waitingGame.Initiator.Login, login)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule engine: %w", err)
	}

	session := NewSession(that.logger, SessionParams{
		ID:          waitingGame.ID,
		Initiator:   waitingGame.Initiator.Login,
		Connected:   login,
		Engine:      engine,
		JoinTimeout: that.conf.JoinTimeout,
		OnStopped:   that.sessionStopped,
	})

	if err = that.controller.PromoteToSession(session); err != nil {
		return nil, fmt.Errorf("failed to promote waiting game: %w", err)
	}

	waitingGame.timer.Stop()

	if err = session.InitClient(waitingGame.Initiator.Login, waitingGame.Initiator.Conn); err != nil {
		that.logger.Error("failed to bind initiator", "gameID", session.ID(), "error", err)
	}
	if err = session.InitClient(login, conn); err != nil {
		// the slot is already promoted, so tear the session down and release
		// the initiator's pending channel
		session.Stop()
		waitingGame.abandon()
		return nil, fmt.Errorf("failed to bind joining player: %w", err)
	}

	waitingGame.resolve(session)

	return session, nil
}

// CancelGame withdraws a waiting game whose initiator went away before a
// second player joined. It reports false when a join already promoted the
// slot, in which case the session owns both clients.
func (that *Manager) CancelGame(waitingGame *WaitingGame) bool {
	if !that.controller.RemoveWaitingGame(waitingGame) {
		return false
	}

	waitingGame.timer.Stop()
	waitingGame.abandon()

	return true
}

// EnqueueForMatch looks up the player's score and hands it to the matchmaker.
// The returned channel delivers the ranked session once paired and is closed
// without a value on timeout or cancellation.
func (that *Manager) EnqueueForMatch(ctx context.Context, login string, conn Transport) (<-chan *Session, error) {
	score, err := that.scores.GetScore(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to get user score: %w", err)
	}

	user := &MatchingUser{
		Login:  login,
		Client: &Client{Login: login, Conn: conn},
		Score:  score,
		paired: make(chan *Session, 1),
	}

	if err = that.matchmaker.Enqueue(user); err != nil {
		return nil, fmt.Errorf("failed to enqueue user: %w", err)
	}

	return user.Paired(), nil
}

// CancelMatch removes the player from the matchmaking queue. It reports false
// when the player was not queued anymore, which after a successful enqueue
// means a pairing or timeout already settled the pending channel.
func (that *Manager) CancelMatch(login string) bool {
	user := that.matchmaker.Cancel(login)
	if user == nil {
		return false
	}

	user.abandon()

	return true
}

func (that *Manager) WaitingGames() []*WaitingGame {
	return that.controller.WaitingGames()
}

func (that *Manager) SessionByID(id int64) (*Session, bool) {
	return that.controller.Session(id)
}

func (that *Manager) AddObserver(observer Observer) {
	that.controller.AddObserver(observer)
}

func (that *Manager) RemoveObserver(observer Observer) {
	that.controller.RemoveObserver(observer)
}

func (that *Manager) AddMatchObserver(observer MatchObserver) {
	that.matchObservers.Add(observer)
}

func (that *Manager) RemoveMatchObserver(observer MatchObserver) {
	that.matchObservers.Remove(observer)
}

// startMatchedSession converts a pairing into a registered ranked session and
// binds both queued connections.
func (that *Manager) startMatchedSession(initiator, connected *MatchingUser) {
	log := that.logger.With("method", "startMatchedSession")

	matchingGame := &MatchingGame{
		ID:        that.controller.NewID(),
		Initiator: initiator,
		Connected: connected,
	}

	that.matchObservers.Notify(func(observer MatchObserver) { observer.OnNewMatchingGame(matchingGame) })

	engine, err := that.newEngine(that.conf.RankedBoard, initiator.Login, connected.Login)
	if err != nil {
		log.Error("failed to build rule engine for matched session", "error", err)
		that.controller.ReleaseID(matchingGame.ID)
		for _, user := range []*MatchingUser{initiator, connected} {
			_ = user.Client.Close(PayloadSessionStopped)
			user.abandon()
		}
		return
	}

	session := NewSession(that.logger, SessionParams{
		ID:          matchingGame.ID,
		Initiator:   initiator.Login,
		Connected:   connected.Login,
		Ranked:      true,
		Engine:      engine,
		JoinTimeout: that.conf.JoinTimeout,
		OnStopped:   that.sessionStopped,
		OnMatchOver: that.matchOver,
	})

	that.controller.RegisterSession(session)

	if err = session.InitClient(initiator.Login, initiator.Client.Conn); err != nil {
		log.Error("failed to bind match initiator", "gameID", session.ID(), "error", err)
	}
	if err = session.InitClient(connected.Login, connected.Client.Conn); err != nil {
		log.Error("failed to bind matched player", "gameID", session.ID(), "error", err)
	}

	initiator.resolve(session)
	connected.resolve(session)

	that.matchObservers.Notify(func(observer MatchObserver) { observer.OnMatchingGameStop(matchingGame) })
}

func (that *Manager) sessionStopped(session *Session) {
	that.controller.RemoveSession(session)
}

// matchOver settles a ranked result: winner gains a point, loser drops one.
func (that *Manager) matchOver(winner, loser string) {
	log := that.logger.With("method", "matchOver")
	ctx := context.Background()

	if err := that.scores.IncrementScore(ctx, winner); err != nil {
		log.Error("failed to increment winner score", "login", winner, "error", err)
	}
	if err := that.scores.DecrementScore(ctx, loser); err != nil {
		log.Error("failed to decrement loser score", "login", loser, "error", err)
	}
}

// waitingGameTimedOut fires when no second player joined in time. Losing the
// race against a concurrent join is a no-op.
func (that *Manager) waitingGameTimedOut(waitingGame *WaitingGame) {
	if !that.controller.RemoveWaitingGame(waitingGame) {
		return
	}

	if err := waitingGame.Initiator.Send(Message{Type: MessageTimeout, Payload: PayloadTimeout}); err != nil {
		that.logger.Debug("failed to send waiting game timeout", "gameID", waitingGame.ID, "error", err)
	}
	if err := waitingGame.Initiator.Close(PayloadTimeout); err != nil {
		that.logger.Debug("failed to close waiting game initiator channel", "gameID", waitingGame.ID, "error", err)
	}

	waitingGame.abandon()
}
