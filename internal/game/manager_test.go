package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
)

// fakeScores keeps scores in memory and records rating adjustments.
type fakeScores struct {
	mu          sync.Mutex
	scores      map[string]int
	incremented []string
	decremented []string
}

func newFakeScores() *fakeScores {
	return &fakeScores{scores: make(map[string]int)}
}

func (that *fakeScores) GetScore(_ context.Context, login string) (int, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.scores[login], nil
}

func (that *fakeScores) IncrementScore(_ context.Context, login string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.scores[login]++
	that.incremented = append(that.incremented, login)

	return nil
}

func (that *fakeScores) DecrementScore(_ context.Context, login string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.scores[login]--
	that.decremented = append(that.decremented, login)

	return nil
}

func (that *fakeScores) Adjustments() (incremented, decremented []string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.incremented...), append([]string(nil), that.decremented...)
}

// recordingMatchObserver collects pairing events.
type recordingMatchObserver struct {
	mu      sync.Mutex
	started []*MatchingGame
	stopped []*MatchingGame
}

func (that *recordingMatchObserver) OnNewMatchingGame(matchingGame *MatchingGame) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.started = append(that.started, matchingGame)
}

func (that *recordingMatchObserver) OnMatchingGameStop(matchingGame *MatchingGame) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopped = append(that.stopped, matchingGame)
}

func (that *recordingMatchObserver) Counts() (started, stopped int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.started), len(that.stopped)
}

type managerFixture struct {
	manager *Manager
	scores  *fakeScores
	engines []*fakeEngine
}

func newManagerFixture(t *testing.T, conf Config) *managerFixture {
	t.Helper()

	if conf.JoinTimeout == 0 {
		conf.JoinTimeout = time.Minute
	}
	if conf.MatchingTimeout == 0 {
		conf.MatchingTimeout = time.Minute
	}
	if conf.ScoreWindow == 0 {
		conf.ScoreWindow = 5
	}

	fixture := &managerFixture{scores: newFakeScores()}

	factory := func(BoardConfig, string, string) (Engine, error) {
		engine := &fakeEngine{valid: true}
		fixture.engines = append(fixture.engines, engine)
		return engine, nil
	}

	logger := discardLogger()
	fixture.manager = NewManager(logger, conf, NewSessionController(logger), fixture.scores, factory)

	return fixture
}

func TestManager_CreateAndJoin(t *testing.T) {
	t.Run("join promotes the waiting game and starts the session", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		aliceConn := &fakeTransport{}
		bobConn := &fakeTransport{}

		waitingGame, err := fixture.manager.CreateGame("alice", aliceConn, BoardConfig{Height: 8, Width: 8})
		require.NoError(t, err)
		require.Len(t, fixture.manager.WaitingGames(), 1)

		// When
		session, err := fixture.manager.JoinGame(waitingGame.ID, "bob", bobConn)

		// Then
		require.NoError(t, err)
		assert.Equal(t, StateActive, session.State())
		assert.Equal(t, "alice", session.Initiator())
		assert.Equal(t, "bob", session.Connected())
		assert.False(t, session.Ranked())
		assert.Empty(t, fixture.manager.WaitingGames())
		assert.True(t, aliceConn.Received(MessageGameEvent, PayloadGameStarted))
		assert.True(t, bobConn.Received(MessageGameEvent, PayloadGameStarted))

		// And the initiator's pending channel receives the session.
		select {
		case got := <-waitingGame.Promoted():
			assert.Same(t, session, got)
		default:
			t.Fatal("promotion was not delivered to the initiator")
		}
	})

	t.Run("moves flow between the joined players", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		aliceConn := &fakeTransport{}
		bobConn := &fakeTransport{}

		waitingGame, err := fixture.manager.CreateGame("alice", aliceConn, BoardConfig{})
		require.NoError(t, err)
		session, err := fixture.manager.JoinGame(waitingGame.ID, "bob", bobConn)
		require.NoError(t, err)

		// When
		session.HandleMessage("alice", Message{Type: MessageMove, Payload: `{"type":"ADD"}`})

		// Then
		assert.True(t, bobConn.Received(MessageMove, `{"type":"ADD"}`))
		require.Len(t, fixture.engines, 1)
		assert.Equal(t, 1, fixture.engines[0].AppliedCount())
	})

	t.Run("joining an unknown game fails", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})

		// When
		_, err := fixture.manager.JoinGame(999999, "bob", &fakeTransport{})

		// Then
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})

	t.Run("the initiator cannot join its own game", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		waitingGame, err := fixture.manager.CreateGame("alice", &fakeTransport{}, BoardConfig{})
		require.NoError(t, err)

		// When
		_, err = fixture.manager.JoinGame(waitingGame.ID, "alice", &fakeTransport{})

		// Then
		require.ErrorIs(t, err, apperror.ErrOwnGame)
		assert.Len(t, fixture.manager.WaitingGames(), 1)
	})

	t.Run("cancelling a waiting game frees the slot", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		waitingGame, err := fixture.manager.CreateGame("alice", &fakeTransport{}, BoardConfig{})
		require.NoError(t, err)

		// When
		require.True(t, fixture.manager.CancelGame(waitingGame))

		// Then
		assert.Empty(t, fixture.manager.WaitingGames())
		select {
		case session, ok := <-waitingGame.Promoted():
			assert.False(t, ok)
			assert.Nil(t, session)
		default:
			t.Fatal("cancel did not close the pending channel")
		}

		_, err = fixture.manager.JoinGame(waitingGame.ID, "bob", &fakeTransport{})
		require.ErrorIs(t, err, apperror.ErrGameNotFound)

		// And cancelling again is a no-op.
		assert.False(t, fixture.manager.CancelGame(waitingGame))
	})

	t.Run("cancelling after a join reports the promotion", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		waitingGame, err := fixture.manager.CreateGame("alice", &fakeTransport{}, BoardConfig{})
		require.NoError(t, err)
		session, err := fixture.manager.JoinGame(waitingGame.ID, "bob", &fakeTransport{})
		require.NoError(t, err)

		// When
		cancelled := fixture.manager.CancelGame(waitingGame)

		// Then
		assert.False(t, cancelled)
		assert.Equal(t, StateActive, session.State())
	})

	t.Run("session stop removes it from the registry", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		waitingGame, err := fixture.manager.CreateGame("alice", &fakeTransport{}, BoardConfig{})
		require.NoError(t, err)
		session, err := fixture.manager.JoinGame(waitingGame.ID, "bob", &fakeTransport{})
		require.NoError(t, err)

		// When
		session.Stop()

		// Then
		_, ok := fixture.manager.SessionByID(session.ID())
		assert.False(t, ok)
	})
}

func TestManager_WaitingGameTimeout(t *testing.T) {
	t.Run("notifies the initiator and frees the slot", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{JoinTimeout: 20 * time.Millisecond})
		aliceConn := &fakeTransport{}

		waitingGame, err := fixture.manager.CreateGame("alice", aliceConn, BoardConfig{})
		require.NoError(t, err)

		// Then
		select {
		case session, ok := <-waitingGame.Promoted():
			assert.False(t, ok)
			assert.Nil(t, session)
		case <-time.After(time.Second):
			t.Fatal("waiting game timeout never fired")
		}
		assert.True(t, aliceConn.Received(MessageTimeout, PayloadTimeout))
		assert.Equal(t, 1, aliceConn.CloseCount())
		assert.Empty(t, fixture.manager.WaitingGames())

		// And a late join finds nothing.
		_, err = fixture.manager.JoinGame(waitingGame.ID, "bob", &fakeTransport{})
		require.ErrorIs(t, err, apperror.ErrGameNotFound)
	})
}

func TestManager_Matchmaking(t *testing.T) {
	enqueue := func(t *testing.T, fixture *managerFixture, login string) (<-chan *Session, *fakeTransport) {
		t.Helper()

		conn := &fakeTransport{}
		sessions, err := fixture.manager.EnqueueForMatch(context.Background(), login, conn)
		require.NoError(t, err)

		return sessions, conn
	}

	t.Run("a pairing yields one ranked session for both users", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		observer := &recordingMatchObserver{}
		fixture.manager.AddMatchObserver(observer)

		aliceSessions, aliceConn := enqueue(t, fixture, "alice")
		bobSessions, bobConn := enqueue(t, fixture, "bob")

		// Then
		var aliceSession, bobSession *Session
		select {
		case aliceSession = <-aliceSessions:
		case <-time.After(time.Second):
			t.Fatal("alice never got a session")
		}
		select {
		case bobSession = <-bobSessions:
		case <-time.After(time.Second):
			t.Fatal("bob never got a session")
		}

		require.Same(t, aliceSession, bobSession)
		assert.True(t, aliceSession.Ranked())
		assert.Equal(t, StateActive, aliceSession.State())
		assert.Equal(t, "alice", aliceSession.Initiator())
		assert.Equal(t, "bob", aliceSession.Connected())
		assert.True(t, aliceConn.Received(MessageGameEvent, PayloadGameStarted))
		assert.True(t, bobConn.Received(MessageGameEvent, PayloadGameStarted))

		started, stopped := observer.Counts()
		assert.Equal(t, 1, started)
		assert.Equal(t, 1, stopped)
	})

	t.Run("a ranked outcome adjusts both scores", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		aliceSessions, _ := enqueue(t, fixture, "alice")
		enqueue(t, fixture, "bob")

		session := <-aliceSessions
		require.Len(t, fixture.engines, 1)
		fixture.engines[0].SetConnectedLost(true)

		// When: the winning move ends the match.
		session.HandleMessage("alice", Message{Type: MessageMove, Payload: "{}"})

		// Then
		incremented, decremented := fixture.scores.Adjustments()
		assert.Equal(t, []string{"alice"}, incremented)
		assert.Equal(t, []string{"bob"}, decremented)
		assert.Equal(t, StateTerminated, session.State())
		_, ok := fixture.manager.SessionByID(session.ID())
		assert.False(t, ok)
	})

	t.Run("distant scores wait instead of pairing", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{ScoreWindow: 2})
		fixture.scores.scores["strong"] = 50

		// When
		weakSessions, _ := enqueue(t, fixture, "weak")
		strongSessions, _ := enqueue(t, fixture, "strong")

		// Then
		select {
		case <-weakSessions:
			t.Fatal("players outside the score window were paired")
		case <-strongSessions:
			t.Fatal("players outside the score window were paired")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancelling closes the pending channel", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		sessions, _ := enqueue(t, fixture, "alice")

		// When
		require.True(t, fixture.manager.CancelMatch("alice"))

		// Then
		select {
		case session, ok := <-sessions:
			assert.False(t, ok)
			assert.Nil(t, session)
		case <-time.After(time.Second):
			t.Fatal("cancel did not close the pending channel")
		}

		// A cancelled user can queue again.
		_, err := fixture.manager.EnqueueForMatch(context.Background(), "alice", &fakeTransport{})
		require.NoError(t, err)
	})

	t.Run("cancelling after a pairing reports the handoff", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		aliceSessions, _ := enqueue(t, fixture, "alice")
		enqueue(t, fixture, "bob")
		session := <-aliceSessions

		// When
		cancelled := fixture.manager.CancelMatch("alice")

		// Then
		assert.False(t, cancelled)
		assert.Equal(t, StateActive, session.State())
	})

	t.Run("double enqueue is rejected", func(t *testing.T) {
		// Given
		fixture := newManagerFixture(t, Config{})
		enqueue(t, fixture, "alice")

		// When
		_, err := fixture.manager.EnqueueForMatch(context.Background(), "alice", &fakeTransport{})

		// Then
		require.ErrorIs(t, err, apperror.ErrAlreadyQueued)
	})
}
