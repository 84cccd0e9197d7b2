package game

import "sync"

// Observer receives session-registry lifecycle events. Implementations embed
// NopObserver and override only what they need.
type Observer interface {
	OnWaitingGameCreated(waitingGame *WaitingGame)
	OnGameSessionInitialized(session *Session)
	OnGameSessionStopped(session *Session)
	OnWaitingGameTimedOut(waitingGame *WaitingGame)
}

type NopObserver struct{}

func (NopObserver) OnWaitingGameCreated(*WaitingGame)  {}
func (NopObserver) OnGameSessionInitialized(*Session)  {}
func (NopObserver) OnGameSessionStopped(*Session)      {}
func (NopObserver) OnWaitingGameTimedOut(*WaitingGame) {}

// MatchObserver receives matchmaking pairing events.
type MatchObserver interface {
	OnNewMatchingGame(matchingGame *MatchingGame)
	OnMatchingGameStop(matchingGame *MatchingGame)
}

type NopMatchObserver struct{}

func (NopMatchObserver) OnNewMatchingGame(*MatchingGame)  {}
func (NopMatchObserver) OnMatchingGameStop(*MatchingGame) {}

// observerList is a registration table with deferred removal: a removal
// requested while a fan-out pass is running does not affect that pass but
// takes effect before the next one.
type observerList[T comparable] struct {
	mu      sync.Mutex
	active  []T
	pending []T
	fanouts int
}

func (that *observerList[T]) Add(observer T) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.active = append(that.active, observer)
}

func (that *observerList[T]) Remove(observer T) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.fanouts > 0 {
		that.pending = append(that.pending, observer)
		return
	}

	that.remove(observer)
}

// Notify delivers one event to every observer registered at the start of the
// pass.
func (that *observerList[T]) Notify(event func(T)) {
	that.mu.Lock()
	that.fanouts++
	snapshot := make([]T, len(that.active))
	copy(snapshot, that.active)
	that.mu.Unlock()

	for _, observer := range snapshot {
		event(observer)
	}

	that.mu.Lock()
	that.fanouts--
	if that.fanouts == 0 {
		for _, observer := range that.pending {
			that.remove(observer)
		}
		that.pending = nil
	}
	that.mu.Unlock()
}

func (that *observerList[T]) remove(observer T) {
	for i, existing := range that.active {
		if existing == observer {
			that.active = append(that.active[:i], that.active[i+1:]...)
			return
		}
	}
}
