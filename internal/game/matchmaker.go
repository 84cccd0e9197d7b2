package game

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
)

// PairHandler receives both users of a fresh pairing after they have been
// removed from their buckets. The longer-waiting user comes first and becomes
// the match initiator.
type PairHandler func(initiator, connected *MatchingUser)

// MatchmakerConfig bounds the pairing search and the per-user queue timeout.
type MatchmakerConfig struct {
	ScoreWindow int
	Timeout     time.Duration
}

// Matchmaker maintains FIFO queues of anonymous users bucketed by score. Each
// queued user appears in exactly one bucket and carries one pending timeout.
type Matchmaker struct {
	logger *slog.Logger
	conf   MatchmakerConfig
	onPair PairHandler

	mu      sync.Mutex
	buckets map[int][]*MatchingUser
	timers  map[string]*time.Timer
}

func NewMatchmaker(logger *slog.Logger, conf MatchmakerConfig, onPair PairHandler) *Matchmaker {
	return &Matchmaker{
		logger:  logger.With("component", "matchmaker"),
		conf:    conf,
		onPair:  onPair,
		buckets: make(map[int][]*MatchingUser),
		timers:  make(map[string]*time.Timer),
	}
}

// Enqueue pairs the user with the closest waiting user inside the score
// window, or queues it in its exact-score bucket with a timeout. The scan
// order is deterministic: exact score first, then offsets in increasing
// distance, +offset before -offset.
func (that *Matchmaker) Enqueue(user *MatchingUser) error {
	that.mu.Lock()

	if _, ok := that.timers[user.Login]; ok {
		that.mu.Unlock()
		return apperror.ErrAlreadyQueued
	}

	partner := that.takePartnerLocked(user.Score)
	if partner == nil {
		that.buckets[user.Score] = append(that.buckets[user.Score], user)
		that.timers[user.Login] = time.AfterFunc(that.conf.Timeout, func() { that.userTimedOut(user) })
		that.mu.Unlock()

		that.logger.Info("user queued for matching", "login", user.Login, "score", user.Score)
		return nil
	}

	that.stopTimerLocked(partner.Login)
	that.mu.Unlock()

	that.logger.Info("matched users", "initiator", partner.Login, "connected", user.Login)
	that.onPair(partner, user)

	return nil
}

// Cancel removes a user from whichever bucket currently holds it and returns
// the removed entry, or nil if the user was not queued.
func (that *Matchmaker) Cancel(login string) *MatchingUser {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stopTimerLocked(login)

	for score, bucket := range that.buckets {
		for i, queued := range bucket {
			if queued.Login != login {
				continue
			}
			that.deleteLocked(score, i)
			return queued
		}
	}

	return nil
}

func (that *Matchmaker) takePartnerLocked(score int) *MatchingUser {
	if user := that.popLocked(score); user != nil {
		return user
	}
	for offset := 1; offset <= that.conf.ScoreWindow; offset++ {
		if user := that.popLocked(score + offset); user != nil {
			return user
		}
		if user := that.popLocked(score - offset); user != nil {
			return user
		}
	}
	return nil
}

// popLocked removes and returns the longest-waiting user of a bucket.
func (that *Matchmaker) popLocked(score int) *MatchingUser {
	bucket := that.buckets[score]
	if len(bucket) == 0 {
		return nil
	}

	user := bucket[0]
	that.deleteLocked(score, 0)

	return user
}

func (that *Matchmaker) deleteLocked(score, i int) {
	bucket := that.buckets[score]
	if len(bucket) == 1 {
		delete(that.buckets, score)
		return
	}
	that.buckets[score] = append(bucket[:i], bucket[i+1:]...)
}

func (that *Matchmaker) stopTimerLocked(login string) {
	if timer, ok := that.timers[login]; ok {
		timer.Stop()
		delete(that.timers, login)
	}
}

// userTimedOut fires when a user has waited out the queue timeout. Losing the
// race against a concurrent pairing is a no-op.
func (that *Matchmaker) userTimedOut(user *MatchingUser) {
	that.mu.Lock()
	delete(that.timers, user.Login)
	removed := that.removeLocked(user)
	that.mu.Unlock()

	if !removed {
		return
	}

	that.logger.Info("matching timed out", "login", user.Login)

	if err := user.Client.Send(Message{Type: MessageTimeout, Payload: PayloadTimeout}); err != nil {
		that.logger.Debug("failed to send matching timeout", "login", user.Login, "error", err)
	}
	if err := user.Client.Close(PayloadTimeout); err != nil {
		that.logger.Debug("failed to close matching user channel", "login", user.Login, "error", err)
	}

	user.abandon()
}

func (that *Matchmaker) removeLocked(user *MatchingUser) bool {
	for i, queued := range that.buckets[user.Score] {
		if queued == user {
			that.deleteLocked(user.Score, i)
			return true
		}
	}
	return false
}
