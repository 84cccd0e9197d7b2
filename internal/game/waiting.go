package game

import "time"

// WaitingGame is a created-but-not-yet-joined game slot. It is destroyed when
// a second player joins (promoted into a session) or when the join timeout
// fires with no second player.
type WaitingGame struct {
	ID        int64
	Initiator *Client
	Config    BoardConfig
	CreatedAt time.Time

	timer    *time.Timer
	promoted chan *Session
}

// Promoted delivers the session once a second player joins. The channel is
// closed without a value if the waiting game times out first.
func (that *WaitingGame) Promoted() <-chan *Session {
	return that.promoted
}

func (that *WaitingGame) resolve(session *Session) {
	if that.promoted != nil {
		that.promoted <- session
	}
}

func (that *WaitingGame) abandon() {
	if that.promoted != nil {
		close(that.promoted)
	}
}
