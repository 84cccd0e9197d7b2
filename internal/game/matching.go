package game

// MatchingUser is one queued matchmaking entry. It lives inside exactly one
// score bucket until paired, cancelled or timed out.
type MatchingUser struct {
	Login  string
	Client *Client
	Score  int

	paired chan *Session
}

// Paired delivers the session once this user is matched. The channel is closed
// without a value on timeout or cancellation.
func (that *MatchingUser) Paired() <-chan *Session {
	return that.paired
}

func (that *MatchingUser) resolve(session *Session) {
	if that.paired != nil {
		that.paired <- session
	}
}

func (that *MatchingUser) abandon() {
	if that.paired != nil {
		close(that.paired)
	}
}

// MatchingGame is the ephemeral pairing result. It is converted into a ranked
// session immediately and not kept beyond that conversion.
type MatchingGame struct {
	ID        int64
	Initiator *MatchingUser
	Connected *MatchingUser
}
