package game

// BoardConfig is the battle setup chosen by a game's initiator. The session
// layer carries it opaquely from the create request to the engine factory.
type BoardConfig struct {
	Height        int    `json:"height"`
	Width         int    `json:"width"`
	Battle        string `json:"battle"`
	InvertNations bool   `json:"invert_nations"`
}

// Move is an opaque move owned by the rule engine. The session layer never
// inspects it beyond passing it back into the engine.
type Move interface {
	Kind() string
}

// Engine owns board state, move legality and terminal detection for a single
// session. The session serializes all calls, so implementations need no
// internal locking.
type Engine interface {
	// Decode parses the compact wire form of a move.
	Decode(payload string) (Move, error)
	// Resolve binds a decoded move to live board state. The acting identity
	// selects whose reserve pool a newly placed unit is drawn from.
	Resolve(move Move, actor string) (Move, error)
	// Validate reports whether a resolved move is legal against the current
	// state. It must not mutate state.
	Validate(move Move) bool
	// Apply mutates engine state with a validated move and advances the turn.
	Apply(move Move) error

	InitiatorLost() bool
	ConnectedLost() bool
}

// EngineFactory builds a fresh engine for a session between two identities,
// initiator first.
type EngineFactory func(cfg BoardConfig, initiator, connected string) (Engine, error)
