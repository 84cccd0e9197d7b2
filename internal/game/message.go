package game

// MessageType tags every frame exchanged with a client while it is attached to
// a session or a matchmaking queue.
type MessageType string

const (
	MessageMove       MessageType = "MOVE"
	MessageDisconnect MessageType = "DISCONNECT"
	MessageGameEvent  MessageType = "GAME_EVENT"
	MessageError      MessageType = "ERROR"
	MessageTimeout    MessageType = "TIMEOUT"
)

// Payloads sent to clients on lifecycle transitions.
const (
	PayloadGameStarted          = "game started"
	PayloadInvalidMove          = "invalid move"
	PayloadNoSuchPlayer         = "no such player"
	PayloadOpponentDisconnected = "other player disconnected"
	PayloadSessionStopped       = "session stopped"
	PayloadTimeout              = "Timeout"
)

type Message struct {
	Type    MessageType `json:"type"`
	Payload string      `json:"payload,omitempty"`
}

// Transport is one live bidirectional client connection. Send and Close must
// be safe to call from any goroutine; Close with a reason delivers the reason
// to the peer before tearing the channel down.
type Transport interface {
	Send(msg Message) error
	Close(reason string) error
}

// Client binds a player identity to exactly one live transport channel. A
// client is owned by at most one session or waiting game at a time.
type Client struct {
	Login string
	Conn  Transport
}

func (that *Client) Send(msg Message) error {
	return that.Conn.Send(msg)
}

func (that *Client) Close(reason string) error {
	return that.Conn.Close(reason)
}
