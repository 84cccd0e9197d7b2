package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
)

const writeWait = 10 * time.Second

// conn adapts a gorilla connection to the game.Transport contract. gorilla
// allows a single concurrent writer, while sessions, timers and matchmaking
// all send from their own goroutines, so every write is serialized on writeMu.
type conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (that *conn) Send(msg game.Message) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.closed {
		return websocket.ErrCloseSent
	}

	_ = that.ws.SetWriteDeadline(time.Now().Add(writeWait))

	return that.ws.WriteJSON(msg)
}

// Close delivers a close frame carrying the reason, then tears the underlying
// connection down. Closing twice is a no-op.
func (that *conn) Close(reason string) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	if that.closed {
		return nil
	}
	that.closed = true

	frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = that.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(writeWait))

	return that.ws.Close()
}
