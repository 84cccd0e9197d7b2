package game

import (
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records everything sent and every close, safe for use from
// session goroutines and timers.
type fakeTransport struct {
	mu       sync.Mutex
	messages []Message
	closes   []string
}

func (that *fakeTransport) Send(msg Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.messages = append(that.messages, msg)

	return nil
}

func (that *fakeTransport) Close(reason string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closes = append(that.closes, reason)

	return nil
}

func (that *fakeTransport) Messages() []Message {
	that.mu.Lock()
	defer that.mu.Unlock()

	out := make([]Message, len(that.messages))
	copy(out, that.messages)

	return out
}

func (that *fakeTransport) CloseCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.closes)
}

func (that *fakeTransport) Received(msgType MessageType, payload string) bool {
	for _, msg := range that.Messages() {
		if msg.Type == msgType && msg.Payload == payload {
			return true
		}
	}
	return false
}

func (that *fakeTransport) CountOf(msgType MessageType) int {
	count := 0
	for _, msg := range that.Messages() {
		if msg.Type == msgType {
			count++
		}
	}
	return count
}

type fakeMove struct {
	kind string
}

func (that fakeMove) Kind() string { return that.kind }

// fakeEngine is a scriptable rule engine: every decoded move validates
// according to the valid flag, and terminal flags are toggled by the test.
type fakeEngine struct {
	mu            sync.Mutex
	valid         bool
	decodeErr     error
	applied       []Move
	initiatorLost bool
	connectedLost bool
}

func (that *fakeEngine) Decode(string) (Move, error) {
	if that.decodeErr != nil {
		return nil, that.decodeErr
	}
	return fakeMove{kind: "MOVE"}, nil
}

func (that *fakeEngine) Resolve(move Move, _ string) (Move, error) {
	return move, nil
}

func (that *fakeEngine) Validate(Move) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.valid
}

func (that *fakeEngine) Apply(move Move) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.applied = append(that.applied, move)

	return nil
}

func (that *fakeEngine) InitiatorLost() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.initiatorLost
}

func (that *fakeEngine) ConnectedLost() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.connectedLost
}

func (that *fakeEngine) AppliedCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.applied)
}

func (that *fakeEngine) SetConnectedLost(lost bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.connectedLost = lost
}
