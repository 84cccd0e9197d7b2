package websocket

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
)

// handleCreate lets an authenticated player open a waiting game. The first
// inbound frame carries the board config; the reply carries the game id the
// opponent joins with. The connection then idles until a join promotes the
// slot into a session or the waiting timeout closes it.
func (that *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleCreate")

	login, ok := that.authenticate(w, r)
	if !ok {
		return
	}

	ws, ok := that.upgrade(w, r)
	if !ok {
		return
	}
	transport := newConn(ws)

	var cfg game.BoardConfig
	if err := ws.ReadJSON(&cfg); err != nil {
		log.Error("failed to read board config", "error", err)
		_ = transport.Close("invalid board config")
		return
	}

	waitingGame, err := that.manager.CreateGame(login, transport, cfg)
	if err != nil {
		log.Error("failed to create game", "error", err)
		_ = transport.Close("failed to create game")
		return
	}

	if err = transport.Send(game.Message{
		Type:    game.MessageGameEvent,
		Payload: strconv.FormatInt(waitingGame.ID, 10),
	}); err != nil {
		log.Error("failed to send game id", "error", err)
		return
	}

	messages := readMessages(ws)

	for {
		select {
		case session, promoted := <-waitingGame.Promoted():
			if !promoted {
				// waiting game timed out, connection already closed
				return
			}
			that.relay(login, session, messages)
			return
		case msg, open := <-messages:
			if !open {
				// the initiator went away before anyone joined
				if that.manager.CancelGame(waitingGame) {
					return
				}
				// a join won the race; disconnect on the initiator's behalf
				if session, promoted := <-waitingGame.Promoted(); promoted {
					session.HandleMessage(login, game.Message{Type: game.MessageDisconnect})
				}
				return
			}
			// a join may have landed just before this frame
			select {
			case session, promoted := <-waitingGame.Promoted():
				if promoted {
					session.HandleMessage(login, msg)
					that.relay(login, session, messages)
				}
				return
			default:
				log.Info("ignoring message before game start", "login", login, "type", msg.Type)
			}
		}
	}
}

// handleJoin attaches an authenticated player to a waiting game by id, which
// starts the session for both sides.
func (that *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleJoin")

	login, ok := that.authenticate(w, r)
	if !ok {
		return
	}

	rawID := strings.TrimPrefix(r.URL.Path, "/ws/game/join/")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}

	ws, ok := that.upgrade(w, r)
	if !ok {
		return
	}
	transport := newConn(ws)

	session, err := that.manager.JoinGame(id, login, transport)
	if err != nil {
		log.Info("join rejected", "gameID", id, "login", login, "error", err)
		_ = transport.Send(game.Message{Type: game.MessageError, Payload: err.Error()})
		_ = transport.Close("join rejected")
		return
	}

	that.relay(login, session, readMessages(ws))
}

// handleMatch queues an authenticated player for score-based matchmaking and,
// once paired, relays its messages into the ranked session. Disconnecting
// while queued cancels the queue entry.
func (that *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleMatch")

	login, ok := that.authenticate(w, r)
	if !ok {
		return
	}

	ws, ok := that.upgrade(w, r)
	if !ok {
		return
	}
	transport := newConn(ws)

	sessions, err := that.manager.EnqueueForMatch(r.Context(), login, transport)
	if err != nil {
		log.Error("failed to enqueue for match", "login", login, "error", err)
		_ = transport.Send(game.Message{Type: game.MessageError, Payload: err.Error()})
		_ = transport.Close("failed to enqueue")
		return
	}

	messages := readMessages(ws)

	for {
		select {
		case session, paired := <-sessions:
			if !paired {
				// matchmaking timed out or was cancelled, connection closed
				return
			}
			that.relay(login, session, messages)
			return
		case msg, open := <-messages:
			if !open || msg.Type == game.MessageDisconnect {
				if that.manager.CancelMatch(login) {
					_ = transport.Close("matching cancelled")
					return
				}
				// the matchmaker already handed the player off; disconnect
				// from the session it was paired into
				if session, paired := <-sessions; paired {
					session.HandleMessage(login, game.Message{Type: game.MessageDisconnect})
				}
				return
			}
			// a pairing may have landed just before this frame
			select {
			case session, paired := <-sessions:
				if paired {
					session.HandleMessage(login, msg)
					that.relay(login, session, messages)
				}
				return
			default:
				log.Info("ignoring message while queued", "login", login, "type", msg.Type)
			}
		}
	}
}
