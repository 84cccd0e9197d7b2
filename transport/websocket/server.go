package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
)

type gameManager interface {
	CreateGame(login string, conn game.Transport, cfg game.BoardConfig) (*game.WaitingGame, error)
	JoinGame(id int64, login string, conn game.Transport) (*game.Session, error)
	CancelGame(waitingGame *game.WaitingGame) bool
	EnqueueForMatch(ctx context.Context, login string, conn game.Transport) (<-chan *game.Session, error)
	CancelMatch(login string) bool
}

type authService interface {
	ParseToken(token string) (string, error)
}

type Server struct {
	logger   *slog.Logger
	manager  gameManager
	auth     authService
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, manager gameManager, auth authService) *Server {
	return &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Start - starts the WebSocket server and blocks until the context is
// cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/game/create", that.handleCreate)
	mux.HandleFunc("/ws/game/join/", that.handleJoin)
	mux.HandleFunc("/ws/match", that.handleMatch)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down WebSocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// authenticate resolves the login behind the request's token query parameter.
// Browsers can't set headers on websocket dials, hence the query parameter.
func (that *Server) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return "", false
	}

	login, err := that.auth.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return "", false
	}

	return login, true
}

func (that *Server) upgrade(w http.ResponseWriter, r *http.Request) (*websocket.Conn, bool) {
	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		that.logger.Error("failed to upgrade connection", "error", err)
		return nil, false
	}

	return ws, true
}

// readMessages pumps inbound frames into a channel so handlers can multiplex
// reads against pairing/promotion events. The channel closes when the
// connection does.
func readMessages(ws *websocket.Conn) <-chan game.Message {
	messages := make(chan game.Message)

	go func() {
		defer close(messages)
		for {
			var msg game.Message
			if err := ws.ReadJSON(&msg); err != nil {
				return
			}
			messages <- msg
		}
	}()

	return messages
}

// relay feeds inbound messages to the session until the connection drops, then
// reports the drop as a disconnect. A session already terminated ignores it.
func (that *Server) relay(login string, session *game.Session, messages <-chan game.Message) {
	for msg := range messages {
		session.HandleMessage(login, msg)
	}

	session.HandleMessage(login, game.Message{Type: game.MessageDisconnect})
}
