package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kursor1337/chroniclesofww2-backend/internal/config"
	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
	"github.com/kursor1337/chroniclesofww2-backend/internal/repository"
	"github.com/kursor1337/chroniclesofww2-backend/internal/repository/storage"
	"github.com/kursor1337/chroniclesofww2-backend/internal/rules"
	"github.com/kursor1337/chroniclesofww2-backend/internal/service"
	"github.com/kursor1337/chroniclesofww2-backend/transport/rest"
	"github.com/kursor1337/chroniclesofww2-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	userRepo := repository.NewUserRepository(sqliteStorage.Connection)
	scoreRepo := repository.NewScoreRepository(redisStorage.Connection)

	authService := service.NewAuthService(conf.JWTSecretKey)
	userService := service.NewUserService(userRepo, authService)

	sessionController := game.NewSessionController(logger)
	gameManager := game.NewManager(logger, game.Config{
		JoinTimeout:     conf.Game.JoinTimeout(),
		MatchingTimeout: conf.Game.MatchingTimeout(),
		ScoreWindow:     conf.Game.MatchingScoreWindow,
		RankedBoard: game.BoardConfig{
			Height: conf.Game.RankedBoard.Height,
			Width:  conf.Game.RankedBoard.Width,
			Battle: conf.Game.RankedBoard.Battle,
		},
	}, sessionController, scoreRepo, rules.NewEngine)

	observer := &lifecycleLogger{logger: logger.With("component", "lifecycle")}
	gameManager.AddObserver(observer)
	gameManager.AddMatchObserver(observer)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, userService, authService, scoreRepo, gameManager)
		if httpErr := restServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gameManager, authService)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// lifecycleLogger traces registry and matchmaking transitions.
type lifecycleLogger struct {
	game.NopObserver
	game.NopMatchObserver

	logger *slog.Logger
}

func (that *lifecycleLogger) OnGameSessionStopped(session *game.Session) {
	that.logger.Info("session finished", "gameID", session.ID(), "ranked", session.Ranked())
}

func (that *lifecycleLogger) OnNewMatchingGame(matchingGame *game.MatchingGame) {
	that.logger.Info("players matched",
		"gameID", matchingGame.ID,
		"initiator", matchingGame.Initiator.Login,
		"connected", matchingGame.Connected.Login,
	)
}
