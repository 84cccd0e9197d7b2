package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kursor1337/chroniclesofww2-backend/internal/entity"
	"github.com/kursor1337/chroniclesofww2-backend/internal/game"
)

const loginContextKey = "login"

type userService interface {
	Register(ctx context.Context, login, username, password string) (string, error)
	Login(ctx context.Context, login, password string) (string, error)
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	UpdateUsername(ctx context.Context, login, username string) error
	ChangePassword(ctx context.Context, login, newPassword string) (string, error)
	Delete(ctx context.Context, login string) error
}

type authService interface {
	ParseToken(token string) (string, error)
}

type scoreRepository interface {
	GetScore(ctx context.Context, login string) (int, error)
}

type gameManager interface {
	WaitingGames() []*game.WaitingGame
}

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo

	users  userService
	auth   authService
	scores scoreRepository
	games  gameManager
}

func New(logger *slog.Logger, users userService, auth authService, scores scoreRepository, games gameManager) *Server {
	server := &Server{
		logger: logger.With("component", "rest"),
		echo:   echo.New(),

		users:  users,
		auth:   auth,
		scores: scores,
		games:  games,
	}

	server.echo.HideBanner = true
	server.echo.Use(middleware.Recover())

	server.echo.GET("/ping", server.handlePing)
	server.echo.POST("/auth/register", server.handleRegister)
	server.echo.POST("/auth/login", server.handleLogin)
	server.echo.GET("/games/waiting", server.handleWaitingGames)
	server.echo.GET("/users/:login/score", server.handleScore)

	protected := server.echo.Group("/users/me", server.requireAuth)
	protected.GET("", server.handleMe)
	protected.PATCH("", server.handleUpdateUsername)
	protected.PUT("/password", server.handleChangePassword)
	protected.DELETE("", server.handleDeleteUser)

	return server
}

// Start - starts the HTTP server and blocks until the context is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := that.echo.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := that.echo.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// requireAuth validates the bearer token and stores its login in the request
// context.
func (that *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		login, err := that.auth.ParseToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		c.Set(loginContextKey, login)

		return next(c)
	}
}
