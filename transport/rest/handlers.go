package rest

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
	"github.com/kursor1337/chroniclesofww2-backend/internal/service"
)

type registerRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type updateUsernameRequest struct {
	Username string `json:"username"`
}

type authResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type userResponse struct {
	Login    string `json:"login"`
	Username string `json:"username"`
}

type scoreResponse struct {
	Login string `json:"login"`
	Score int    `json:"score"`
}

type waitingGameResponse struct {
	ID        int64     `json:"id"`
	Initiator string    `json:"initiator"`
	Battle    string    `json:"battle"`
	CreatedAt time.Time `json:"created_at"`
}

func (that *Server) handlePing(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

func (that *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Login == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "login and password are required")
	}

	token, err := that.users.Register(c.Request().Context(), req.Login, req.Username, req.Password)
	if errors.Is(err, apperror.ErrUserAlreadyRegistered) {
		return echo.NewHTTPError(http.StatusConflict, apperror.ErrUserAlreadyRegistered.Error())
	}
	if err != nil {
		that.logger.Error("failed to register user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register user")
	}

	return c.JSON(http.StatusCreated, authResponse{Token: token, ExpiresIn: int64(service.TokenLifetime.Seconds())})
}

func (that *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	token, err := that.users.Login(c.Request().Context(), req.Login, req.Password)
	if errors.Is(err, apperror.ErrNoSuchUser) || errors.Is(err, apperror.ErrIncorrectPassword) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		that.logger.Error("failed to log user in", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to log in")
	}

	return c.JSON(http.StatusOK, authResponse{Token: token, ExpiresIn: int64(service.TokenLifetime.Seconds())})
}

func (that *Server) handleMe(c echo.Context) error {
	login, _ := c.Get(loginContextKey).(string)

	user, err := that.users.GetByLogin(c.Request().Context(), login)
	if errors.Is(err, apperror.ErrNoSuchUser) {
		return echo.NewHTTPError(http.StatusNotFound, apperror.ErrNoSuchUser.Error())
	}
	if err != nil {
		that.logger.Error("failed to get user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}

	return c.JSON(http.StatusOK, userResponse{Login: user.Login, Username: user.Username})
}

func (that *Server) handleUpdateUsername(c echo.Context) error {
	login, _ := c.Get(loginContextKey).(string)

	var req updateUsernameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := that.users.UpdateUsername(c.Request().Context(), login, req.Username)
	if errors.Is(err, apperror.ErrNoSuchUser) {
		return echo.NewHTTPError(http.StatusNotFound, apperror.ErrNoSuchUser.Error())
	}
	if err != nil {
		that.logger.Error("failed to update username", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update username")
	}

	return c.NoContent(http.StatusNoContent)
}

func (that *Server) handleChangePassword(c echo.Context) error {
	login, _ := c.Get(loginContextKey).(string)

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil || req.NewPassword == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	token, err := that.users.ChangePassword(c.Request().Context(), login, req.NewPassword)
	if errors.Is(err, apperror.ErrNoSuchUser) {
		return echo.NewHTTPError(http.StatusNotFound, apperror.ErrNoSuchUser.Error())
	}
	if err != nil {
		that.logger.Error("failed to change password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to change password")
	}

	return c.JSON(http.StatusOK, authResponse{Token: token, ExpiresIn: int64(service.TokenLifetime.Seconds())})
}

func (that *Server) handleDeleteUser(c echo.Context) error {
	login, _ := c.Get(loginContextKey).(string)

	err := that.users.Delete(c.Request().Context(), login)
	if errors.Is(err, apperror.ErrNoSuchUser) {
		return echo.NewHTTPError(http.StatusNotFound, apperror.ErrNoSuchUser.Error())
	}
	if err != nil {
		that.logger.Error("failed to delete user", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete user")
	}

	return c.NoContent(http.StatusNoContent)
}

func (that *Server) handleScore(c echo.Context) error {
	login := c.Param("login")

	score, err := that.scores.GetScore(c.Request().Context(), login)
	if err != nil {
		that.logger.Error("failed to get score", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get score")
	}

	return c.JSON(http.StatusOK, scoreResponse{Login: login, Score: score})
}

func (that *Server) handleWaitingGames(c echo.Context) error {
	waiting := that.games.WaitingGames()

	response := make([]waitingGameResponse, 0, len(waiting))
	for _, waitingGame := range waiting {
		response = append(response, waitingGameResponse{
			ID:        waitingGame.ID,
			Initiator: waitingGame.Initiator.Login,
			Battle:    waitingGame.Config.Battle,
			CreatedAt: waitingGame.CreatedAt,
		})
	}

	return c.JSON(http.StatusOK, response)
}
