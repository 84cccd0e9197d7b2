package apperror

import "errors"

var (
	ErrNoSuchUser            = errors.New("no such user")
	ErrUserAlreadyRegistered = errors.New("user already registered")
	ErrIncorrectPassword     = errors.New("incorrect password")

	ErrGameNotFound       = errors.New("game not found")
	ErrNoSuchPlayer       = errors.New("no such player")
	ErrOwnGame            = errors.New("cannot join your own game")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrSessionTerminated  = errors.New("session already terminated")
	ErrAlreadyQueued      = errors.New("user is already queued for matching")
)
