package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
	"github.com/kursor1337/chroniclesofww2-backend/internal/entity"
)

type userRepository interface {
	Save(ctx context.Context, user *entity.User) error
	Find(ctx context.Context, login string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, login string) error
}

// UserService owns account lifecycle: registration, credential checks and
// profile updates. Token-returning methods issue a fresh JWT so clients don't
// need a second round trip after a credentials change.
type UserService interface {
	Register(ctx context.Context, login, username, password string) (string, error)
	Login(ctx context.Context, login, password string) (string, error)
	GetByLogin(ctx context.Context, login string) (*entity.User, error)
	UpdateUsername(ctx context.Context, login, username string) error
	ChangePassword(ctx context.Context, login, newPassword string) (string, error)
	Delete(ctx context.Context, login string) error
}

type userService struct {
	users userRepository
	auth  AuthService
}

func NewUserService(users userRepository, auth AuthService) UserService {
	return &userService{
		users: users,
		auth:  auth,
	}
}

func (that *userService) Register(ctx context.Context, login, username, password string) (string, error) {
	if _, err := that.users.Find(ctx, login); err == nil {
		return "", apperror.ErrUserAlreadyRegistered
	} else if !errors.Is(err, apperror.ErrNoSuchUser) {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Login:        login,
		Username:     username,
		PasswordHash: string(passwordHash),
	}
	if err = that.users.Save(ctx, user); err != nil {
		return "", fmt.Errorf("failed to save user: %w", err)
	}

	token, err := that.auth.GenerateToken(login)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return token, nil
}

func (that *userService) Login(ctx context.Context, login, password string) (string, error) {
	user, err := that.users.Find(ctx, login)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", apperror.ErrIncorrectPassword
	}

	token, err := that.auth.GenerateToken(login)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return token, nil
}

func (that *userService) GetByLogin(ctx context.Context, login string) (*entity.User, error) {
	user, err := that.users.Find(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

func (that *userService) UpdateUsername(ctx context.Context, login, username string) error {
	user, err := that.users.Find(ctx, login)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	user.Username = username
	if err = that.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return nil
}

func (that *userService) ChangePassword(ctx context.Context, login, newPassword string) (string, error) {
	user, err := that.users.Find(ctx, login)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(passwordHash)
	if err = that.users.Update(ctx, user); err != nil {
		return "", fmt.Errorf("failed to update user: %w", err)
	}

	token, err := that.auth.GenerateToken(login)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return token, nil
}

func (that *userService) Delete(ctx context.Context, login string) error {
	if _, err := that.users.Find(ctx, login); err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}

	if err := that.users.Delete(ctx, login); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return nil
}
