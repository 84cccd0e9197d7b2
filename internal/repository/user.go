package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
	"github.com/kursor1337/chroniclesofww2-backend/internal/entity"
)

type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	Find(ctx context.Context, login string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, login string) error
}

type userRepository struct {
	conn *sql.DB
}

func NewUserRepository(conn *sql.DB) UserRepository {
	return &userRepository{
		conn: conn,
	}
}

func (that *userRepository) Save(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (login, username, password_hash) VALUES (?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query, user.Login, user.Username, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("can't save user: %w", err)
	}

	return nil
}

func (that *userRepository) Find(ctx context.Context, login string) (*entity.User, error) {
	query := `SELECT login, username, password_hash FROM users WHERE login = ?`

	var user entity.User

	err := that.conn.QueryRowContext(ctx, query, login).Scan(&user.Login, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrNoSuchUser
	}
	if err != nil {
		return nil, fmt.Errorf("can't find user: %w", err)
	}

	return &user, nil
}

func (that *userRepository) Update(ctx context.Context, user *entity.User) error {
	query := `UPDATE users SET username = ?, password_hash = ? WHERE login = ?`

	_, err := that.conn.ExecContext(ctx, query, user.Username, user.PasswordHash, user.Login)
	if err != nil {
		return fmt.Errorf("can't update user: %w", err)
	}

	return nil
}

func (that *userRepository) Delete(ctx context.Context, login string) error {
	query := `DELETE FROM users WHERE login = ?`

	_, err := that.conn.ExecContext(ctx, query, login)
	if err != nil {
		return fmt.Errorf("can't delete user: %w", err)
	}

	return nil
}
