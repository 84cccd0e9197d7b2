package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ScoreRepository keeps per-user matchmaking scores. A user without a stored
// score reads as zero.
type ScoreRepository interface {
	GetScore(ctx context.Context, login string) (int, error)
	IncrementScore(ctx context.Context, login string) error
	DecrementScore(ctx context.Context, login string) error
}

type dbScore struct {
	client *redis.Client
}

func NewScoreRepository(client *redis.Client) ScoreRepository {
	return &dbScore{
		client: client,
	}
}

func (that *dbScore) GetScore(ctx context.Context, login string) (int, error) {
	scoreKey := "score:" + login

	score, err := that.client.Get(ctx, scoreKey).Int()

	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get score: %w", err)
	}

	return score, nil
}

func (that *dbScore) IncrementScore(ctx context.Context, login string) error {
	scoreKey := "score:" + login

	if err := that.client.Incr(ctx, scoreKey).Err(); err != nil {
		return fmt.Errorf("failed to increment score: %w", err)
	}

	return nil
}

func (that *dbScore) DecrementScore(ctx context.Context, login string) error {
	scoreKey := "score:" + login

	if err := that.client.Decr(ctx, scoreKey).Err(); err != nil {
		return fmt.Errorf("failed to decrement score: %w", err)
	}

	return nil
}
