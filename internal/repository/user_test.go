package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kursor1337/chroniclesofww2-backend/internal/apperror"
	"github.com/kursor1337/chroniclesofww2-backend/internal/entity"
	"github.com/kursor1337/chroniclesofww2-backend/internal/repository"
	"github.com/kursor1337/chroniclesofww2-backend/internal/repository/storage"
)

func newUserRepository(t *testing.T) (context.Context, repository.UserRepository) {
	t.Helper()

	ctx := context.Background()

	// a file-backed database, the pool would hand each connection its own
	// in-memory one
	dbPath := filepath.Join(t.TempDir(), "users.db")

	sqliteStorage, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, sqliteStorage.Close())
	})

	require.NoError(t, sqliteStorage.Init(ctx))

	return ctx, repository.NewUserRepository(sqliteStorage.Connection)
}

func TestUserRepository(t *testing.T) {
	t.Run("finds a saved user", func(t *testing.T) {
		// Given
		ctx, users := newUserRepository(t)
		user := &entity.User{Login: "alice", Username: "Alice", PasswordHash: "hash"}

		// When
		require.NoError(t, users.Save(ctx, user))

		// Then
		found, err := users.Find(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user, found)
	})

	t.Run("finding an unknown login fails", func(t *testing.T) {
		// Given
		ctx, users := newUserRepository(t)

		// When
		_, err := users.Find(ctx, "nobody")

		// Then
		require.ErrorIs(t, err, apperror.ErrNoSuchUser)
	})

	t.Run("saving the same login twice fails", func(t *testing.T) {
		// Given
		ctx, users := newUserRepository(t)
		user := &entity.User{Login: "alice", Username: "Alice", PasswordHash: "hash"}
		require.NoError(t, users.Save(ctx, user))

		// When
		err := users.Save(ctx, user)

		// Then
		require.Error(t, err)
	})

	t.Run("update rewrites username and password hash", func(t *testing.T) {
		// Given
		ctx, users := newUserRepository(t)
		user := &entity.User{Login: "alice", Username: "Alice", PasswordHash: "hash"}
		require.NoError(t, users.Save(ctx, user))

		// When
		user.Username = "General Alice"
		user.PasswordHash = "new-hash"
		require.NoError(t, users.Update(ctx, user))

		// Then
		found, err := users.Find(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "General Alice", found.Username)
		assert.Equal(t, "new-hash", found.PasswordHash)
	})

	t.Run("a deleted user is gone", func(t *testing.T) {
		// Given
		ctx, users := newUserRepository(t)
		require.NoError(t, users.Save(ctx, &entity.User{Login: "alice", Username: "Alice", PasswordHash: "hash"}))

		// When
		require.NoError(t, users.Delete(ctx, "alice"))

		// Then
		_, err := users.Find(ctx, "alice")
		require.ErrorIs(t, err, apperror.ErrNoSuchUser)
	})
}
