package user_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/repo/user"
)

func sqliteConfig(t *testing.T) user.SQLiteUserRepositoryConfig {
	t.Helper()

	return user.SQLiteUserRepositoryConfig{
		DatabasePath: filepath.Join(t.TempDir(), "storage", "users.db"),
		BusyTimeout:  5 * time.Second,
	}
}

func openSQLite(t *testing.T, cfg user.SQLiteUserRepositoryConfig) *user.SQLiteUserRepository {
	t.Helper()

	repo, err := user.NewSQLiteUserRepository(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(context.Background()))

	return repo
}

func TestSQLiteUserRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openSQLite(t, sqliteConfig(t))
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.CreateUser(ctx, "alice", []byte("hash-1")))

	got, ok, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []byte("hash-1"), got.PasswordHash)
	assert.NotZero(t, got.CreatedAt)
}

func TestSQLiteUserRepository_GetUnknown(t *testing.T) {
	t.Parallel()

	repo := openSQLite(t, sqliteConfig(t))
	t.Cleanup(func() { _ = repo.Close() })

	got, ok, err := repo.GetUserByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSQLiteUserRepository_DuplicateKeepsExisting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openSQLite(t, sqliteConfig(t))
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.CreateUser(ctx, "alice", []byte("first")))

	err := repo.CreateUser(ctx, "alice", []byte("second"))
	require.ErrorIs(t, err, domain.ErrUserAlreadyExists)
	assert.NotErrorIs(t, err, domain.ErrStorageUnavailable)

	got, ok, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got.PasswordHash)
}

func TestSQLiteUserRepository_InitializeIsIdempotentAndDurable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := sqliteConfig(t)

	repo := openSQLite(t, cfg)
	require.NoError(t, repo.CreateUser(ctx, "alice", []byte("hash")))
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.Close())

	// simulate a process restart on the same file
	repo = openSQLite(t, cfg)
	t.Cleanup(func() { _ = repo.Close() })

	got, ok, err := repo.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hash"), got.PasswordHash)
}

func TestSQLiteUserRepository_ClosedStoreIsUnavailable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openSQLite(t, sqliteConfig(t))
	require.NoError(t, repo.Close())

	err := repo.CreateUser(ctx, "alice", []byte("hash"))
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUserAlreadyExists)

	_, ok, err := repo.GetUserByUsername(ctx, "alice")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.False(t, ok)

	require.ErrorIs(t, repo.Initialize(ctx), domain.ErrStorageUnavailable)
}

func TestSQLiteUserRepository_MissingTableIsUnavailable(t *testing.T) {
	t.Parallel()

	repo, err := user.NewSQLiteUserRepository(context.Background(), sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	// no Initialize: the table does not exist
	_, _, err = repo.GetUserByUsername(context.Background(), "alice")
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestSQLiteUserRepository_ConcurrentCreateSameUsername(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openSQLite(t, sqliteConfig(t))
	t.Cleanup(func() { _ = repo.Close() })

	const workers = 16

	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		duplicate atomic.Int32
	)

	for i := range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := repo.CreateUser(ctx, "alice", []byte{byte(i)})

			switch {
			case err == nil:
				created.Add(1)
			case assert.ErrorIs(t, err, domain.ErrUserAlreadyExists):
				duplicate.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(workers-1), duplicate.Load())
}

func TestFactory_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := user.Factory(user.RepositoryConfig{Driver: "mysql", ConnectTimeout: time.Second})()
	require.ErrorIs(t, err, user.ErrUnknownDriver)
}

func TestFactory_SQLite(t *testing.T) {
	t.Parallel()

	repo, err := user.Factory(user.RepositoryConfig{
		Driver:         user.DriverSQLite,
		ConnectTimeout: time.Second,
		SQLite:         sqliteConfig(t),
	})()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, repo.Initialize(context.Background()))
}
