package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// SQLiteUserRepositoryConfig holds configuration for the SQLite user repository.
type SQLiteUserRepositoryConfig struct {
	// DatabasePath is the filesystem path to the SQLite database file
	DatabasePath string `env:"DATABASE_PATH" default:"var/storage/users.db"`
	// BusyTimeout is how long a connection waits for a lock held by another process
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5"`
}

// SQLiteUserRepository implements Repository using SQLite as the storage backend.
type SQLiteUserRepository struct {
	db        *sql.DB
	log       logging.Logger
	writeLock *sync.Mutex // go-sqlite does not support concurrent writes
}

var _ Repository = (*SQLiteUserRepository)(nil)

// NewSQLiteUserRepository opens the database file, creating its directory if needed,
// and verifies it is reachable. The schema is created by Initialize.
func NewSQLiteUserRepository(ctx context.Context, cfg SQLiteUserRepositoryConfig) (*SQLiteUserRepository, error) {
	log := logging.GetLogger("repo.user.sqlite_user_repository").With(
		logging.Group("db", "path", cfg.DatabasePath),
	)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, storageError(fmt.Errorf("create db dir: %w", err))
		}
	}

	// busy_timeout is a per-connection pragma, so it goes into the DSN
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.DatabasePath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storageError(fmt.Errorf("open db: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, storageError(fmt.Errorf("ping db: %w", err))
	}

	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLiteUserRepository{
		db:        db,
		log:       log,
		writeLock: new(sync.Mutex),
	}, nil
}

// Initialize implements Repository.Initialize by applying the SQLite migrations.
func (r *SQLiteUserRepository) Initialize(ctx context.Context) error {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	if err := migrate(ctx, r.db, goose.DialectSQLite3, "migrations/sqlite", r.log); err != nil {
		return storageError(fmt.Errorf("initialize db: %w", err))
	}

	return nil
}

// CreateUser implements Repository.CreateUser using SQLite.
func (r *SQLiteUserRepository) CreateUser(ctx context.Context, username string, passwordHash []byte) (err error) {
	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return storageError(fmt.Errorf("acquire conn: %w", err))
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username,
		passwordHash,
		time.Now().Unix(),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		} else {
			err = storageError(err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	r.log.DebugContext(ctx, "user inserted", logging.Group("user", "username", username))

	return nil
}

// GetUserByUsername implements Repository.GetUserByUsername using SQLite.
func (r *SQLiteUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, false, storageError(fmt.Errorf("acquire conn: %w", err))
	}
	defer conn.Close()

	var user domain.User

	err = conn.QueryRowContext(ctx,
		"SELECT username, password_hash, created_at FROM users WHERE username = ?",
		username,
	).Scan(&user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("query user: %w", storageError(err))
	}

	return &user, true, nil
}

// Close implements Repository.Close by closing the database connection.
func (r *SQLiteUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return false
	}

	switch liteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
