package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// PostgresUserRepositoryConfig holds configuration for the PostgreSQL user repository.
type PostgresUserRepositoryConfig struct {
	// DatabaseDSN is a libpq style connection string or URL
	DatabaseDSN string `env:"DATABASE_DSN" default:""`
	// MaxOpenConns caps the connection pool
	MaxOpenConns int `env:"MAX_OPEN_CONNS" default:"10"`
}

// PostgresUserRepository implements Repository on PostgreSQL through the pgx driver.
type PostgresUserRepository struct {
	db  *sql.DB
	log logging.Logger
}

var _ Repository = (*PostgresUserRepository)(nil)

// NewPostgresUserRepository connects to PostgreSQL and verifies the connection.
// The schema is created by Initialize.
func NewPostgresUserRepository(ctx context.Context, cfg PostgresUserRepositoryConfig) (*PostgresUserRepository, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, storageError(fmt.Errorf("open db: %w", err))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, storageError(fmt.Errorf("ping db: %w", err))
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	return newPostgresUserRepository(db), nil
}

func newPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:  db,
		log: logging.GetLogger("repo.user.postgres_user_repository"),
	}
}

// Initialize implements Repository.Initialize by applying the PostgreSQL migrations.
// Concurrent starts are serialized by goose's own locking of its version table.
func (r *PostgresUserRepository) Initialize(ctx context.Context) error {
	if err := migrate(ctx, r.db, goose.DialectPostgres, "migrations/postgres", r.log); err != nil {
		return storageError(fmt.Errorf("initialize db: %w", err))
	}

	return nil
}

// CreateUser implements Repository.CreateUser using PostgreSQL.
func (r *PostgresUserRepository) CreateUser(ctx context.Context, username string, passwordHash []byte) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return storageError(fmt.Errorf("acquire conn: %w", err))
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3)",
		username,
		passwordHash,
		time.Now().Unix(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			err = errors.Join(domain.ErrUserAlreadyExists, err)
		} else {
			err = storageError(err)
		}

		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetUserByUsername implements Repository.GetUserByUsername using PostgreSQL.
func (r *PostgresUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, false, storageError(fmt.Errorf("acquire conn: %w", err))
	}
	defer conn.Close()

	var user domain.User

	err = conn.QueryRowContext(ctx,
		"SELECT username, password_hash, created_at FROM users WHERE username = $1",
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

// Close implements Repository.Close.
func (r *PostgresUserRepository) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}
