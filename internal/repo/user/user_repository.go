package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/kbchat/internal/domain"
)

// ErrUnknownDriver is returned when the configured storage driver is not supported.
var ErrUnknownDriver = errors.New("unknown user repository driver")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Repository defines the interface for the durable credential table.
// Every storage failure is reported with domain.ErrStorageUnavailable in its chain,
// so callers can tell "the store is broken" apart from a normal outcome.
type Repository interface {
	// Initialize ensures the credential table exists. It is idempotent and never
	// alters existing rows.
	Initialize(ctx context.Context) error

	// CreateUser adds a new user to the repository.
	// Returns domain.ErrUserAlreadyExists if the username is already taken; the
	// existing row is left untouched.
	CreateUser(ctx context.Context, username string, passwordHash []byte) error

	// GetUserByUsername retrieves a user by their username.
	// Returns the user and true if found, or nil and false if not found.
	// Returns an error only if the lookup itself fails.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error)

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
// Returns an error if initialization fails.
type RepositoryFactory func() (Repository, error)

// RepositoryConfig selects and configures the storage backend of the credential table.
type RepositoryConfig struct {
	// Driver is either "sqlite" or "postgres"
	Driver string `env:"DRIVER" default:"sqlite"`
	// ConnectTimeout bounds opening and pinging the database
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" default:"5"`

	SQLite   SQLiteUserRepositoryConfig
	Postgres PostgresUserRepositoryConfig
}

// Factory returns a RepositoryFactory for the configured driver.
func Factory(cfg RepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
		defer cancel()

		switch cfg.Driver {
		case DriverSQLite:
			return NewSQLiteUserRepository(ctx, cfg.SQLite)
		case DriverPostgres:
			return NewPostgresUserRepository(ctx, cfg.Postgres)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
		}
	}
}

// storageError attaches domain.ErrStorageUnavailable to a driver error.
func storageError(err error) error {
	return errors.Join(domain.ErrStorageUnavailable, err)
}
