package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/kbchat/internal/domain"
)

// ErrUnknownBackend is returned when the configured session backend is not supported.
var ErrUnknownBackend = errors.New("unknown session repository backend")

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Repository stores sessions until they expire or are deleted.
// Implementations return copies: a session read from the repository is owned by the
// caller until it is saved again.
type Repository interface {
	// Save creates or replaces the session, keeping it until session.ExpiresAt.
	Save(ctx context.Context, session *domain.Session) error

	// Get returns the session and true, or nil and false if it is unknown or expired.
	Get(ctx context.Context, id string) (*domain.Session, bool, error)

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases any resources held by the repository.
	Close() error
}

// RepositoryFactory is a function that creates a new Repository instance.
type RepositoryFactory func() (Repository, error)

// RepositoryConfig selects the session backend.
type RepositoryConfig struct {
	// Backend is either "memory" or "redis"
	Backend string `env:"BACKEND" default:"memory"`
}

// Factory returns a RepositoryFactory for the configured backend.
func Factory(cfg RepositoryConfig, redisCfg RedisSessionRepositoryConfig) RepositoryFactory {
	return func() (Repository, error) {
		switch cfg.Backend {
		case BackendMemory:
			return NewMemorySessionRepository(), nil
		case BackendRedis:
			return NewRedisSessionRepository(context.Background(), redisCfg)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
		}
	}
}

func storageError(err error) error {
	return errors.Join(domain.ErrStorageUnavailable, err)
}
