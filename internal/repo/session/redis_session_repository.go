package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// RedisSessionRepositoryConfig holds configuration for the Redis session repository.
type RedisSessionRepositoryConfig struct {
	Addr     string `env:"ADDR" default:"localhost:6379"`
	Password string `env:"PASSWORD" default:""`
	DB       int    `env:"DB" default:"0"`
	// KeyPrefix namespaces session keys
	KeyPrefix string `env:"KEY_PREFIX" default:"kbchat:session:"`
	// DialTimeout bounds connecting and the startup ping
	DialTimeout time.Duration `env:"DIAL_TIMEOUT" default:"5"`
}

// RedisSessionRepository stores sessions as JSON values whose key TTL matches the
// session expiry, so sessions can be shared by several server processes.
type RedisSessionRepository struct {
	rdb       *redis.Client
	keyPrefix string
	log       logging.Logger

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

var _ Repository = (*RedisSessionRepository)(nil)

// NewRedisSessionRepository connects to Redis and verifies the connection.
func NewRedisSessionRepository(ctx context.Context, cfg RedisSessionRepositoryConfig) (*RedisSessionRepository, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()

		return nil, storageError(fmt.Errorf("ping redis: %w", err))
	}

	return &RedisSessionRepository{
		rdb:       rdb,
		keyPrefix: cfg.KeyPrefix,
		log: logging.GetLogger("repo.session.redis_session_repository").With(
			logging.Group("redis", "addr", cfg.Addr, "db", cfg.DB),
		),
		Now: time.Now,
	}, nil
}

func (r *RedisSessionRepository) key(id string) string {
	return r.keyPrefix + id
}

// Save implements Repository.Save.
func (r *RedisSessionRepository) Save(ctx context.Context, session *domain.Session) error {
	ttl := session.TTL(r.Now())
	if ttl <= 0 {
		return r.Delete(ctx, session.ID)
	}

	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if err := r.rdb.Set(ctx, r.key(session.ID), value, ttl).Err(); err != nil {
		return storageError(fmt.Errorf("set session: %w", err))
	}

	return nil
}

// Get implements Repository.Get.
func (r *RedisSessionRepository) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	value, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, storageError(fmt.Errorf("get session: %w", err))
	}

	var session domain.Session
	if err := json.Unmarshal(value, &session); err != nil {
		// an unreadable session is dropped so the client gets a fresh one
		r.log.WarnContext(ctx, "corrupt session value dropped", "error", err)

		if err := r.Delete(ctx, id); err != nil {
			return nil, false, err
		}

		return nil, false, nil
	}

	if session.Expired(r.Now()) {
		return nil, false, nil
	}

	return &session, true, nil
}

// Delete implements Repository.Delete.
func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return storageError(fmt.Errorf("delete session: %w", err))
	}

	return nil
}

// Close implements Repository.Close.
func (r *RedisSessionRepository) Close() error {
	if err := r.rdb.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
