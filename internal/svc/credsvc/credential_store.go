// Package credsvc implements the credential store: registration and login
// verification of usernames against salted bcrypt password hashes.
package credsvc

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	"github.com/mkrupp/kbchat/internal/infra/metrics"
	"github.com/mkrupp/kbchat/internal/repo/user"
)

// MaxPasswordLength is the longest password bcrypt hashes without truncation, in bytes.
const MaxPasswordLength = 72

// CredentialConfig contains configuration parameters for the credential store.
type CredentialConfig struct {
	// BcryptCost is the bcrypt work factor
	BcryptCost int `env:"BCRYPT_COST" default:"12"`
}

// CredentialStore persists and verifies user credentials.
//
// Duplicate usernames and wrong credentials are ordinary outcomes and are reported as
// false. Storage failures are returned as errors wrapping domain.ErrStorageUnavailable,
// because no authorization decision can be made without the store.
type CredentialStore struct {
	Config   CredentialConfig
	UserRepo user.Repository
	Log      logging.Logger
	Metrics  *metrics.Metrics

	// dummyHash is compared against when the user does not exist or the input is
	// empty, so that every rejection costs as much as a wrong password.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

// NewCredentialStore creates a CredentialStore with a repository from the given factory.
func NewCredentialStore(repoFactory user.RepositoryFactory, cfg CredentialConfig, m *metrics.Metrics) (*CredentialStore, error) {
	userRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	store, err := NewCredentialStoreWithRepo(userRepo, cfg, m)
	if err != nil {
		_ = userRepo.Close()

		return nil, err
	}

	return store, nil
}

// NewCredentialStoreWithRepo creates a CredentialStore on an existing repository.
func NewCredentialStoreWithRepo(userRepo user.Repository, cfg CredentialConfig, m *metrics.Metrics) (*CredentialStore, error) {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d: %w", cfg.BcryptCost, bcrypt.InvalidCostError(cfg.BcryptCost))
	}

	dummyHash, err := bcrypt.GenerateFromPassword([]byte("kbchat-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &CredentialStore{
		Config:    cfg,
		UserRepo:  userRepo,
		Log:       logging.GetLogger("svc.credsvc.credential_store"),
		Metrics:   m,
		dummyHash: dummyHash,
		compare:   bcrypt.CompareHashAndPassword,
	}, nil
}

// Initialize ensures the credential table exists. It is safe to call on every start.
func (s *CredentialStore) Initialize(ctx context.Context) error {
	if err := s.UserRepo.Initialize(ctx); err != nil {
		s.Log.ErrorContext(ctx, "initialize credential store failed", "error", err)

		return fmt.Errorf("initialize user repo: %w", err)
	}

	s.Log.DebugContext(ctx, "credential store initialized")

	return nil
}

// Register creates a user with a freshly salted hash of password.
// Returns true if the user was created and false if the username is already taken;
// the existing record is never modified.
func (s *CredentialStore) Register(ctx context.Context, username, password string) (created bool, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		switch {
		case err != nil:
			log.ErrorContext(ctx, "register user failed", "error", err)
		case !created:
			log.InfoContext(ctx, "username already exists")
		default:
			log.InfoContext(ctx, "user registered")
		}
	}()

	if err := validate(username, password); err != nil {
		s.Metrics.Registration(metrics.OutcomeInvalid)

		return false, err
	}

	// GenerateFromPassword draws a new random salt for every call
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), s.Config.BcryptCost)
	if err != nil {
		s.Metrics.Registration(metrics.OutcomeError)

		return false, fmt.Errorf("hash password: %w", err)
	}

	if err := s.UserRepo.CreateUser(ctx, username, passwordHash); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			s.Metrics.Registration(metrics.OutcomeDuplicate)

			return false, nil
		}

		s.Metrics.Registration(metrics.OutcomeUnavailable)

		return false, fmt.Errorf("create user: %w", err)
	}

	s.Metrics.Registration(metrics.OutcomeSuccess)

	return true, nil
}

// Verify reports whether password matches the stored hash of username.
// Unknown users and wrong passwords both yield false.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (ok bool, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		switch {
		case err != nil:
			log.ErrorContext(ctx, "verify credentials failed", "error", err)
		case !ok:
			log.InfoContext(ctx, "invalid credentials")
		default:
			log.DebugContext(ctx, "credentials verified")
		}
	}()

	if username == "" || password == "" {
		_ = s.compare(s.dummyHash, []byte(password))

		s.Metrics.Login(metrics.OutcomeDenied)

		return false, nil
	}

	record, found, err := s.UserRepo.GetUserByUsername(ctx, username)
	if err != nil {
		s.Metrics.Login(metrics.OutcomeUnavailable)

		return false, fmt.Errorf("get user: %w", err)
	}

	if !found {
		_ = s.compare(s.dummyHash, []byte(password))

		s.Metrics.Login(metrics.OutcomeDenied)

		return false, nil
	}

	switch err := s.compare(record.PasswordHash, []byte(password)); {
	case err == nil:
		s.Metrics.Login(metrics.OutcomeSuccess)

		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		s.Metrics.Login(metrics.OutcomeDenied)

		return false, nil
	default:
		// the stored hash cannot be parsed: the record is corrupt
		s.Metrics.Login(metrics.OutcomeUnavailable)

		return false, errors.Join(domain.ErrStorageUnavailable, fmt.Errorf("compare hash: %w", err))
	}
}

// Close releases resources held by the store, such as database connections.
func (s *CredentialStore) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}

func validate(username, password string) error {
	switch {
	case username == "":
		return domain.ErrEmptyUsername
	case password == "":
		return domain.ErrEmptyPassword
	case len(password) > MaxPasswordLength:
		return fmt.Errorf("%w: %d bytes, max %d", domain.ErrPasswordTooLong, len(password), MaxPasswordLength)
	default:
		return nil
	}
}
