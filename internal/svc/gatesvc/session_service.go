package gatesvc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
	"github.com/mkrupp/kbchat/internal/infra/metrics"
	"github.com/mkrupp/kbchat/internal/repo/session"
	"github.com/mkrupp/kbchat/internal/util/token"
)

// SessionIDSize is the number of random bytes in a session id.
const SessionIDSize = 32

// SessionConfig contains configuration parameters for sessions and their cookie.
type SessionConfig struct {
	// TTL is how long a session lives after it was last saved
	TTL time.Duration `env:"TTL" default:"28800"` // 8h
	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"kbchat_session"`
	// CookieSecure restricts the cookie to HTTPS
	CookieSecure bool `env:"COOKIE_SECURE" default:"false"`
}

// SessionService starts, loads, persists and ends sessions.
type SessionService struct {
	Config      SessionConfig
	SessionRepo session.Repository
	Creds       Credentials
	Log         logging.Logger
	Metrics     *metrics.Metrics

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

// NewSessionService creates a SessionService with a repository from the given factory.
func NewSessionService(
	repoFactory session.RepositoryFactory,
	creds Credentials,
	cfg SessionConfig,
	m *metrics.Metrics,
) (*SessionService, error) {
	sessionRepo, err := repoFactory()
	if err != nil {
		return nil, fmt.Errorf("new session repo: %w", err)
	}

	return &SessionService{
		Config:      cfg,
		SessionRepo: sessionRepo,
		Creds:       creds,
		Log:         logging.GetLogger("svc.gatesvc.session_service"),
		Metrics:     m,
		Now:         time.Now,
	}, nil
}

// Start creates a new unauthenticated session. The session is not stored until it is saved.
func (s *SessionService) Start(ctx context.Context) (*domain.Session, error) {
	id, err := token.New(SessionIDSize)
	if err != nil {
		return nil, fmt.Errorf("new session id: %w", err)
	}

	s.Metrics.SessionStarted()
	s.Log.DebugContext(ctx, "session started")

	return domain.NewSession(id, s.Now(), s.Config.TTL), nil
}

// Load returns the stored session with the given id.
// Returns domain.ErrSessionNotFound if the id is malformed, unknown or expired.
func (s *SessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	if !token.Valid(id, SessionIDSize) {
		return nil, domain.ErrSessionNotFound
	}

	sess, found, err := s.SessionRepo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if !found || sess.Expired(s.Now()) {
		return nil, domain.ErrSessionNotFound
	}

	return sess, nil
}

// Save stores the session and extends its expiry by the configured TTL.
func (s *SessionService) Save(ctx context.Context, sess *domain.Session) error {
	sess.ExpiresAt = s.Now().Add(s.Config.TTL).Unix()

	if err := s.SessionRepo.Save(ctx, sess); err != nil {
		s.Log.ErrorContext(ctx, "save session failed", "error", err)

		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// Renew moves the session to a fresh id and removes the old one from storage,
// so an id issued before login is worthless afterwards.
func (s *SessionService) Renew(ctx context.Context, sess *domain.Session) error {
	id, err := token.New(SessionIDSize)
	if err != nil {
		return fmt.Errorf("new session id: %w", err)
	}

	if err := s.SessionRepo.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	sess.ID = id

	return nil
}

// End removes the session from storage. Ending an unknown session is not an error.
func (s *SessionService) End(ctx context.Context, id string) error {
	if err := s.SessionRepo.Delete(ctx, id); err != nil {
		s.Log.ErrorContext(ctx, "end session failed", "error", err)

		return fmt.Errorf("delete session: %w", err)
	}

	s.Metrics.SessionEnded()
	s.Log.DebugContext(ctx, "session ended")

	return nil
}

// Gate returns the gate guarding sess.
func (s *SessionService) Gate(sess *domain.Session) *Gate {
	return NewGate(sess, s.Creds)
}

// Close releases resources held by the service.
func (s *SessionService) Close() error {
	if err := s.SessionRepo.Close(); err != nil {
		return fmt.Errorf("close session repo: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrSessionNotFound)
}
