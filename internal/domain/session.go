package domain

import (
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or the session has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotAuthenticated is returned when an operation needs an authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// SessionState is the authorization state of an interactive session.
type SessionState string

const (
	SessionUnauthenticated SessionState = "unauthenticated"
	SessionAuthenticated   SessionState = "authenticated"
)

// Session is the per-session state carried through every request of one interactive user.
// It holds the authorization flag and the conversation, and nothing else survives it.
type Session struct {
	ID                 string        `json:"id"`
	State              SessionState  `json:"state"`
	Username           string        `json:"username,omitempty"`
	Messages           []ChatMessage `json:"messages,omitempty"`
	KnowledgeSessionID string        `json:"knowledgeSessionId,omitempty"`
	CreatedAt          int64         `json:"createdAt"`
	ExpiresAt          int64         `json:"expiresAt"`
}

// NewSession creates an unauthenticated session that expires after ttl.
func NewSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        id,
		State:     SessionUnauthenticated,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
}

// Authenticated reports whether the session has passed a login.
func (s *Session) Authenticated() bool {
	return s != nil && s.State == SessionAuthenticated
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// TTL returns the time left until the session expires, never negative.
func (s *Session) TTL(now time.Time) time.Duration {
	ttl := time.Unix(s.ExpiresAt, 0).Sub(now)
	if ttl < 0 {
		return 0
	}

	return ttl
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	if s.Messages != nil {
		clone.Messages = make([]ChatMessage, len(s.Messages))
		copy(clone.Messages, s.Messages)
	}

	return &clone
}

// SessionStatusResponse reports the authorization state of the caller's session.
type SessionStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}
