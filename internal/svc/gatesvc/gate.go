// Package gatesvc implements the session gate: the per-session authorization state
// machine in front of the chat, and the lifecycle of the sessions it guards.
package gatesvc

import (
	"context"
	"fmt"

	"github.com/mkrupp/kbchat/internal/domain"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

// Credentials is the part of the credential store the gate delegates to.
type Credentials interface {
	Register(ctx context.Context, username, password string) (bool, error)
	Verify(ctx context.Context, username, password string) (bool, error)
}

// Gate holds the authorization state of one session.
//
//	Unauthenticated --AttemptLogin(ok)--> Authenticated
//	Authenticated   --Logout-----------> Unauthenticated
//
// A failed login and Register never change the state.
type Gate struct {
	session *domain.Session
	creds   Credentials
	log     logging.Logger
}

// NewGate creates a gate over session. Transitions mutate session in place.
func NewGate(session *domain.Session, creds Credentials) *Gate {
	return &Gate{
		session: session,
		creds:   creds,
		log:     logging.GetLogger("svc.gatesvc.gate"),
	}
}

// Session returns the session the gate operates on.
func (g *Gate) Session() *domain.Session {
	return g.session
}

// IsAuthenticated reports whether the session has passed a login.
func (g *Gate) IsAuthenticated() bool {
	return g.session.Authenticated()
}

// AttemptLogin verifies the credentials and, if they match, authenticates the session.
// Wrong credentials return false and leave the state unchanged.
func (g *Gate) AttemptLogin(ctx context.Context, username, password string) (bool, error) {
	ok, err := g.creds.Verify(ctx, username, password)
	if err != nil {
		return false, fmt.Errorf("verify credentials: %w", err)
	}

	if !ok {
		return false, nil
	}

	if g.session.Username != username {
		// another user's conversation must not carry over
		g.session.Messages = nil
		g.session.KnowledgeSessionID = ""
	}

	g.session.State = domain.SessionAuthenticated
	g.session.Username = username

	g.log.DebugContext(ctx, "session authenticated", logging.Group("user", "username", username))

	return true, nil
}

// Register creates a user. It does not authenticate the session.
func (g *Gate) Register(ctx context.Context, username, password string) (bool, error) {
	created, err := g.creds.Register(ctx, username, password)
	if err != nil {
		return false, fmt.Errorf("register: %w", err)
	}

	return created, nil
}

// Logout returns the session to the unauthenticated state and drops the conversation.
func (g *Gate) Logout() {
	g.session.State = domain.SessionUnauthenticated
	g.session.Username = ""
	g.session.Messages = nil
	g.session.KnowledgeSessionID = ""
}
