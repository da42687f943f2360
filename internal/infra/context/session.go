package context

import (
	"context"

	"github.com/mkrupp/kbchat/internal/domain"
)

const contextKeySession = contextKey("session")

// SessionFromContext extracts the caller's session from the context.
// Returns the session and true if present, or nil and false if not present.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	session, ok := ctx.Value(contextKeySession).(*domain.Session)

	return session, ok && session != nil
}

// WithSession creates a new context carrying the caller's session.
// Handlers mutate the session in place and save it when it changed.
func WithSession(ctx context.Context, session *domain.Session) context.Context {
	return context.WithValue(ctx, contextKeySession, session)
}
