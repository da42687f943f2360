package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkrupp/kbchat/internal/domain"
	context_ "github.com/mkrupp/kbchat/internal/infra/context"
)

func TestContextValues(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, ok := context_.TraceIDFromContext(ctx)
	assert.False(t, ok)
	_, ok = context_.UsernameFromContext(ctx)
	assert.False(t, ok)
	_, ok = context_.SessionFromContext(ctx)
	assert.False(t, ok)

	session := &domain.Session{ID: "s1", State: domain.SessionAuthenticated, Username: "alice"}

	ctx = context_.WithTraceID(ctx, "trace-1")
	ctx = context_.WithUsername(ctx, "alice")
	ctx = context_.WithSession(ctx, session)

	traceID, ok := context_.TraceIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", traceID)

	username, ok := context_.UsernameFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", username)

	got, ok := context_.SessionFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, session, got)
}

func TestEmptyUsernameIsAbsent(t *testing.T) {
	t.Parallel()

	_, ok := context_.UsernameFromContext(context_.WithUsername(context.Background(), ""))
	assert.False(t, ok)
}
