package session

import (
	"context"
	"sync"
	"time"

	"github.com/mkrupp/kbchat/internal/domain"
)

// MemorySessionRepository keeps sessions in process memory. Expired sessions are
// dropped when they are next looked up and swept on every save.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	// Now returns the current time; replaceable in tests.
	Now func() time.Time
}

var _ Repository = (*MemorySessionRepository)(nil)

// NewMemorySessionRepository creates an empty MemorySessionRepository.
func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[string]*domain.Session),
		Now:      time.Now,
	}
}

// Save implements Repository.Save.
func (r *MemorySessionRepository) Save(_ context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.Now()

	for id, stored := range r.sessions {
		if stored.Expired(now) {
			delete(r.sessions, id)
		}
	}

	r.sessions[session.ID] = session.Clone()

	return nil
}

// Get implements Repository.Get.
func (r *MemorySessionRepository) Get(_ context.Context, id string) (*domain.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, false, nil
	}

	if session.Expired(r.Now()) {
		delete(r.sessions, id)

		return nil, false, nil
	}

	return session.Clone(), true, nil
}

// Delete implements Repository.Delete.
func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, id)

	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (r *MemorySessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// Close implements Repository.Close.
func (r *MemorySessionRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.sessions)

	return nil
}
