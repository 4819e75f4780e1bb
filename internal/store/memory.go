package store

import (
	"context"
	"sync"

	"github.com/parleyapp/parley/internal/models"
)

// MemoryStore is an in-memory SessionStore for development and tests,
// standing in for the external sessions table when no DATABASE_URL is
// configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.Session)}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// GetSession returns a copy of the stored session, or ErrSessionNotFound.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := sess
	return &out, nil
}

// PutSession seeds a session record. Test/dev helper; the production store
// is read-only.
func (s *MemoryStore) PutSession(sess models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}
