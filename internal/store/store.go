package store

import (
	"context"
	"errors"

	"github.com/parleyapp/parley/internal/models"
)

// ErrSessionNotFound is returned when a session does not exist.
// Callers deliberately collapse "expired" and "inactive" into this error
// so requesters cannot distinguish the cases.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore defines read access to the sessions table owned by the
// external scheduling subsystem. Both PostgresStore and MemoryStore
// implement this interface. This service never writes session records.
type SessionStore interface {
	Close()
	Ping(ctx context.Context) error

	// GetSession returns the raw session record, or ErrSessionNotFound.
	// Liveness (active flag, expiry) is the caller's concern.
	GetSession(ctx context.Context, id string) (*models.Session, error)
}
