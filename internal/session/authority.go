// Package session resolves session ids to live session records.
package session

import (
	"context"
	"time"

	"github.com/parleyapp/parley/internal/models"
	"github.com/parleyapp/parley/internal/store"
)

// Authority resolves session ids against the external sessions table and
// enforces liveness. It performs no caching: sessions expire independently
// of this service's lifetime, so every call re-checks.
type Authority struct {
	sessions store.SessionStore
	now      func() time.Time
}

// NewAuthority creates an authority over the given session store.
func NewAuthority(sessions store.SessionStore) *Authority {
	return &Authority{sessions: sessions, now: time.Now}
}

// Resolve returns the session if it is active and strictly unexpired at
// lookup time. Inactive and expired sessions are indistinguishable from
// missing ones: all three return store.ErrSessionNotFound, so nothing about
// a session's existence leaks to the requester.
func (a *Authority) Resolve(ctx context.Context, id string) (*models.Session, error) {
	sess, err := a.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Live(a.now()) {
		return nil, store.ErrSessionNotFound
	}
	return sess, nil
}
