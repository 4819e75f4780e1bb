package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parleyapp/parley/internal/models"
	"github.com/parleyapp/parley/internal/store"
)

func TestResolveLiveSession(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSession(models.Session{
		ID:          "s1",
		ChannelName: "ch1",
		Active:      true,
		ExpiresAt:   time.Now().Add(time.Hour),
	})

	sess, err := NewAuthority(mem).Resolve(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.ChannelName != "ch1" {
		t.Errorf("channel = %q, want ch1", sess.ChannelName)
	}
}

func TestResolveCollapsesToNotFound(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSession(models.Session{
		ID:        "inactive",
		Active:    false,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	mem.PutSession(models.Session{
		ID:        "expired",
		Active:    true,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	mem.PutSession(models.Session{
		ID:        "just-expired",
		Active:    true,
		ExpiresAt: time.Now(), // expiry is strict: now is not in the future
	})

	a := NewAuthority(mem)

	// Missing, inactive and expired must all be indistinguishable.
	for _, id := range []string{"missing", "inactive", "expired", "just-expired"} {
		if _, err := a.Resolve(context.Background(), id); !errors.Is(err, store.ErrSessionNotFound) {
			t.Errorf("Resolve(%q) = %v, want ErrSessionNotFound", id, err)
		}
	}
}

func TestResolveDoesNotCache(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.PutSession(models.Session{
		ID:        "s1",
		Active:    true,
		ExpiresAt: time.Now().Add(50 * time.Millisecond),
	})

	a := NewAuthority(mem)
	if _, err := a.Resolve(context.Background(), "s1"); err != nil {
		t.Fatalf("session should be live: %v", err)
	}

	// Expiry is re-checked on every call.
	a.now = func() time.Time { return time.Now().Add(time.Second) }
	if _, err := a.Resolve(context.Background(), "s1"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expired session resolved: %v", err)
	}
}
