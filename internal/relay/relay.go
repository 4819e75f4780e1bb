// Package relay validates chat messages and fans them out to session rooms.
package relay

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/parleyapp/parley/internal/models"
	"github.com/parleyapp/parley/internal/store"
)

const (
	maxContentLen = 1000
	minAliasLen   = 1
	maxAliasLen   = 50
)

var (
	ErrContentTooLong = fmt.Errorf("content must be at most %d characters", maxContentLen)
	ErrBadAlias       = fmt.Errorf("sender alias must be %d-%d characters", minAliasLen, maxAliasLen)
	ErrBadType        = errors.New("type must be one of text, emoji, media")
)

// Publisher broadcasts a payload to every current subscriber of a room.
// Membership belongs to the transport; the relay only publishes.
type Publisher interface {
	Publish(ctx context.Context, room string, payload []byte) error
}

// Inbound is a send request before canonicalization.
type Inbound struct {
	SenderID    int64
	SenderAlias string
	Content     string
	Type        string
	ReplyTo     string
	Attachment  *models.Attachment
}

// Relay turns inbound send requests into canonical messages and publishes
// them. It holds no message state; history is deliberately not retained.
type Relay struct {
	pub Publisher
	now func() time.Time
}

// NewRelay creates a relay over the given publisher.
func NewRelay(pub Publisher) *Relay {
	return &Relay{pub: pub, now: time.Now}
}

// Validate runs the send-path field checks without publishing. Callers
// with side effects of their own (attachment storage) use it to reject a
// doomed send before those effects happen.
func (r *Relay) Validate(in Inbound) error {
	_, err := canonicalize(in)
	return err
}

// canonicalize trims, defaults and bounds the inbound fields. Limits are
// counted in characters, not bytes.
func canonicalize(in Inbound) (Inbound, error) {
	in.Content = strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(in.Content) > maxContentLen {
		return in, ErrContentTooLong
	}

	in.SenderAlias = strings.TrimSpace(in.SenderAlias)
	if n := utf8.RuneCountInString(in.SenderAlias); n < minAliasLen || n > maxAliasLen {
		return in, ErrBadAlias
	}

	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	switch in.Type {
	case models.MessageTypeText, models.MessageTypeEmoji, models.MessageTypeMedia:
	default:
		return in, ErrBadType
	}

	return in, nil
}

// Send validates the inbound message, builds the canonical record and
// publishes it to the session's room. All validation happens before the
// publish call. The returned message acknowledges that publish was
// attempted; per-subscriber delivery is best-effort and not confirmed.
// Send is not idempotent and must not be auto-retried.
func (r *Relay) Send(ctx context.Context, sessionID string, in Inbound) (*models.ChatMessage, error) {
	in, err := canonicalize(in)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	msg := &models.ChatMessage{
		ID:          ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		SessionID:   sessionID,
		SenderID:    in.SenderID,
		SenderAlias: in.SenderAlias,
		Content:     in.Content,
		Type:        in.Type,
		Timestamp:   now.Format(time.RFC3339),
		Attachment:  in.Attachment,
		ReplyTo:     in.ReplyTo,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}

	if err := r.pub.Publish(ctx, store.RoomKey(sessionID), payload); err != nil {
		return nil, fmt.Errorf("publishing message: %w", err)
	}

	return msg, nil
}

// Backlog returns the retained message history for a session. Message
// history is not retained by this service, so the result is always an
// empty slice with hasMore=false, for any session id, limit or cursor.
// Callers may depend on this; if persistence is ever added it must arrive
// as a new capability rather than a silent change here.
func (r *Relay) Backlog(ctx context.Context, sessionID string, limit int, before string) ([]models.ChatMessage, bool, error) {
	return []models.ChatMessage{}, false, nil
}
