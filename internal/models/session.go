package models

import "time"

// Session represents a consultation session record.
// Sessions are created and expired by the scheduling subsystem; this
// service only reads them to decide whether audio credentials may be issued.
type Session struct {
	ID          string    `json:"id"`
	ChannelName string    `json:"channel_name,omitempty"` // empty means audio is not enabled for this session
	Active      bool      `json:"active"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Live reports whether the session is eligible for credential issuance
// at the given instant.
func (s *Session) Live(now time.Time) bool {
	return s.Active && now.Before(s.ExpiresAt)
}
