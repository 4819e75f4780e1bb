package rtc

import (
	"errors"
	"time"

	"github.com/parleyapp/parley/internal/models"
)

// TTLs are fixed per issuance path, regardless of caller input.
const (
	SessionTokenTTL = time.Hour     // session-bound issuance
	ChannelTokenTTL = 2 * time.Hour // channel-direct refresh
)

// ErrAudioUnsupported means the session exists but carries no channel
// identity. Distinct from not-found: the session is real, audio just is
// not enabled for it.
var ErrAudioUnsupported = errors.New("audio is not enabled for this session")

// Issuer mints channel credentials from the service signing configuration.
// It holds no mutable state; every call produces a fresh credential.
type Issuer struct {
	appID       string
	certificate string
	now         func() time.Time
}

// NewIssuer creates an issuer. Empty appID or certificate is allowed at
// construction time; issuance then fails with ErrNotConfigured.
func NewIssuer(appID, certificate string) *Issuer {
	return &Issuer{appID: appID, certificate: certificate, now: time.Now}
}

// Configured reports whether the signing configuration is present.
func (i *Issuer) Configured() bool {
	return i.appID != "" && i.certificate != ""
}

// AppID returns the configured application identifier.
func (i *Issuer) AppID() string {
	return i.appID
}

// IssueForSession mints a 1-hour credential bound to the session's channel.
// The session must already have been resolved as live by the caller.
// The configuration check runs before anything else so misconfiguration is
// reported uniformly across both issuance paths.
func (i *Issuer) IssueForSession(sess *models.Session, uid uint32, role string) (*models.Credential, error) {
	if !i.Configured() {
		return nil, ErrNotConfigured
	}
	if sess.ChannelName == "" {
		return nil, ErrAudioUnsupported
	}
	return i.issue(sess.ChannelName, uid, role, SessionTokenTTL)
}

// IssueForChannel mints a 2-hour credential for a caller-supplied channel
// name with no session lookup. This is the deliberately weaker-checked
// refresh path: an already-connected client extends its own access without
// a full re-validation round trip. Do not expose it where the session-bound
// path's checks are required.
func (i *Issuer) IssueForChannel(channel string, uid uint32, role string) (*models.Credential, error) {
	if !i.Configured() {
		return nil, ErrNotConfigured
	}
	if channel == "" {
		return nil, ErrChannelMissing
	}
	return i.issue(channel, uid, role, ChannelTokenTTL)
}

func (i *Issuer) issue(channel string, uid uint32, role string, ttl time.Duration) (*models.Credential, error) {
	if role == "" {
		role = RolePublisher
	}
	token, err := BuildToken(i.appID, i.certificate, channel, uid, role, ttl, i.now())
	if err != nil {
		return nil, err
	}
	return &models.Credential{
		Token:       token,
		ChannelName: channel,
		AppID:       i.appID,
		UID:         uid,
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}
