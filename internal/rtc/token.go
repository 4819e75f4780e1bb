package rtc

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Roles a participant may join a channel with. The builder passes any
// other string through uninterpreted; enum validation, if wanted, belongs
// to the caller boundary.
const (
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// tokenVersion prefixes every credential so the format can evolve.
const tokenVersion = "v1"

var (
	ErrNotConfigured  = errors.New("RTC signing configuration missing or invalid")
	ErrChannelMissing = errors.New("channel name is required")
	ErrInvalidField   = errors.New("channel and role must not contain '|'")
	ErrInvalidToken   = errors.New("invalid credential token")
)

// BuildToken constructs a signed channel credential.
//
// The payload binds (appID, channel, uid, role, issuedAt, expireAt) plus an
// 8-byte random salt, so two calls with identical inputs never produce the
// same token. The signature is HMAC-SHA256 over the canonical payload keyed
// by the app certificate; the certificate is not recoverable from the token.
func BuildToken(appID, certificate, channel string, uid uint32, role string, ttl time.Duration, now time.Time) (string, error) {
	if appID == "" || certificate == "" {
		return "", ErrNotConfigured
	}
	if channel == "" {
		return "", ErrChannelMissing
	}
	// The payload is pipe-delimited; a '|' in a caller-supplied field would
	// sign correctly but never verify.
	if strings.Contains(channel, "|") || strings.Contains(role, "|") {
		return "", ErrInvalidField
	}

	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating token salt: %w", err)
	}

	issuedAt := now.Unix()
	expireAt := now.Add(ttl).Unix()
	payload := tokenPayload(appID, channel, uid, role, issuedAt, expireAt, hex.EncodeToString(salt))

	mac := hmac.New(sha256.New, []byte(certificate))
	mac.Write([]byte(payload))
	sig := mac.Sum(nil)

	return tokenVersion + "." +
		base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(sig), nil
}

// VerifyToken checks a credential's signature and expiry against the
// signing configuration. Used by tests and by operators debugging tokens;
// the RTC transport performs its own verification.
func VerifyToken(certificate, token string, now time.Time) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != tokenVersion {
		return ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return fmt.Errorf("%w: bad payload encoding", ErrInvalidToken)
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding", ErrInvalidToken)
	}

	mac := hmac.New(sha256.New, []byte(certificate))
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	fields := strings.Split(string(payload), "|")
	if len(fields) != 7 {
		return fmt.Errorf("%w: malformed payload", ErrInvalidToken)
	}
	var expireAt int64
	if _, err := fmt.Sscanf(fields[5], "%d", &expireAt); err != nil {
		return fmt.Errorf("%w: malformed expiry", ErrInvalidToken)
	}
	if now.Unix() >= expireAt {
		return fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	return nil
}

// tokenPayload creates the canonical data to sign.
// Format: appID|channel|uid|role|issuedAt|expireAt|salt
func tokenPayload(appID, channel string, uid uint32, role string, issuedAt, expireAt int64, salt string) string {
	return fmt.Sprintf("%s|%s|%d|%s|%d|%d|%s", appID, channel, uid, role, issuedAt, expireAt, salt)
}
