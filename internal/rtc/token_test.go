package rtc

import (
	"strings"
	"testing"
	"time"
)

func TestBuildTokenRequiresConfig(t *testing.T) {
	if _, err := BuildToken("", "cert", "ch1", 0, RolePublisher, time.Hour, time.Now()); err != ErrNotConfigured {
		t.Errorf("missing appID: got %v, want ErrNotConfigured", err)
	}
	if _, err := BuildToken("app", "", "ch1", 0, RolePublisher, time.Hour, time.Now()); err != ErrNotConfigured {
		t.Errorf("missing certificate: got %v, want ErrNotConfigured", err)
	}
}

func TestBuildTokenRequiresChannel(t *testing.T) {
	if _, err := BuildToken("app", "cert", "", 0, RolePublisher, time.Hour, time.Now()); err != ErrChannelMissing {
		t.Errorf("got %v, want ErrChannelMissing", err)
	}
}

func TestBuildTokenRejectsDelimiter(t *testing.T) {
	// A '|' in channel or role would sign correctly but corrupt the
	// pipe-delimited payload, so verification could never succeed.
	if _, err := BuildToken("app", "cert", "ch|1", 0, RolePublisher, time.Hour, time.Now()); err != ErrInvalidField {
		t.Errorf("channel with '|': got %v, want ErrInvalidField", err)
	}
	if _, err := BuildToken("app", "cert", "ch1", 0, "pub|lisher", time.Hour, time.Now()); err != ErrInvalidField {
		t.Errorf("role with '|': got %v, want ErrInvalidField", err)
	}
}

func TestBuildTokenUniquePerCall(t *testing.T) {
	now := time.Now()
	a, err := BuildToken("app", "cert", "ch1", 42, RolePublisher, time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := BuildToken("app", "cert", "ch1", 42, RolePublisher, time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	// Identical inputs at the same instant must still differ.
	if a == b {
		t.Error("two tokens with identical inputs are equal")
	}
}

func TestVerifyToken(t *testing.T) {
	now := time.Now()
	token, err := BuildToken("app", "cert", "ch1", 7, RoleSubscriber, time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}

	if err := VerifyToken("cert", token, now); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := VerifyToken("wrong-cert", token, now); err == nil {
		t.Error("token verified with the wrong certificate")
	}
	if err := VerifyToken("cert", token, now.Add(2*time.Hour)); err == nil {
		t.Error("expired token verified")
	}
}

func TestVerifyTokenMalformed(t *testing.T) {
	cases := []string{
		"",
		"v1",
		"v1.only-two",
		"v0.YQ.YQ",
		"v1.!!!.YQ",
	}
	for _, tok := range cases {
		if err := VerifyToken("cert", tok, time.Now()); err == nil {
			t.Errorf("malformed token %q verified", tok)
		}
	}
}

func TestTokenDoesNotLeakCertificate(t *testing.T) {
	token, err := BuildToken("app", "super-secret-cert", "ch1", 0, RolePublisher, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(token, "super-secret-cert") {
		t.Error("certificate appears in token")
	}
}
