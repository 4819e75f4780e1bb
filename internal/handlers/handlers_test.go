package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/parleyapp/parley/internal/api"
	"github.com/parleyapp/parley/internal/config"
	"github.com/parleyapp/parley/internal/files"
	"github.com/parleyapp/parley/internal/handlers"
	"github.com/parleyapp/parley/internal/models"
	"github.com/parleyapp/parley/internal/relay"
	"github.com/parleyapp/parley/internal/rtc"
	"github.com/parleyapp/parley/internal/session"
	"github.com/parleyapp/parley/internal/store"
)

const testSecret = "test-secret"

// capturePublisher records relay publishes.
type capturePublisher struct {
	calls    int
	lastRoom string
	err      error
}

func (p *capturePublisher) Publish(ctx context.Context, room string, payload []byte) error {
	p.calls++
	p.lastRoom = room
	return p.err
}

// stubSubscriber satisfies the websocket surface without upgrading.
type stubSubscriber struct{}

func (stubSubscriber) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) {
	w.WriteHeader(http.StatusSwitchingProtocols)
}

type testEnv struct {
	router    *chi.Mux
	sessions  *store.MemoryStore
	pub       *capturePublisher
	uploadDir string
}

func newEnv(t *testing.T, configured bool) *testEnv {
	t.Helper()

	cfg := &config.Config{Port: "0", Env: "test", JWTSecret: testSecret}
	mem := store.NewMemoryStore()
	pub := &capturePublisher{}

	appID, cert := "", ""
	if configured {
		appID, cert = "test-app", "test-cert"
	}
	issuer := rtc.NewIssuer(appID, cert)

	dir := t.TempDir()
	disk, err := files.NewDiskStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	h := handlers.NewHandler(
		session.NewAuthority(mem),
		issuer,
		relay.NewRelay(pub),
		files.NewGate(disk),
		disk,
		stubSubscriber{},
		mem,
		nil,
		zerolog.Nop(),
	)

	return &testEnv{
		router:    api.NewRouter(cfg, zerolog.Nop(), h, nil),
		sessions:  mem,
		pub:       pub,
		uploadDir: dir,
	}
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  int64(7),
		"name": "alice",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + signed
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func doJSON(t *testing.T, router *chi.Mux, method, path, auth string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %s", rec.Body.String())
	}
	return rec, env
}

func liveSession(id, channel string) models.Session {
	return models.Session{
		ID:          id,
		ChannelName: channel,
		Active:      true,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func TestCreateTokenEndToEnd(t *testing.T) {
	e := newEnv(t, true)
	e.sessions.PutSession(liveSession("s1", "ch1"))

	rec, env := doJSON(t, e.router, "POST", "/token", "", map[string]any{"sessionId": "s1"})
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var cred models.Credential
	if err := json.Unmarshal(env.Data, &cred); err != nil {
		t.Fatal(err)
	}
	if cred.ChannelName != "ch1" {
		t.Errorf("channelName = %q, want ch1", cred.ChannelName)
	}
	if cred.ExpiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", cred.ExpiresIn)
	}
	if cred.UID != 0 {
		t.Errorf("uid = %d, want 0", cred.UID)
	}
	if cred.Token == "" {
		t.Error("token empty")
	}
}

func TestCreateTokenSessionErrors(t *testing.T) {
	e := newEnv(t, true)
	e.sessions.PutSession(models.Session{
		ID:        "expired",
		Active:    true,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	e.sessions.PutSession(liveSession("no-audio", ""))

	cases := []struct {
		name       string
		sessionID  string
		wantStatus int
		wantCode   string
	}{
		{"missing session", "nope", http.StatusNotFound, handlers.CodeNotFound},
		{"expired session", "expired", http.StatusNotFound, handlers.CodeNotFound},
		{"no channel identity", "no-audio", http.StatusBadRequest, handlers.CodeFeatureUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := doJSON(t, e.router, "POST", "/token", "", map[string]any{"sessionId": tc.sessionID})
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if env.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", env.Code, tc.wantCode)
			}
		})
	}
}

func TestCreateTokenUnconfigured(t *testing.T) {
	e := newEnv(t, false)
	e.sessions.PutSession(liveSession("s1", "ch1"))

	rec, env := doJSON(t, e.router, "POST", "/token", "", map[string]any{"sessionId": "s1"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if env.Code != handlers.CodeConfiguration {
		t.Errorf("code = %q, want %q", env.Code, handlers.CodeConfiguration)
	}
}

func TestRefreshToken(t *testing.T) {
	e := newEnv(t, true)

	rec, env := doJSON(t, e.router, "POST", "/refresh-token", "", map[string]any{"channelName": "ch9", "uid": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var cred models.Credential
	if err := json.Unmarshal(env.Data, &cred); err != nil {
		t.Fatal(err)
	}
	if cred.ChannelName != "ch9" || cred.UID != 5 {
		t.Errorf("echo fields = %q/%d", cred.ChannelName, cred.UID)
	}
	if cred.ExpiresIn != 7200 {
		t.Errorf("expiresIn = %d, want 7200", cred.ExpiresIn)
	}
}

func TestRefreshTokenRequiresChannel(t *testing.T) {
	e := newEnv(t, true)

	rec, env := doJSON(t, e.router, "POST", "/refresh-token", "", map[string]any{})
	if rec.Code != http.StatusBadRequest || env.Code != handlers.CodeValidation {
		t.Errorf("status = %d, code = %q", rec.Code, env.Code)
	}
}

func TestStatus(t *testing.T) {
	for _, configured := range []bool{true, false} {
		e := newEnv(t, configured)

		rec, env := doJSON(t, e.router, "GET", "/status", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp handlers.StatusResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			t.Fatal(err)
		}
		if resp.AudioEnabled != configured {
			t.Errorf("audioEnabled = %v, want %v", resp.AudioEnabled, configured)
		}
	}
}

func TestSendMessage(t *testing.T) {
	e := newEnv(t, true)

	body := map[string]any{"content": "hi there", "participantAlias": "Alice"}
	rec, env := doJSON(t, e.router, "POST", "/sessions/s1/messages", bearer(t, models.RoleUser), body)
	if rec.Code != http.StatusCreated || !env.Success {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if e.pub.calls != 1 {
		t.Errorf("publish calls = %d, want 1", e.pub.calls)
	}
	if e.pub.lastRoom != store.RoomKey("s1") {
		t.Errorf("room = %q", e.pub.lastRoom)
	}

	var msg models.ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.ID == "" || msg.SessionID != "s1" || msg.SenderID != 7 {
		t.Errorf("message = %+v", msg)
	}
}

func TestSendMessageRequiresAuth(t *testing.T) {
	e := newEnv(t, true)

	body := map[string]any{"content": "hi", "participantAlias": "Alice"}
	rec, env := doJSON(t, e.router, "POST", "/sessions/s1/messages", "", body)
	if rec.Code != http.StatusUnauthorized || env.Code != handlers.CodeUnauthorized {
		t.Errorf("status = %d, code = %q", rec.Code, env.Code)
	}
	if e.pub.calls != 0 {
		t.Errorf("publish calls = %d, want 0", e.pub.calls)
	}
}

func TestSendMessageValidationBeforePublish(t *testing.T) {
	e := newEnv(t, true)

	body := map[string]any{
		"content":          strings.Repeat("x", 1001),
		"participantAlias": "Alice",
	}
	rec, env := doJSON(t, e.router, "POST", "/sessions/s1/messages", bearer(t, models.RoleUser), body)
	if rec.Code != http.StatusBadRequest || env.Code != handlers.CodeValidation {
		t.Errorf("status = %d, code = %q", rec.Code, env.Code)
	}
	if e.pub.calls != 0 {
		t.Errorf("publish calls = %d, want 0", e.pub.calls)
	}
}

func TestSendMessageWithAttachment(t *testing.T) {
	e := newEnv(t, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("content", "see attached")
	_ = mw.WriteField("participantAlias", "Alice")
	_ = mw.WriteField("type", "media")
	fw, err := mw.CreateFormFile("attachment", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("attachment body"))
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/sessions/s1/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, models.RoleUser))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	var msg models.ChatMessage
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Attachment == nil {
		t.Fatal("attachment missing from canonical message")
	}
	if !strings.HasPrefix(msg.Attachment.URL, "/uploads/") {
		t.Errorf("attachment url = %q", msg.Attachment.URL)
	}
	if msg.Attachment.FileName != "notes.txt" {
		t.Errorf("attachment file name = %q", msg.Attachment.FileName)
	}

	// The stored file is servable through the admin tier.
	stored := strings.TrimPrefix(msg.Attachment.URL, "/uploads/")
	if _, err := os.Stat(filepath.Join(e.uploadDir, stored)); err != nil {
		t.Errorf("stored attachment missing: %v", err)
	}
}

func multipartSend(t *testing.T, content, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("content", content)
	_ = mw.WriteField("participantAlias", "Alice")
	fw, err := mw.CreateFormFile("attachment", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("attachment body"))
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func assertUploadsEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("uploads dir not empty: %d file(s), first %q", len(entries), entries[0].Name())
	}
}

func TestRejectedSendStoresNoAttachment(t *testing.T) {
	e := newEnv(t, true)

	// Over-long content plus an attachment: the field validation must run
	// before the attachment touches disk.
	buf, contentType := multipartSend(t, strings.Repeat("x", 1001), "notes.txt")
	req := httptest.NewRequest("POST", "/sessions/s1/messages", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, models.RoleUser))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if e.pub.calls != 0 {
		t.Errorf("publish calls = %d, want 0", e.pub.calls)
	}
	assertUploadsEmpty(t, e.uploadDir)
}

func TestFailedPublishRemovesAttachment(t *testing.T) {
	e := newEnv(t, true)
	e.pub.err = errors.New("transport down")

	buf, contentType := multipartSend(t, "see attached", "notes.txt")
	req := httptest.NewRequest("POST", "/sessions/s1/messages", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearer(t, models.RoleUser))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	// The stored attachment is rolled back when the publish fails.
	assertUploadsEmpty(t, e.uploadDir)
}

func TestSendMessageRejectsBadAttachment(t *testing.T) {
	e := newEnv(t, true)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("content", "payload")
	_ = mw.WriteField("participantAlias", "Mallory")
	fw, _ := mw.CreateFormFile("attachment", "evil.exe")
	_, _ = fw.Write([]byte("MZ"))
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/sessions/s1/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, models.RoleUser))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if e.pub.calls != 0 {
		t.Errorf("publish calls = %d, want 0", e.pub.calls)
	}
}

func TestGetMessagesAlwaysEmpty(t *testing.T) {
	e := newEnv(t, true)

	rec, env := doJSON(t, e.router, "GET", "/sessions/s1/messages?limit=200&before=01ARZ", bearer(t, models.RoleUser), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp handlers.MessagesResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Messages) != 0 || resp.HasMore {
		t.Errorf("backlog = %+v, want empty with hasMore=false", resp)
	}
}

func TestServeAvatar(t *testing.T) {
	e := newEnv(t, true)
	if err := os.WriteFile(filepath.Join(e.uploadDir, "face.png"), []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/avatar/face.png", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=86400" {
		t.Errorf("cache control = %q", cc)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestServeAvatarInvalidFormat(t *testing.T) {
	e := newEnv(t, true)

	rec, env := doJSON(t, e.router, "GET", "/avatar/evil.exe", "", nil)
	if rec.Code != http.StatusBadRequest || env.Code != handlers.CodeInvalidFormat {
		t.Errorf("status = %d, code = %q", rec.Code, env.Code)
	}
}

func TestServeUploadTiers(t *testing.T) {
	e := newEnv(t, true)
	if err := os.WriteFile(filepath.Join(e.uploadDir, "report.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Anonymous: blocked by the auth middleware.
	rec, _ := doJSON(t, e.router, "GET", "/uploads/report.pdf", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	// Authenticated non-admin: forbidden.
	rec, env := doJSON(t, e.router, "GET", "/uploads/report.pdf", bearer(t, models.RoleUser), nil)
	if rec.Code != http.StatusForbidden || env.Code != handlers.CodeForbidden {
		t.Errorf("non-admin status = %d, code = %q", rec.Code, env.Code)
	}

	// Admin: served inline with the mapped MIME type.
	req := httptest.NewRequest("GET", "/uploads/report.pdf", nil)
	req.Header.Set("Authorization", bearer(t, models.RoleAdmin))
	plain := httptest.NewRecorder()
	e.router.ServeHTTP(plain, req)

	if plain.Code != http.StatusOK {
		t.Fatalf("admin status = %d, body = %s", plain.Code, plain.Body.String())
	}
	if ct := plain.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := plain.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "inline") {
		t.Errorf("disposition = %q", cd)
	}

	// Admin, missing file: 404 after policy passes.
	rec, env = doJSON(t, e.router, "GET", "/uploads/missing.pdf", bearer(t, models.RoleAdmin), nil)
	if rec.Code != http.StatusNotFound || env.Code != handlers.CodeNotFound {
		t.Errorf("missing file status = %d, code = %q", rec.Code, env.Code)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t, true)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp handlers.HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q", resp.Status)
	}
}
