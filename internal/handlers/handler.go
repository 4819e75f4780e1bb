// Package handlers implements the HTTP surface over the core components.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/parleyapp/parley/internal/files"
	"github.com/parleyapp/parley/internal/relay"
	"github.com/parleyapp/parley/internal/rtc"
	"github.com/parleyapp/parley/internal/session"
	"github.com/parleyapp/parley/internal/store"
)

// Machine-checkable error codes carried in the response envelope.
const (
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeFeatureUnsupported = "FEATURE_UNSUPPORTED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInvalidFormat      = "INVALID_FORMAT"
	CodeInternal           = "INTERNAL_ERROR"
)

// envelope is the uniform response shape for every JSON endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Subscriber joins a websocket request to a session room. Implemented by
// the gateway hub.
type Subscriber interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	authority *session.Authority
	issuer    *rtc.Issuer
	relay     *relay.Relay
	gate      *files.Gate
	disk      *files.DiskStore
	sub       Subscriber
	sessions  store.SessionStore
	redis     *store.RedisStore // nil when running without redis
	logger    zerolog.Logger
}

// NewHandler creates a new Handler with the given collaborators.
func NewHandler(
	authority *session.Authority,
	issuer *rtc.Issuer,
	rel *relay.Relay,
	gate *files.Gate,
	disk *files.DiskStore,
	sub Subscriber,
	sessions store.SessionStore,
	redis *store.RedisStore,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		authority: authority,
		issuer:    issuer,
		relay:     rel,
		gate:      gate,
		disk:      disk,
		sub:       sub,
		sessions:  sessions,
		redis:     redis,
		logger:    logger,
	}
}

// JSON sends a success envelope with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

// Fail sends an error envelope with the given status, code and message.
func (h *Handler) Fail(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: message, Code: code})
}

// FailErr maps a domain error to its envelope. Unknown errors become
// INTERNAL_ERROR with a generic message; internals are never exposed.
func (h *Handler) FailErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rtc.ErrNotConfigured):
		h.Fail(w, http.StatusServiceUnavailable, CodeConfiguration, "audio service is not configured")
	case errors.Is(err, rtc.ErrAudioUnsupported):
		h.Fail(w, http.StatusBadRequest, CodeFeatureUnsupported, rtc.ErrAudioUnsupported.Error())
	case errors.Is(err, rtc.ErrChannelMissing):
		h.Fail(w, http.StatusBadRequest, CodeValidation, rtc.ErrChannelMissing.Error())
	case errors.Is(err, rtc.ErrInvalidField):
		h.Fail(w, http.StatusBadRequest, CodeValidation, rtc.ErrInvalidField.Error())
	case errors.Is(err, store.ErrSessionNotFound):
		h.Fail(w, http.StatusNotFound, CodeNotFound, store.ErrSessionNotFound.Error())
	case errors.Is(err, relay.ErrContentTooLong),
		errors.Is(err, relay.ErrBadAlias),
		errors.Is(err, relay.ErrBadType):
		h.Fail(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, files.ErrUnauthorized):
		h.Fail(w, http.StatusUnauthorized, CodeUnauthorized, files.ErrUnauthorized.Error())
	case errors.Is(err, files.ErrForbidden):
		h.Fail(w, http.StatusForbidden, CodeForbidden, files.ErrForbidden.Error())
	case errors.Is(err, files.ErrInvalidFormat):
		h.Fail(w, http.StatusBadRequest, CodeInvalidFormat, files.ErrInvalidFormat.Error())
	case errors.Is(err, files.ErrInvalidName):
		h.Fail(w, http.StatusBadRequest, CodeValidation, files.ErrInvalidName.Error())
	case errors.Is(err, files.ErrNotFound):
		h.Fail(w, http.StatusNotFound, CodeNotFound, files.ErrNotFound.Error())
	default:
		h.logger.Error().Err(err).Msg("unexpected error")
		h.Fail(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
