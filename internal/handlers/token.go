package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/parleyapp/parley/internal/metrics"
)

// TokenRequest represents the credential issuance request body.
// SessionID addresses the session-bound path; ChannelName the refresh path.
type TokenRequest struct {
	SessionID   string `json:"sessionId,omitempty"`
	ChannelName string `json:"channelName,omitempty"`
	UID         uint32 `json:"uid,omitempty"`  // 0 = unassigned/auto
	Role        string `json:"role,omitempty"` // defaults to publisher
}

// CreateToken handles POST /token: a session-bound credential. The session
// must resolve as live, and audio must be enabled for it.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "sessionId is required")
		return
	}

	sess, err := h.authority.Resolve(r.Context(), req.SessionID)
	if err != nil {
		h.FailErr(w, err)
		return
	}

	cred, err := h.issuer.IssueForSession(sess, req.UID, req.Role)
	if err != nil {
		h.FailErr(w, err)
		return
	}

	metrics.TokensIssued.WithLabelValues("session").Inc()
	h.JSON(w, http.StatusOK, cred)
}

// RefreshToken handles POST /refresh-token: a channel-direct credential
// with no session lookup. Weaker trust level by design; see rtc.Issuer.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}
	if req.ChannelName == "" {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "channelName is required")
		return
	}

	cred, err := h.issuer.IssueForChannel(req.ChannelName, req.UID, req.Role)
	if err != nil {
		h.FailErr(w, err)
		return
	}

	metrics.TokensIssued.WithLabelValues("channel").Inc()
	h.JSON(w, http.StatusOK, cred)
}

// StatusResponse reports signing-config presence and implied features.
type StatusResponse struct {
	AudioEnabled bool   `json:"audioEnabled"`
	AppID        string `json:"appId,omitempty"`
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{AudioEnabled: h.issuer.Configured()}
	if resp.AudioEnabled {
		resp.AppID = h.issuer.AppID()
	}
	h.JSON(w, http.StatusOK, resp)
}
