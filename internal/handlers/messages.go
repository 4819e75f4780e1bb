package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parleyapp/parley/internal/api/middleware"
	"github.com/parleyapp/parley/internal/files"
	"github.com/parleyapp/parley/internal/metrics"
	"github.com/parleyapp/parley/internal/models"
	"github.com/parleyapp/parley/internal/relay"
)

// MaxSendBody bounds the send endpoint's request body: one attachment at
// the upload limit plus headroom for the form fields.
const MaxSendBody = files.MaxAttachmentSize + 64*1024

// SendMessageRequest represents the JSON send body. Multipart requests
// carry the same fields plus a single "attachment" file part.
type SendMessageRequest struct {
	Content          string `json:"content"`
	Type             string `json:"type,omitempty"`
	ParticipantAlias string `json:"participantAlias"`
	ReplyTo          string `json:"replyTo,omitempty"`
}

// MessagesResponse represents the backlog response.
type MessagesResponse struct {
	Messages []models.ChatMessage `json:"messages"`
	HasMore  bool                 `json:"hasMore"`
}

// SendMessage handles POST /sessions/{sessionID}/messages (authenticated).
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Fail(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	var req SendMessageRequest
	var attachment *models.Attachment

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		var err error
		req, attachment, err = h.parseMultipartSend(w, r)
		if err != nil {
			return // parseMultipartSend already wrote the error
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.Fail(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
			return
		}
	}

	msg, err := h.relay.Send(r.Context(), sessionID, relay.Inbound{
		SenderID:    ident.UserID,
		SenderAlias: req.ParticipantAlias,
		Content:     req.Content,
		Type:        req.Type,
		ReplyTo:     req.ReplyTo,
		Attachment:  attachment,
	})
	if err != nil {
		if attachment != nil {
			// The send failed after the attachment was stored; remove it
			// so nothing admin-servable is left behind.
			stored := strings.TrimPrefix(attachment.URL, "/uploads/")
			if rmErr := h.disk.Remove(r.Context(), stored); rmErr != nil {
				h.logger.Warn().Err(rmErr).Str("filename", stored).Msg("removing orphaned attachment failed")
			}
		}
		h.FailErr(w, err)
		return
	}

	metrics.MessagesRelayed.WithLabelValues(msg.Type).Inc()
	h.JSON(w, http.StatusCreated, msg)
}

// parseMultipartSend extracts the send fields and the optional single
// attachment from a multipart body. The attachment is validated before it
// is stored; a stored attachment is referenced by its generated name.
func (h *Handler) parseMultipartSend(w http.ResponseWriter, r *http.Request) (SendMessageRequest, *models.Attachment, error) {
	req := SendMessageRequest{}

	if err := r.ParseMultipartForm(files.MaxAttachmentSize); err != nil {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "invalid multipart body")
		return req, nil, err
	}

	req.Content = r.FormValue("content")
	req.Type = r.FormValue("type")
	req.ParticipantAlias = r.FormValue("participantAlias")
	req.ReplyTo = r.FormValue("replyTo")

	// Field validation runs before the attachment touches disk: a send
	// rejected for its content must not leave a stored file behind.
	if err := h.relay.Validate(relay.Inbound{
		SenderAlias: req.ParticipantAlias,
		Content:     req.Content,
		Type:        req.Type,
	}); err != nil {
		h.FailErr(w, err)
		return req, nil, err
	}

	file, header, err := r.FormFile("attachment")
	if err != nil {
		if err == http.ErrMissingFile {
			return req, nil, nil
		}
		h.Fail(w, http.StatusBadRequest, CodeValidation, "invalid attachment")
		return req, nil, err
	}
	defer file.Close()

	if header.Size > files.MaxAttachmentSize {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "attachment exceeds 10MB limit")
		return req, nil, http.ErrMissingFile
	}
	if !files.AllowedAttachment(header.Filename) {
		h.Fail(w, http.StatusBadRequest, CodeValidation, "attachment type not allowed")
		return req, nil, http.ErrMissingFile
	}

	stored, size, err := h.disk.Save(r.Context(), header.Filename, file)
	if err != nil {
		h.logger.Error().Err(err).Msg("storing attachment failed")
		h.Fail(w, http.StatusInternalServerError, CodeInternal, "failed to store attachment")
		return req, nil, err
	}
	metrics.AttachmentsStored.Inc()

	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}

	return req, &models.Attachment{
		URL:         "/uploads/" + stored,
		FileName:    header.Filename,
		ContentType: ct,
		Size:        size,
	}, nil
}

// GetMessages handles GET /sessions/{sessionID}/messages (authenticated).
// Message history is not retained, so this always returns an empty list;
// see relay.Backlog.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Fail(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	before := r.URL.Query().Get("before")

	msgs, hasMore, err := h.relay.Backlog(r.Context(), sessionID, limit, before)
	if err != nil {
		h.FailErr(w, err)
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{Messages: msgs, HasMore: hasMore})
}

// StreamMessages handles GET /sessions/{sessionID}/stream (authenticated):
// a websocket subscription to the session's room.
func (h *Handler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		h.Fail(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	h.sub.ServeWS(w, r, sessionID)
}
