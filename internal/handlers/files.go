package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parleyapp/parley/internal/api/middleware"
	"github.com/parleyapp/parley/internal/files"
	"github.com/parleyapp/parley/internal/metrics"
)

// ServeUpload handles GET /uploads/{filename}: admin-tier document fetch.
func (h *Handler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, files.TierDocument, "document")
}

// ServeAvatar handles GET /avatar/{filename}: public avatar fetch.
// Deliberately unauthenticated; the gate's avatar tier still rejects
// non-image extensions before touching storage.
func (h *Handler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, files.TierAvatar, "avatar")
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, tier files.Tier, tierLabel string) {
	filename := chi.URLParam(r, "filename")
	ident := middleware.GetIdentity(r.Context())

	rc, info, err := h.gate.Authorize(r.Context(), filename, ident, tier)
	if err != nil {
		metrics.FileFetches.WithLabelValues(tierLabel, "denied").Inc()
		h.FailErr(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.Disposition != "" {
		w.Header().Set("Content-Disposition", info.Disposition)
	}
	if info.CacheControl != "" {
		w.Header().Set("Cache-Control", info.CacheControl)
	}

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already sent; nothing to return to the client.
		// Usually the requester disconnected mid-transfer.
		h.logger.Warn().Err(err).Str("filename", filename).Msg("file streaming interrupted")
		metrics.FileFetches.WithLabelValues(tierLabel, "stream_error").Inc()
		return
	}

	metrics.FileFetches.WithLabelValues(tierLabel, "success").Inc()
}
