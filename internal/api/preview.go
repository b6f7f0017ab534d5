package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/livepad/internal/checksum"
)

// previewCSP confines the composed document to an opaque origin.
const previewCSP = "sandbox allow-scripts allow-modals"

// GetPreview handles GET /api/preview. It serves the composed document as a
// standalone page meant for a sandboxed iframe. With no active file the body
// is empty.
//
//	@Summary		Current preview document
//	@Tags			preview
//	@Produce		html
//	@Success		200
//	@Success		304
//	@Security		BearerAuth
//	@Router			/preview [get]
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	u := h.svc.Preview(r.Context())
	etag := checksum.ETag(u.Document.HTML)

	w.Header().Set("ETag", etag)
	w.Header().Set("X-Preview-Version", strconv.FormatUint(u.Version, 10))
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", previewCSP)
	_, _ = io.WriteString(w, u.Document.HTML)
}

// RunPreview handles POST /api/preview/run and returns the new version.
func (h *Handler) RunPreview(w http.ResponseWriter, r *http.Request) {
	u := h.svc.RunPreview(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"version": u.Version,
		"fileId":  u.Document.FileID,
		"kind":    u.Document.Kind,
	})
}

// GetAutoPreview handles GET /api/preview/auto.
func (h *Handler) GetAutoPreview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AutoPreviewRequest{Auto: h.svc.AutoPreview(r.Context())})
}

// SetAutoPreview handles PUT /api/preview/auto.
func (h *Handler) SetAutoPreview(w http.ResponseWriter, r *http.Request) {
	var req AutoPreviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.SetAutoPreview(r.Context(), req.Auto)
	writeJSON(w, http.StatusOK, req)
}

// GetConsole handles GET /api/console.
func (h *Handler) GetConsole(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": h.svc.ConsoleEntries(r.Context()),
	})
}

// PostConsole handles POST /api/console: the body is one message as posted
// by the preview shim. Messages of any other shape are rejected with 400.
//
//	@Summary		Relay a console message from the preview
//	@Tags			console
//	@Accept			json
//	@Produce		json
//	@Success		202	{object}	ConsolePostResponse
//	@Failure		400	{object}	errResponse
//	@Router			/console [post]
func (h *Handler) PostConsole(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	queued, err := h.svc.PostConsole(r.Context(), raw)
	if err != nil {
		writeError(w, "post console", err)
		return
	}
	if !queued {
		// Full inbox; the message was dropped.
		writeJSON(w, http.StatusServiceUnavailable, ConsolePostResponse{Queued: false})
		return
	}
	writeJSON(w, http.StatusAccepted, ConsolePostResponse{Queued: true})
}

// ClearConsole handles DELETE /api/console.
func (h *Handler) ClearConsole(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearConsole(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

