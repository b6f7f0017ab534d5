package api

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/starford/livepad/internal/tree"
)

// maxUploadBytes caps a single imported file.
const maxUploadBytes = 4 << 20

// ImportFile handles POST /api/files/import (multipart/form-data, field "file").
// The file lands at the root with its kind inferred from the extension.
//
//	@Summary		Import a local file into the tree
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"File to import"
//	@Success		201		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Failure		413		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/import [post]
func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field"))
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, "read upload", err)
		return
	}
	if !utf8.Valid(data) {
		writeJSON(w, http.StatusBadRequest, errorBody("file is not UTF-8 text"))
		return
	}

	f, err := h.svc.Import(r.Context(), header.Filename, string(data), "upload")
	if err != nil {
		writeError(w, "import file", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DownloadFile handles GET /api/files/{id}/download.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "download file", err)
		return
	}
	ctype := mime.TypeByExtension(f.Kind.Ext())
	if ctype == "" {
		ctype = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("ETag", `"`+f.Checksum+`"`)
	_, _ = io.WriteString(w, f.Content)
}

// Export handles GET /api/export: every file zipped at its folder path.
//
//	@Summary		Download the project as a zip archive
//	@Tags			tree
//	@Produce		application/zip
//	@Success		200
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.Export(r.Context(), &buf); err != nil {
		writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": tree.ArchiveName}))
	_, _ = w.Write(buf.Bytes())
}
