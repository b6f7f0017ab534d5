package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/livepad/internal/workspace"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *workspace.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *workspace.Service) *Handler {
	return &Handler{svc: svc}
}

// nonEmpty maps "" to nil so query parameters can name the root.
func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetTree handles GET /api/tree.
//
//	@Summary		List every folder and file (without content)
//	@Tags			tree
//	@Produce		json
//	@Success		200	{object}	workspace.TreeView
//	@Security		BearerAuth
//	@Router			/tree [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Tree(r.Context()))
}

// GetChildren handles GET /api/tree/children?parent=<folder id>.
// An empty or missing parent lists the root.
func (h *Handler) GetChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.svc.Children(r.Context(), nonEmpty(r.URL.Query().Get("parent")))
	if err != nil {
		writeError(w, "list children", err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

// CreateFile handles POST /api/files.
//
//	@Summary		Create a file with the default content for its kind
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateFileRequest	true	"File to create"
//	@Success		201		{object}	FileDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [post]
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Kind == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name and kind are required"))
		return
	}
	f, err := h.svc.CreateFile(r.Context(), req.Name, req.Kind, req.ParentID)
	if err != nil {
		writeError(w, "create file", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetFile handles GET /api/files/{id}.
//
//	@Summary		Get a file with its content
//	@Tags			files
//	@Produce		json
//	@Param			id	path		string	true	"File id"
//	@Success		200	{object}	FileDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id} [get]
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.svc.GetFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get file", err)
		return
	}
	w.Header().Set("ETag", `"`+f.Checksum+`"`)
	writeJSON(w, http.StatusOK, f)
}

// UpdateContent handles PUT /api/files/{id}/content.
//
//	@Summary		Replace file content with optimistic concurrency
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"File id"
//	@Param			If-Match	header		string					false	"SHA-256 checksum of the content being replaced"
//	@Param			body		body		UpdateContentRequest	true	"New content"
//	@Success		200			{object}	FileDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id}/content [put]
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req UpdateContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	f, err := h.svc.UpdateContent(r.Context(), chi.URLParam(r, "id"), req.Content, ifMatch)
	if err != nil {
		writeError(w, "update content", err)
		return
	}
	w.Header().Set("ETag", `"`+f.Checksum+`"`)
	writeJSON(w, http.StatusOK, f)
}

// RenameFile handles PATCH /api/files/{id}.
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	h.rename(w, r, false)
}

// RenameFolder handles PATCH /api/folders/{id}.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	h.rename(w, r, true)
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request, isFolder bool) {
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	renamed, err := h.svc.Rename(r.Context(), chi.URLParam(r, "id"), req.Name, isFolder)
	if err != nil {
		writeError(w, "rename", err)
		return
	}
	writeJSON(w, http.StatusOK, RenameResponse{Renamed: renamed})
}

// MoveFile handles POST /api/files/{id}/move.
func (h *Handler) MoveFile(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, false)
}

// MoveFolder handles POST /api/folders/{id}/move. Moves that would put a
// folder inside itself are answered with moved=false.
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, true)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, isFolder bool) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	moved, err := h.svc.Move(r.Context(), chi.URLParam(r, "id"), req.ParentID, isFolder)
	if err != nil {
		writeError(w, "move", err)
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Moved: moved})
}

// DeleteFile handles DELETE /api/files/{id}.
//
//	@Summary		Delete a file
//	@Tags			files
//	@Param			id	path	string	true	"File id"
//	@Success		204	"File deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/{id} [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFile(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete file", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	folder, err := h.svc.CreateFolder(r.Context(), req.Name, req.ParentID)
	if err != nil {
		writeError(w, "create folder", err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// ToggleFolder handles POST /api/folders/{id}/toggle.
func (h *Handler) ToggleFolder(w http.ResponseWriter, r *http.Request) {
	expanded, err := h.svc.ToggleFolder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "toggle folder", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{Expanded: expanded})
}

// DeleteFolder handles DELETE /api/folders/{id}. Everything beneath the
// folder is removed with it.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFolder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete folder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActive handles PUT /api/active.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetActive(r.Context(), req.ID); err != nil {
		writeError(w, "set active", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reset handles POST /api/reset: the tree goes back to the default project.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	writeJSON(w, http.StatusOK, h.svc.Tree(r.Context()))
}
