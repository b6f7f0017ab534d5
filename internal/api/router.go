package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/livepad/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler and consoleWS, if non-nil, are mounted at GET /events and
// GET /console/ws inside the auth group.
func NewRouter(svc *workspace.Service, authEnabled bool, token string, sseHandler, consoleWS http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tree.
	r.Get("/tree", h.GetTree)
	r.Get("/tree/children", h.GetChildren)
	r.Put("/active", h.SetActive)
	r.Post("/reset", h.Reset)
	r.Get("/export", h.Export)

	// Files.
	r.Post("/files", h.CreateFile)
	r.Post("/files/import", h.ImportFile)
	r.Get("/files/{id}", h.GetFile)
	r.Put("/files/{id}/content", h.UpdateContent)
	r.Patch("/files/{id}", h.RenameFile)
	r.Post("/files/{id}/move", h.MoveFile)
	r.Delete("/files/{id}", h.DeleteFile)
	r.Get("/files/{id}/download", h.DownloadFile)

	// Folders.
	r.Post("/folders", h.CreateFolder)
	r.Patch("/folders/{id}", h.RenameFolder)
	r.Post("/folders/{id}/move", h.MoveFolder)
	r.Post("/folders/{id}/toggle", h.ToggleFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)

	// Preview.
	r.Get("/preview", h.GetPreview)
	r.Post("/preview/run", h.RunPreview)
	r.Get("/preview/auto", h.GetAutoPreview)
	r.Put("/preview/auto", h.SetAutoPreview)

	// Console.
	r.Get("/console", h.GetConsole)
	r.Post("/console", h.PostConsole)
	r.Delete("/console", h.ClearConsole)
	if consoleWS != nil {
		r.Get("/console/ws", consoleWS.ServeHTTP)
	}

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
