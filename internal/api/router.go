package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/folio/internal/folio"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(app *folio.App, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(app)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", h.ListWorkspaces)
		r.Post("/", h.RegisterWorkspace)
		r.Post("/{id}/activate", h.ActivateWorkspace)
		r.Get("/{id}/scan", h.ScanWorkspace)
		r.Post("/{id}/watch", h.Watch)
		r.Delete("/{id}/watch", h.Unwatch)
	})
	r.Post("/sync", h.Sync)

	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Put("/path", h.MoveNote)
		r.Get("/backlinks", h.Backlinks)
		r.Get("/forward-links", h.ForwardLinks)
		r.Put("/links", h.UpdateLinks)
	})
	r.Post("/journal", h.Journal)
	r.Get("/graph", h.Graph)
	r.Get("/tags", h.Tags)

	r.Get("/notebooks", h.ListNotebooks)
	r.Post("/notebooks", h.CreateNotebook)
	r.Get("/notebooks/{id}/ancestors", h.NotebookAncestors)
	r.Put("/notebooks/{id}/parent", h.MoveNotebook)
	r.Delete("/notebooks/{id}", h.DeleteNotebook)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
