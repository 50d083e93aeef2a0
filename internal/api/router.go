package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmap/internal/mapservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *mapservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/mindmaps", func(r chi.Router) {
		r.Get("/", h.ListMaps)
		r.Post("/", h.CreateMap)
		r.Get("/{id}", h.GetMap)
		r.Put("/{id}", h.UpdateMap)
		r.Patch("/{id}", h.RenameMap)
		r.Delete("/{id}", h.DeleteMap)
		r.Post("/{id}/ai/expand", h.ExpandMap)
		r.Post("/{id}/publish", h.PublishMap)
		r.Get("/{id}/export/mermaid", h.ExportMermaid)
	})

	r.Get("/projects/{id}", h.GetProject)
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
