package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmap/internal/checksum"
	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/wire"
)

// Handler holds API route handlers.
type Handler struct {
	svc *mapservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *mapservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListMaps handles GET /mindmaps.
//
//	@Summary		List maps, newest first
//	@Tags			mindmaps
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"	Enums(draft, published)
//	@Param			q		query		string	false	"Title filter"
//	@Success		200		{array}		MapSummary
//	@Security		BearerAuth
//	@Router			/mindmaps [get]
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.List(r.Context(), q.Get("status"), q.Get("q"))
	if err != nil {
		writeError(w, "list maps", err)
		return
	}
	if items == nil {
		items = []mapservice.Summary{}
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateMap handles POST /mindmaps.
//
//	@Summary		Create a map
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MapRequest	true	"Map to create"
//	@Success		201		{object}	MapDetail
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps [post]
func (h *Handler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var req MapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.Create(r.Context(), req.Map)
	if err != nil {
		writeError(w, "create map", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusCreated, m)
}

// GetMap handles GET /mindmaps/{id}.
//
//	@Summary		Get a map
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	MapDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [get]
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	m, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get map", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusOK, m)
}

// UpdateMap handles PUT /mindmaps/{id}.
//
//	@Summary		Replace a map with optimistic concurrency
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string		true	"Map id"
//	@Param			If-Match	header		string		false	"Checksum of the stored document"
//	@Param			body		body		MapRequest	true	"Map content"
//	@Success		200			{object}	MapDetail
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [put]
func (h *Handler) UpdateMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req MapRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := checksum.FromIfMatch(r.Header.Get("If-Match"))

	m, err := h.svc.Update(r.Context(), id, req.Map, ifMatch)
	if err != nil {
		writeError(w, "update map", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusOK, m)
}

// RenameMap handles PATCH /mindmaps/{id}.
//
//	@Summary		Rename a map
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Map id"
//	@Param			body	body		RenameRequest	true	"New title"
//	@Success		200		{object}	MapDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [patch]
func (h *Handler) RenameMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.Rename(r.Context(), id, req.Title)
	if err != nil {
		writeError(w, "rename map", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusOK, m)
}

// DeleteMap handles DELETE /mindmaps/{id}.
//
//	@Summary		Delete a map
//	@Tags			mindmaps
//	@Param			id	path	string	true	"Map id"
//	@Success		204	"Map deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id} [delete]
func (h *Handler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, "delete map", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpandMap handles POST /mindmaps/{id}/ai/expand.
//
//	@Summary		Grow a map with AI-suggested ideas
//	@Tags			mindmaps
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Map id"
//	@Param			body	body		ExpandRequest	true	"Prompt"
//	@Success		200		{object}	MapDetail
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id}/ai/expand [post]
func (h *Handler) ExpandMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ExpandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.Expand(r.Context(), id, req.Prompt)
	if err != nil {
		writeError(w, "expand map", err, slog.String("id", id))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusOK, m)
}

// PublishMap handles POST /mindmaps/{id}/publish.
//
//	@Summary		Publish a map as a project document
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	wire.PublishResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id}/publish [post]
func (h *Handler) PublishMap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	pid, err := h.svc.Publish(r.Context(), id)
	if err != nil {
		writeError(w, "publish map", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, wire.PublishResponse{ProjectID: pid})
}

// ExportMermaid handles GET /mindmaps/{id}/export/mermaid.
//
//	@Summary		Export a map as a Mermaid flowchart
//	@Tags			mindmaps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	wire.ExportResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/mindmaps/{id}/export/mermaid [get]
func (h *Handler) ExportMermaid(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	text, err := h.svc.ExportMermaid(r.Context(), id)
	if err != nil {
		writeError(w, "export map", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, wire.ExportResponse{Mermaid: text})
}

// GetProject handles GET /projects/{id}.
//
//	@Summary		Get a published project document
//	@Tags			projects
//	@Produce		json
//	@Param			id	path		string	true	"Project id"
//	@Success		200	{object}	mapservice.Project
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, "get project", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Search handles GET /search.
//
//	@Summary		Full-text search across map titles and node labels
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	results := make([]wire.SearchResult, len(rows))
	for i, row := range rows {
		results[i] = wire.SearchResult{ID: row.ID, Title: row.Title, Snippet: row.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
