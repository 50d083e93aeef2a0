package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

const maxTitleLen = 200

// MapRequest is the request body for creating or saving a map.
type MapRequest struct {
	wire.Map
}

// Validate implements validation.Validatable. Edges are stored as sent;
// ones whose endpoints are missing are skipped when rendering.
func (m *MapRequest) Validate() error {
	return validation.ValidateStruct(&m.Map,
		validation.Field(&m.Map.Title, validation.Length(0, maxTitleLen)),
		validation.Field(&m.Map.Status, validation.In(models.StatusDraft, models.StatusPublished)),
	)
}

// RenameRequest is the request body for renaming a map.
type RenameRequest struct {
	wire.RenameRequest
}

// Validate implements validation.Validatable.
func (r *RenameRequest) Validate() error {
	return validation.ValidateStruct(&r.RenameRequest,
		validation.Field(&r.RenameRequest.Title, validation.Required, validation.Length(1, maxTitleLen)),
	)
}

// ExpandRequest is the request body for AI expansion.
type ExpandRequest struct {
	wire.ExpandRequest
}

// Validate implements validation.Validatable.
func (r *ExpandRequest) Validate() error {
	return validation.ValidateStruct(&r.ExpandRequest,
		validation.Field(&r.ExpandRequest.Prompt, validation.Required, validation.Length(1, 2000)),
	)
}

// MapDetail is the full map response type (aliased from the domain layer).
type MapDetail = mapservice.Detail

// MapSummary is a lightweight item in a list response (aliased from the domain layer).
type MapSummary = mapservice.Summary

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []wire.SearchResult `json:"results" validate:"required"`
}
