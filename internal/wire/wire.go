// Package wire defines the JSON shapes of the mind-map REST API and the
// translation between them and the domain model.
//
// On the wire, edges use source_id/target_id and a node's type and position
// are folded into its opaque data bag.
package wire

import (
	"strings"
	"time"

	"github.com/starford/mindmap/internal/models"
)

// Node is a node as sent to and received from the backend.
type Node struct {
	ID    string         `json:"id,omitempty"`
	Label string         `json:"label"`
	Data  map[string]any `json:"data,omitempty"`
}

// Edge is an edge as sent to and received from the backend. Source and Target
// are accepted on input as fallbacks for SourceID and TargetID.
type Edge struct {
	ID       string         `json:"id,omitempty"`
	SourceID string         `json:"source_id,omitempty"`
	TargetID string         `json:"target_id,omitempty"`
	Source   string         `json:"source,omitempty"`
	Target   string         `json:"target,omitempty"`
	Label    string         `json:"label,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// From returns the effective source node id.
func (e Edge) From() string {
	if e.SourceID != "" {
		return e.SourceID
	}
	return e.Source
}

// To returns the effective target node id.
func (e Edge) To() string {
	if e.TargetID != "" {
		return e.TargetID
	}
	return e.Target
}

// Map is a mind map document. It is also the request body of create and save.
type Map struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	ProjectID string    `json:"project_id,omitempty"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// RenameRequest is the body of PATCH /mindmaps/{id}.
type RenameRequest struct {
	Title string `json:"title"`
}

// ExpandRequest is the body of POST /mindmaps/{id}/ai/expand.
type ExpandRequest struct {
	Prompt string `json:"prompt"`
}

// PublishResponse is returned by POST /mindmaps/{id}/publish.
type PublishResponse struct {
	ProjectID string `json:"project_id"`
	ID        string `json:"id,omitempty"`
}

// ExportResponse is returned by GET /mindmaps/{id}/export/mermaid.
type ExportResponse struct {
	Mermaid string `json:"mermaid"`
}

// SearchResult is one hit of GET /search.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// FromModel converts a domain map to its wire form.
func FromModel(m *models.Map) Map {
	out := Map{
		ID:        m.ID,
		Title:     m.Title,
		Status:    m.Status,
		ProjectID: m.ProjectID,
		Nodes:     make([]Node, 0, len(m.Nodes)),
		Edges:     make([]Edge, 0, len(m.Edges)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, n := range m.Nodes {
		out.Nodes = append(out.Nodes, FromNode(n))
	}
	for _, e := range m.Edges {
		out.Edges = append(out.Edges, FromEdge(e))
	}
	return out
}

// FromNode converts a domain node. Type and position go into the data bag.
func FromNode(n models.Node) Node {
	var data map[string]any
	if n.Data != nil {
		data = models.EncodeData(n.Data)
	} else {
		data = models.EncodeData(models.NewData(n.Type))
	}
	if n.Position != nil {
		data["position"] = map[string]any{"x": n.Position.X, "y": n.Position.Y}
	}
	label := strings.TrimSpace(n.Label())
	if label == "" {
		label = models.DefaultLabel
	}
	return Node{ID: n.ID, Label: label, Data: data}
}

// FromEdge converts a domain edge. The label is always present in data.
func FromEdge(e models.Edge) Edge {
	data := make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		data[k] = v
	}
	data["label"] = e.Label
	return Edge{ID: e.ID, SourceID: e.Source, TargetID: e.Target, Data: data}
}

// ToModel converts a wire map to the domain model. Missing ids are left empty
// for the graph store to fill in.
func ToModel(w Map) *models.Map {
	m := &models.Map{
		ID:        w.ID,
		Title:     w.Title,
		Status:    w.Status,
		ProjectID: w.ProjectID,
		Nodes:     make([]models.Node, 0, len(w.Nodes)),
		Edges:     make([]models.Edge, 0, len(w.Edges)),
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	for _, n := range w.Nodes {
		m.Nodes = append(m.Nodes, ToNode(n))
	}
	for _, e := range w.Edges {
		m.Edges = append(m.Edges, ToEdge(e))
	}
	return m
}

// ToNode converts a wire node. The type is read from data.type, defaulting to
// note; the top-level label wins over data.label.
func ToNode(n Node) models.Node {
	d := models.DecodeData(n.Data)
	if strings.TrimSpace(n.Label) != "" {
		d.SetLabel(n.Label)
	}
	return models.Node{
		ID:       n.ID,
		Type:     d.Type(),
		Data:     d,
		Position: position(n.Data["position"]),
	}
}

// ToEdge converts a wire edge. The label is read from data.label, then label.
func ToEdge(e Edge) models.Edge {
	out := models.Edge{ID: e.ID, Source: e.From(), Target: e.To(), Label: e.Label}
	for k, v := range e.Data {
		if k == "label" {
			if s, ok := v.(string); ok && s != "" {
				out.Label = s
			}
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any)
		}
		out.Extra[k] = v
	}
	return out
}

func position(v any) *models.Position {
	switch p := v.(type) {
	case map[string]any:
		x, okX := p["x"].(float64)
		y, okY := p["y"].(float64)
		if okX && okY {
			return &models.Position{X: x, Y: y}
		}
	case models.Position:
		return &p
	case *models.Position:
		if p != nil {
			c := *p
			return &c
		}
	}
	return nil
}
