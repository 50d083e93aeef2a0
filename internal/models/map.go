// Package models defines the domain types for mind maps.
package models

import "time"

// Map statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Position is a layout coordinate. It carries no meaning for the backend.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a vertex of a mind map.
type Node struct {
	ID       string
	Type     NodeType
	Data     NodeData
	Position *Position
}

// Label returns the node label, falling back to the default label of an idea.
func (n Node) Label() string {
	if n.Data == nil || n.Data.Label() == "" {
		return DefaultLabel
	}
	return n.Data.Label()
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := Node{ID: n.ID, Type: n.Type}
	if n.Data != nil {
		out.Data = n.Data.clone()
	}
	if n.Position != nil {
		p := *n.Position
		out.Position = &p
	}
	return out
}

// Edge is a directed connector between two node ids. Neither endpoint is
// required to exist.
type Edge struct {
	ID     string
	Source string
	Target string
	Label  string
	Extra  map[string]any
}

// Clone returns a deep copy of e.
func (e Edge) Clone() Edge {
	e.Extra = cloneBag(e.Extra)
	return e
}

// Map is the aggregate mind-map document.
type Map struct {
	ID        string
	Title     string
	Status    string
	ProjectID string
	Nodes     []Node
	Edges     []Edge
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CloneNodes deep-copies a node slice, preserving nil.
func CloneNodes(in []Node) []Node {
	if in == nil {
		return nil
	}
	out := make([]Node, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges deep-copies an edge slice, preserving nil.
func CloneEdges(in []Edge) []Edge {
	if in == nil {
		return nil
	}
	out := make([]Edge, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
