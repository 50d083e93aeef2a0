package graph

import "github.com/starford/mindmap/internal/models"

// ChangeKind identifies a structural delta.
type ChangeKind string

// Change kinds.
const (
	ChangeAdd    ChangeKind = "add"
	ChangeRemove ChangeKind = "remove"
	ChangeMove   ChangeKind = "move"
	ChangeUpdate ChangeKind = "update"
)

// NodeChange is one delta in a node batch. Which fields are read depends on Kind:
// add reads Node, move reads Position, update reads Data, remove reads ID only.
type NodeChange struct {
	Kind     ChangeKind
	ID       string
	Node     models.Node
	Position models.Position
	Data     models.NodeData
}

// AddNodeChange appends n, or replaces the node with the same id.
func AddNodeChange(n models.Node) NodeChange {
	return NodeChange{Kind: ChangeAdd, ID: n.ID, Node: n}
}

// RemoveNodeChange removes the node with the given id.
func RemoveNodeChange(id string) NodeChange {
	return NodeChange{Kind: ChangeRemove, ID: id}
}

// MoveNodeChange sets the node position.
func MoveNodeChange(id string, p models.Position) NodeChange {
	return NodeChange{Kind: ChangeMove, ID: id, Position: p}
}

// UpdateNodeChange replaces the node payload. The node type follows the payload.
func UpdateNodeChange(id string, d models.NodeData) NodeChange {
	return NodeChange{Kind: ChangeUpdate, ID: id, Data: d}
}

// EdgeChange is one delta in an edge batch: add reads Edge, update reads Label.
type EdgeChange struct {
	Kind  ChangeKind
	ID    string
	Edge  models.Edge
	Label string
}

// AddEdgeChange appends e, or replaces the edge with the same id.
func AddEdgeChange(e models.Edge) EdgeChange {
	return EdgeChange{Kind: ChangeAdd, ID: e.ID, Edge: e}
}

// RemoveEdgeChange removes the edge with the given id.
func RemoveEdgeChange(id string) EdgeChange {
	return EdgeChange{Kind: ChangeRemove, ID: id}
}

// UpdateEdgeChange sets the edge label.
func UpdateEdgeChange(id, label string) EdgeChange {
	return EdgeChange{Kind: ChangeUpdate, ID: id, Label: label}
}
