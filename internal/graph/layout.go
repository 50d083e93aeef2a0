package graph

import "github.com/starford/mindmap/internal/models"

// Grid layout constants.
const (
	GridColumns = 4
	CellWidth   = 260
	RowHeight   = 160
	PadX        = 40
	PadY        = 40
)

// GridPosition returns the grid cell for the node at index i.
func GridPosition(i int) models.Position {
	return models.Position{
		X: float64(PadX + (i%GridColumns)*CellWidth),
		Y: float64(PadY + (i/GridColumns)*RowHeight),
	}
}

// layoutMissing assigns a grid position to every node without one. The index
// is the node's position in the full slice, so placed nodes keep their slot.
func layoutMissing(nodes []models.Node) {
	for i := range nodes {
		if nodes[i].Position == nil {
			p := GridPosition(i)
			nodes[i].Position = &p
		}
	}
}
