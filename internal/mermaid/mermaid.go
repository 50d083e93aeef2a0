// Package mermaid renders a mind map as a Mermaid flowchart.
//
// Nodes get positional aliases (N1, N2, ...) in slice order, so the output is
// deterministic for a given ordering but changes when the slices are reordered.
package mermaid

import (
	"strconv"
	"strings"

	"github.com/starford/mindmap/internal/models"
)

// Empty is the output for a graph without nodes.
const Empty = "graph TD\n  %% empty"

// Render returns the Mermaid text for nodes and edges. Edges whose source or
// target is not among nodes are omitted.
func Render(nodes []models.Node, edges []models.Edge) string {
	if len(nodes) == 0 {
		return Empty
	}

	alias := make(map[string]string, len(nodes))
	lines := make([]string, 0, 1+len(nodes)+len(edges))
	lines = append(lines, "graph TD")

	for i, n := range nodes {
		id := "N" + strconv.Itoa(i+1)
		alias[n.ID] = id
		lines = append(lines, "  "+id+shape(nodeType(n), escape(n.Label())))
	}

	for _, e := range edges {
		s, okS := alias[e.Source]
		t, okT := alias[e.Target]
		if !okS || !okT {
			continue
		}
		if lbl := strings.TrimSpace(e.Label); lbl != "" {
			lines = append(lines, "  "+s+" -- "+lbl+" --> "+t)
		} else {
			lines = append(lines, "  "+s+" --> "+t)
		}
	}

	return strings.Join(lines, "\n")
}

// nodeType prefers the type carried by the node data over the Type field.
func nodeType(n models.Node) models.NodeType {
	if n.Data != nil {
		return n.Data.Type()
	}
	return n.Type
}

func shape(t models.NodeType, title string) string {
	switch t {
	case models.NodeDecision:
		return `{"` + title + `"}`
	case models.NodeMilestone:
		return `(("` + title + `"))`
	default:
		return `["` + title + `"]`
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
