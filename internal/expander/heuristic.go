package expander

import (
	"context"
	"strings"

	"github.com/starford/mindmap/internal/models"
)

// Heuristic is a deterministic, offline expander. A prompt listing several
// items (separated by commas, semicolons or newlines) yields one idea per
// item; a single subject yields five facet ideas.
type Heuristic struct{}

var facets = []struct {
	t      models.NodeType
	suffix string
}{
	{models.NodeTopic, "goals"},
	{models.NodeRisk, "risks"},
	{models.NodePersona, "stakeholders"},
	{models.NodeMilestone, "milestones"},
	{models.NodeKPI, "success metrics"},
}

// Name implements Expander.
func (Heuristic) Name() string { return "heuristic" }

// Expand implements Expander.
func (Heuristic) Expand(_ context.Context, req Request) ([]Idea, error) {
	parts := strings.FieldsFunc(req.Prompt, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	items := make([]Idea, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, Idea{Type: models.NodeIdea, Label: p})
		}
	}
	if len(items) > 1 {
		return normalize(items, req.max()), nil
	}

	subject := strings.TrimSpace(req.Prompt)
	if subject == "" {
		subject = req.Title
	}
	out := make([]Idea, 0, len(facets))
	for _, f := range facets {
		out = append(out, Idea{Type: f.t, Label: subject + ": " + f.suffix})
	}
	return normalize(out, req.max()), nil
}
