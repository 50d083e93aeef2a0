package document

import (
	"strings"
	"testing"
	"time"
)

func TestRenderParseRoundTrip(t *testing.T) {
	published := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := Project{
		Meta:    Meta{ID: "p1", MapID: "m1", Title: "Payments", PublishedAt: published, Nodes: 2, Edges: 1},
		Mermaid: "graph TD\n  N1[\"Gateway\"]\n  N2{\"Retry?\"}\n  N1 --> N2",
		Outline: []Item{{Label: "Gateway", Type: "service"}, {Label: "Retry (soft)", Type: "decision"}},
	}
	data, err := Render(in)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") || !strings.Contains(string(data), "# Payments\n") {
		t.Errorf("unexpected document:\n%s", data)
	}

	out, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out.ID != "p1" || out.MapID != "m1" || out.Nodes != 2 || !out.PublishedAt.Equal(published) {
		t.Errorf("meta = %+v", out.Meta)
	}
	if out.Mermaid != in.Mermaid {
		t.Errorf("mermaid = %q", out.Mermaid)
	}
	if len(out.Outline) != 2 || out.Outline[1].Label != "Retry (soft)" || out.Outline[1].Type != "decision" {
		t.Errorf("outline = %+v", out.Outline)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	if _, err := Parse([]byte("# Just a heading\n")); err == nil {
		t.Error("expected error without frontmatter")
	}
}

func TestParse_UnclosedFrontmatter(t *testing.T) {
	if _, err := Parse([]byte("---\nid: x\n# body\n")); err == nil {
		t.Error("expected error for unclosed frontmatter")
	}
}

func TestParse_MissingDiagram(t *testing.T) {
	p, err := Parse([]byte("---\nid: x\ntitle: T\n---\n# T\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Mermaid != "" || p.Outline != nil || p.Title != "T" {
		t.Errorf("project = %+v", p)
	}
}
