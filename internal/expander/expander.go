// Package expander produces new idea nodes for a map from a free-text prompt.
package expander

import (
	"context"
	"log/slog"
	"strings"

	"github.com/starford/mindmap/internal/models"
)

// DefaultMaxIdeas caps the number of ideas returned by one expansion.
const DefaultMaxIdeas = 8

// Idea is one node proposed by an expander.
type Idea struct {
	Type  models.NodeType `json:"type"`
	Label string          `json:"label"`
}

// Request describes the map being expanded.
type Request struct {
	Title  string
	Labels []string
	Prompt string
	Max    int
}

func (r Request) max() int {
	if r.Max <= 0 {
		return DefaultMaxIdeas
	}
	return r.Max
}

// Expander turns a prompt into ideas.
type Expander interface {
	Name() string
	Expand(ctx context.Context, req Request) ([]Idea, error)
}

// Fallback tries Primary and falls back to Secondary when it fails or returns
// nothing.
type Fallback struct {
	Primary   Expander
	Secondary Expander
	Logger    *slog.Logger
}

// Name returns the primary expander name.
func (f *Fallback) Name() string { return f.Primary.Name() }

// Expand implements Expander.
func (f *Fallback) Expand(ctx context.Context, req Request) ([]Idea, error) {
	ideas, err := f.Primary.Expand(ctx, req)
	if err == nil && len(ideas) > 0 {
		return ideas, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.Logger != nil {
		attrs := []any{slog.String("expander", f.Primary.Name())}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		f.Logger.Warn("expander: falling back", attrs...)
	}
	return f.Secondary.Expand(ctx, req)
}

// normalize trims labels, maps unknown types to idea, drops blanks and
// duplicates and applies the cap.
func normalize(in []Idea, limit int) []Idea {
	seen := make(map[string]struct{}, len(in))
	out := make([]Idea, 0, len(in))
	for _, it := range in {
		label := strings.TrimSpace(it.Label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		t := models.NodeType(strings.ToLower(strings.TrimSpace(string(it.Type))))
		if !t.Valid() {
			t = models.NodeIdea
		}
		out = append(out, Idea{Type: t, Label: label})
		if len(out) == limit {
			break
		}
	}
	return out
}
