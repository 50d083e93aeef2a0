package mapservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/expander"
	"github.com/starford/mindmap/internal/metrics"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

// Expand asks the expander for ideas about prompt and grows the map with them.
// New nodes carry no position so clients lay them out on the grid. They hang
// off the first node, or off a new topic root when the map is empty.
func (s *Service) Expand(ctx context.Context, id, prompt string) (*Detail, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", apperr.ErrInvalid)
	}
	// Held across the expander call so concurrent saves cannot be lost.
	defer s.locks.lock(id)()
	m, _, err := s.load(id)
	if err != nil {
		return nil, err
	}
	model := wire.ToModel(m)

	labels := make([]string, 0, len(model.Nodes))
	for _, n := range model.Nodes {
		labels = append(labels, n.Label())
	}
	ideas, err := s.expander.Expand(ctx, expander.Request{Title: model.Title, Labels: labels, Prompt: prompt})
	metrics.Expansions.WithLabelValues(s.expander.Name(), metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.grow(model, prompt, ideas)
	model.UpdatedAt = s.now().UTC()

	d, err := s.write(wire.FromModel(model))
	if err != nil {
		return nil, err
	}
	s.logger.Info("map expanded",
		slog.String("id", id),
		slog.String("expander", s.expander.Name()),
		slog.Int("ideas", len(ideas)),
	)
	s.notify(KindUpdated, id)
	return d, nil
}

func (s *Service) grow(m *models.Map, prompt string, ideas []expander.Idea) {
	if len(ideas) == 0 {
		return
	}
	var root string
	if len(m.Nodes) > 0 {
		root = m.Nodes[0].ID
	} else {
		root = s.newID()
		m.Nodes = append(m.Nodes, newNode(root, models.NodeTopic, prompt))
	}
	for _, idea := range ideas {
		nid := s.newID()
		m.Nodes = append(m.Nodes, newNode(nid, idea.Type, idea.Label))
		m.Edges = append(m.Edges, models.Edge{ID: s.newID(), Source: root, Target: nid})
	}
}

func newNode(id string, t models.NodeType, label string) models.Node {
	d := models.NewData(t)
	d.SetLabel(label)
	return models.Node{ID: id, Type: d.Type(), Data: d}
}
