package mapservice

import (
	"context"
	"log/slog"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/document"
	"github.com/starford/mindmap/internal/index"
	"github.com/starford/mindmap/internal/mermaid"
	"github.com/starford/mindmap/internal/metrics"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/storage"
	"github.com/starford/mindmap/internal/wire"
)

// Publish renders the map into a project document, records the project and
// marks the map published. Publishing an already published map is a conflict.
func (s *Service) Publish(ctx context.Context, id string) (string, error) {
	pid, err := s.publish(ctx, id)
	metrics.Publishes.WithLabelValues(metrics.Result(err)).Inc()
	return pid, err
}

func (s *Service) publish(_ context.Context, id string) (string, error) {
	defer s.locks.lock(id)()
	m, _, err := s.load(id)
	if err != nil {
		return "", err
	}
	if m.Status == models.StatusPublished {
		return "", apperr.ErrConflict
	}

	model := wire.ToModel(m)
	now := s.now().UTC()
	pid := s.newID()

	outline := make([]document.Item, 0, len(model.Nodes))
	for _, n := range model.Nodes {
		outline = append(outline, document.Item{Label: n.Label(), Type: string(n.Type)})
	}
	doc, err := document.Render(document.Project{
		Meta: document.Meta{
			ID:          pid,
			MapID:       id,
			Title:       model.Title,
			PublishedAt: now,
			Nodes:       len(model.Nodes),
			Edges:       len(model.Edges),
		},
		Mermaid: mermaid.Render(model.Nodes, model.Edges),
		Outline: outline,
	})
	if err != nil {
		return "", err
	}

	path := storage.ProjectPath(pid)
	if err := s.store.Write(path, doc); err != nil {
		return "", err
	}
	if err := s.db.UpsertProject(index.ProjectRow{
		ID:        pid,
		MapID:     id,
		Title:     model.Title,
		Path:      path,
		CreatedAt: now,
	}); err != nil {
		return "", err
	}

	m.Status = models.StatusPublished
	m.ProjectID = pid
	m.UpdatedAt = now
	if _, err := s.write(m); err != nil {
		return "", err
	}
	s.logger.Info("map published", slog.String("id", id), slog.String("project_id", pid))
	s.notify(KindPublished, id)
	return pid, nil
}
