// Package mapservice implements the mind-map backend operations on top of the
// vault (source of truth) and the SQLite index.
package mapservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/checksum"
	"github.com/starford/mindmap/internal/expander"
	"github.com/starford/mindmap/internal/index"
	"github.com/starford/mindmap/internal/mermaid"
	"github.com/starford/mindmap/internal/metrics"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/storage"
	"github.com/starford/mindmap/internal/wire"
)

// Change kinds reported to the notifier.
const (
	KindCreated   = "created"
	KindUpdated   = "updated"
	KindDeleted   = "deleted"
	KindPublished = "published"
)

// Detail is a full map together with the checksum of its stored document.
type Detail struct {
	wire.Map
	Checksum string `json:"-"`
}

// Summary is a lightweight item in a list response.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	ProjectID string    `json:"project_id,omitempty"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is a published project document.
type Project struct {
	ID        string    `json:"id"`
	MapID     string    `json:"map_id"`
	Title     string    `json:"title"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Document  string    `json:"document"`
}

// Service coordinates storage, index, expansion and change notification.
type Service struct {
	store    storage.Provider
	db       index.MapIndex
	expander expander.Expander
	notify   func(kind, id string)
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	locks mapLocks
}

// Option configures a Service.
type Option func(*Service)

// WithExpander sets the AI expander. Defaults to expander.Heuristic.
func WithExpander(e expander.Expander) Option {
	return func(s *Service) { s.expander = e }
}

// WithNotifier registers a callback invoked after every successful change.
func WithNotifier(fn func(kind, id string)) Option {
	return func(s *Service) { s.notify = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid generation for maps, nodes, edges and projects.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new map service.
func NewService(store storage.Provider, db index.MapIndex, opts ...Option) *Service {
	s := &Service{
		store:    store,
		db:       db,
		expander: expander.Heuristic{},
		notify:   func(string, string) {},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns maps filtered by status and a title/label query, newest first.
func (s *Service) List(_ context.Context, status, query string) ([]Summary, error) {
	rows, err := s.db.ListMaps(status, query)
	if err != nil {
		return nil, err
	}
	items := make([]Summary, len(rows))
	for i, r := range rows {
		items[i] = Summary{
			ID:        r.ID,
			Title:     r.Title,
			Status:    r.Status,
			ProjectID: r.ProjectID,
			NodeCount: r.NodeCount,
			EdgeCount: r.EdgeCount,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, nil
}

// Create stores a new map under a generated id.
func (s *Service) Create(_ context.Context, in wire.Map) (*Detail, error) {
	now := s.now().UTC()
	in.ID = s.newID()
	in.ProjectID = ""
	// Maps only become published through Publish.
	in.Status = models.StatusDraft
	in.CreatedAt, in.UpdatedAt = now, now
	d, err := s.write(in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("map created", slog.String("id", in.ID))
	s.notify(KindCreated, in.ID)
	return d, nil
}

// Get reads a map from the vault.
func (s *Service) Get(_ context.Context, id string) (*Detail, error) {
	m, sum, err := s.load(id)
	if err != nil {
		return nil, err
	}
	return &Detail{Map: m, Checksum: sum}, nil
}

// Update replaces the content of a map. A non-empty ifMatch must equal the
// checksum of the stored document. The status is kept as stored: a published
// map stays published and a draft only changes through Publish.
func (s *Service) Update(_ context.Context, id string, in wire.Map, ifMatch string) (*Detail, error) {
	defer s.locks.lock(id)()
	existing, sum, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != sum {
		metrics.MapSaves.WithLabelValues("conflict").Inc()
		return nil, apperr.ErrConflict
	}

	in.ID = id
	in.ProjectID = existing.ProjectID
	in.CreatedAt = existing.CreatedAt
	in.UpdatedAt = s.now().UTC()
	in.Status = existing.Status

	d, err := s.write(in)
	metrics.MapSaves.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.notify(KindUpdated, id)
	return d, nil
}

// Rename changes only the title of a map.
func (s *Service) Rename(_ context.Context, id, title string) (*Detail, error) {
	defer s.locks.lock(id)()
	m, _, err := s.load(id)
	if err != nil {
		return nil, err
	}
	m.Title = strings.TrimSpace(title)
	m.UpdatedAt = s.now().UTC()
	d, err := s.write(m)
	if err != nil {
		return nil, err
	}
	s.notify(KindUpdated, id)
	return d, nil
}

// Delete removes a map from the vault and the index.
func (s *Service) Delete(_ context.Context, id string) error {
	defer s.locks.lock(id)()
	if err := s.store.Delete(storage.MapPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteMap(id); err != nil {
		return err
	}
	s.logger.Info("map deleted", slog.String("id", id))
	s.notify(KindDeleted, id)
	return nil
}

// ExportMermaid renders a stored map as a Mermaid flowchart.
func (s *Service) ExportMermaid(_ context.Context, id string) (string, error) {
	m, _, err := s.load(id)
	if err != nil {
		return "", err
	}
	model := wire.ToModel(m)
	return mermaid.Render(model.Nodes, model.Edges), nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// GetProject returns a published project with its rendered document.
func (s *Service) GetProject(_ context.Context, id string) (*Project, error) {
	row, err := s.db.GetProject(id)
	if err != nil {
		return nil, err
	}
	data, err := s.store.Read(row.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &Project{
		ID:        row.ID,
		MapID:     row.MapID,
		Title:     row.Title,
		Path:      row.Path,
		CreatedAt: row.CreatedAt,
		Document:  string(data),
	}, nil
}

// IndexFile decodes a map document and upserts it into the index.
// Exported so that the watcher can reuse it.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexDocument(s.db, path, data)
}

func (s *Service) load(id string) (wire.Map, string, error) {
	if strings.TrimSpace(id) == "" {
		return wire.Map{}, "", apperr.ErrNotFound
	}
	data, err := s.store.Read(storage.MapPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return wire.Map{}, "", apperr.ErrNotFound
		}
		return wire.Map{}, "", err
	}
	var m wire.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return wire.Map{}, "", fmt.Errorf("mapservice: decode %s: %w", id, err)
	}
	m.ID = id
	if m.Status == "" {
		m.Status = models.StatusDraft
	}
	if m.Nodes == nil {
		m.Nodes = []wire.Node{}
	}
	if m.Edges == nil {
		m.Edges = []wire.Edge{}
	}
	return m, checksum.Sum(data), nil
}

// write canonicalizes m, persists it atomically and indexes it.
func (s *Service) write(m wire.Map) (*Detail, error) {
	model := wire.ToModel(m)
	for i := range model.Nodes {
		if model.Nodes[i].ID == "" {
			model.Nodes[i].ID = s.newID()
		}
	}
	for i := range model.Edges {
		if model.Edges[i].ID == "" {
			model.Edges[i].ID = s.newID()
		}
	}
	out := wire.FromModel(model)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mapservice: encode %s: %w", m.ID, err)
	}
	path := storage.MapPath(m.ID)
	if err := s.store.Write(path, data); err != nil {
		return nil, err
	}
	sum := checksum.Sum(data)
	row, labels := index.Describe(m.ID, out, sum)
	if err := s.db.UpsertMap(row, labels); err != nil {
		return nil, err
	}
	return &Detail{Map: out, Checksum: sum}, nil
}
