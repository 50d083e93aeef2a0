// Package editor ties a graph store, its history and a sync controller into
// one editing session for a single map.
package editor

import (
	"context"
	"log/slog"

	"github.com/starford/mindmap/internal/graph"
	"github.com/starford/mindmap/internal/mapsync"
	"github.com/starford/mindmap/internal/mermaid"
	"github.com/starford/mindmap/internal/models"
)

// Session edits one map. Every mutation records the previous state for undo
// and schedules a silent save.
type Session struct {
	store   *graph.Store
	history *graph.History
	sync    *mapsync.Controller
	logger  *slog.Logger
}

// Config holds the optional parts of a session.
type Config struct {
	HistoryLimit int
	StoreOptions []graph.Option
	SyncOptions  []mapsync.Option
	Logger       *slog.Logger
}

// New creates a session backed by remote.
func New(remote mapsync.Remote, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	store := graph.New(cfg.StoreOptions...)
	history := graph.NewHistory(cfg.HistoryLimit)
	opts := append([]mapsync.Option{mapsync.WithLogger(logger)}, cfg.SyncOptions...)
	return &Session{
		store:   store,
		history: history,
		sync:    mapsync.New(store, history, remote, opts...),
		logger:  logger,
	}
}

// Store exposes the underlying graph store for reads.
func (s *Session) Store() *graph.Store { return s.store }

// History exposes the undo log.
func (s *Session) History() *graph.History { return s.history }

// Sync exposes the sync controller.
func (s *Session) Sync() *mapsync.Controller { return s.sync }

// Open loads the map with the given id.
func (s *Session) Open(ctx context.Context, id string) (*models.Map, error) {
	return s.sync.LoadMap(ctx, id)
}

// AddNode adds a node of type t. A nil position picks a random one.
func (s *Session) AddNode(t models.NodeType, pos *models.Position) models.Node {
	s.record()
	n := s.store.AddNode(t, pos)
	s.sync.ScheduleSave(true)
	return n
}

// Connect adds an edge from source to target.
func (s *Session) Connect(source, target string) models.Edge {
	s.record()
	e := s.store.Connect(source, target)
	s.sync.ScheduleSave(true)
	return e
}

// ApplyNodeChanges applies a batch of node deltas.
func (s *Session) ApplyNodeChanges(changes ...graph.NodeChange) {
	if len(changes) == 0 {
		return
	}
	s.record()
	s.store.ApplyNodeChanges(changes)
	s.sync.ScheduleSave(true)
}

// ApplyEdgeChanges applies a batch of edge deltas.
func (s *Session) ApplyEdgeChanges(changes ...graph.EdgeChange) {
	if len(changes) == 0 {
		return
	}
	s.record()
	s.store.ApplyEdgeChanges(changes)
	s.sync.ScheduleSave(true)
}

// SetTitle renames the map locally; the next save carries the new title.
func (s *Session) SetTitle(title string) {
	s.record()
	s.store.SetTitle(title)
	s.sync.ScheduleSave(true)
}

// Layout places nodes without a position on the grid.
func (s *Session) Layout() {
	s.record()
	s.store.Layout()
	s.sync.ScheduleSave(true)
}

// Undo restores the previous state. It reports false when there is nothing
// to undo.
func (s *Session) Undo() bool {
	prev, ok := s.history.Undo(s.store.Snapshot())
	if !ok {
		return false
	}
	s.store.Restore(prev)
	s.sync.ScheduleSave(true)
	return true
}

// Redo re-applies the most recently undone state.
func (s *Session) Redo() bool {
	next, ok := s.history.Redo(s.store.Snapshot())
	if !ok {
		return false
	}
	s.store.Restore(next)
	s.sync.ScheduleSave(true)
	return true
}

// Save writes the map now and reports the result in the status.
func (s *Session) Save(ctx context.Context) error {
	return s.sync.SaveNow(ctx, false)
}

// Expand runs an AI expansion and reloads the map.
func (s *Session) Expand(ctx context.Context, prompt string) error {
	return s.sync.RequestAIExpand(ctx, prompt)
}

// Publish promotes the map to a project.
func (s *Session) Publish(ctx context.Context) (string, error) {
	return s.sync.Publish(ctx)
}

// Export renders the current graph as Mermaid.
func (s *Session) Export() string {
	return mermaid.Render(s.store.Nodes(), s.store.Edges())
}

// Close flushes any pending save.
func (s *Session) Close(ctx context.Context) error {
	return s.sync.Flush(ctx)
}

func (s *Session) record() {
	s.history.Record(s.store.Snapshot())
}
