// Package graph holds the in-memory node and edge collections of one mind map
// and the bounded undo/redo history used by the editor.
//
// The store never rejects input: missing ids are generated, missing positions
// are laid out on a grid and deltas naming unknown ids are skipped.
package graph

import (
	"math/rand/v2"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/mindmap/internal/models"
)

// Snapshot is a value copy of the editable state of a map.
type Snapshot struct {
	Title string
	Nodes []models.Node
	Edges []models.Edge
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Title: s.Title,
		Nodes: models.CloneNodes(s.Nodes),
		Edges: models.CloneEdges(s.Edges),
	}
}

func (s Snapshot) equal(o Snapshot) bool {
	if s.Title != o.Title || len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) {
		return false
	}
	for i := range s.Nodes {
		if !reflect.DeepEqual(s.Nodes[i], o.Nodes[i]) {
			return false
		}
	}
	for i := range s.Edges {
		if !reflect.DeepEqual(s.Edges[i], o.Edges[i]) {
			return false
		}
	}
	return true
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUID generator used for new nodes and edges.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// WithRand sets the source used for fallback node positions.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		s.rnd = r
	}
}

// Store holds the canonical graph of exactly one map. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	id     string
	title  string
	status string
	nodes  []models.Node
	edges  []models.Edge

	newID func() string
	rnd   *rand.Rand
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		status: models.StatusDraft,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Load replaces the whole graph with m. Nodes and edges without an id get a
// generated one and nodes without a position are placed on the grid.
func (s *Store) Load(m *models.Map) {
	nodes := models.CloneNodes(m.Nodes)
	edges := models.CloneEdges(m.Edges)
	for i := range nodes {
		if nodes[i].ID == "" {
			nodes[i].ID = s.newID()
		}
		if nodes[i].Data == nil {
			nodes[i].Data = models.NewData(nodes[i].Type)
		}
		nodes[i].Type = nodes[i].Data.Type()
	}
	for i := range edges {
		if edges[i].ID == "" {
			edges[i].ID = s.newID()
		}
	}
	layoutMissing(nodes)

	status := m.Status
	if status == "" {
		status = models.StatusDraft
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = m.ID
	s.title = m.Title
	s.status = status
	s.nodes = nodes
	s.edges = edges
}

// Map returns a deep copy of the current state as a map aggregate.
func (s *Store) Map() *models.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &models.Map{
		ID:     s.id,
		Title:  s.title,
		Status: s.status,
		Nodes:  models.CloneNodes(s.nodes),
		Edges:  models.CloneEdges(s.edges),
	}
}

// ID returns the id of the loaded map.
func (s *Store) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Title returns the map title.
func (s *Store) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.title
}

// SetTitle replaces the map title.
func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// Status returns the map status.
func (s *Store) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Nodes returns a copy of the node collection in order.
func (s *Store) Nodes() []models.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneNodes(s.nodes)
}

// Edges returns a copy of the edge collection in order.
func (s *Store) Edges() []models.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneEdges(s.edges)
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.nodeIndex(id); i >= 0 {
		return s.nodes[i].Clone(), true
	}
	return models.Node{}, false
}

// ApplyNodeChanges applies the deltas in order. Deltas naming an unknown id
// are skipped.
func (s *Store) ApplyNodeChanges(changes []NodeChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range changes {
		switch ch.Kind {
		case ChangeAdd:
			n := ch.Node.Clone()
			if n.ID == "" {
				n.ID = s.newID()
			}
			if n.Data == nil {
				n.Data = models.NewData(n.Type)
			}
			n.Type = n.Data.Type()
			if n.Position == nil {
				p := s.randomPosition()
				n.Position = &p
			}
			if i := s.nodeIndex(n.ID); i >= 0 {
				s.nodes[i] = n
			} else {
				s.nodes = append(s.nodes, n)
			}
		case ChangeRemove:
			if i := s.nodeIndex(ch.ID); i >= 0 {
				s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			}
		case ChangeMove:
			if i := s.nodeIndex(ch.ID); i >= 0 {
				p := ch.Position
				s.nodes[i].Position = &p
			}
		case ChangeUpdate:
			if i := s.nodeIndex(ch.ID); i >= 0 && ch.Data != nil {
				s.nodes[i].Data = models.CloneData(ch.Data)
				s.nodes[i].Type = ch.Data.Type()
			}
		}
	}
}

// ApplyEdgeChanges applies the deltas in order. Endpoints are not checked
// against the node set.
func (s *Store) ApplyEdgeChanges(changes []EdgeChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range changes {
		switch ch.Kind {
		case ChangeAdd:
			e := ch.Edge.Clone()
			if e.ID == "" {
				e.ID = s.newID()
			}
			if i := s.edgeIndex(e.ID); i >= 0 {
				s.edges[i] = e
			} else {
				s.edges = append(s.edges, e)
			}
		case ChangeRemove:
			if i := s.edgeIndex(ch.ID); i >= 0 {
				s.edges = append(s.edges[:i], s.edges[i+1:]...)
			}
		case ChangeUpdate:
			if i := s.edgeIndex(ch.ID); i >= 0 {
				s.edges[i].Label = ch.Label
			}
		}
	}
}

// AddNode appends a node of type t with the type's default payload. A nil
// position is replaced by a random one near the top-left of the canvas.
func (s *Store) AddNode(t models.NodeType, pos *models.Position) models.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := models.NewData(t)
	n := models.Node{ID: s.newID(), Type: data.Type(), Data: data}
	if pos != nil {
		p := *pos
		n.Position = &p
	} else {
		p := s.randomPosition()
		n.Position = &p
	}
	s.nodes = append(s.nodes, n)
	return n.Clone()
}

// Connect appends an edge from source to target. Any pair is accepted,
// including self-loops and duplicates.
func (s *Store) Connect(source, target string) models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := models.Edge{ID: s.newID(), Source: source, Target: target}
	s.edges = append(s.edges, e)
	return e
}

// Layout places every node without a position on the grid.
func (s *Store) Layout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	layoutMissing(s.nodes)
}

// Snapshot returns a deep copy of title, nodes and edges.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Title: s.title,
		Nodes: models.CloneNodes(s.nodes),
		Edges: models.CloneEdges(s.edges),
	}
}

// Restore replaces title, nodes and edges with a copy of snap and lays out
// any node without a position.
func (s *Store) Restore(snap Snapshot) {
	c := snap.clone()
	layoutMissing(c.Nodes)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = c.Title
	s.nodes = c.Nodes
	s.edges = c.Edges
}

func (s *Store) randomPosition() models.Position {
	return models.Position{
		X: 80 + s.rnd.Float64()*320,
		Y: 80 + s.rnd.Float64()*160,
	}
}

func (s *Store) nodeIndex(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) edgeIndex(id string) int {
	for i := range s.edges {
		if s.edges[i].ID == id {
			return i
		}
	}
	return -1
}
