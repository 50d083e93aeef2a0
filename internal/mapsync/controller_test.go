package mapsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/mindmap/internal/client"
	"github.com/starford/mindmap/internal/graph"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

type fakeRemote struct {
	mu       sync.Mutex
	maps     map[string]wire.Map
	saves    []wire.Map
	expanded []string
	saveErr  error
	getErr   error
	onExpand func(id string)
}

func newFakeRemote(m wire.Map) *fakeRemote {
	return &fakeRemote{maps: map[string]wire.Map{m.ID: m}}
}

func (f *fakeRemote) Get(_ context.Context, id string) (wire.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return wire.Map{}, f.getErr
	}
	m, ok := f.maps[id]
	if !ok {
		return wire.Map{}, errors.New("not found")
	}
	return m, nil
}

func (f *fakeRemote) Save(_ context.Context, id string, m wire.Map) (wire.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return wire.Map{}, f.saveErr
	}
	m.ID = id
	f.maps[id] = m
	f.saves = append(f.saves, m)
	return m, nil
}

func (f *fakeRemote) Expand(_ context.Context, id, prompt string) error {
	f.mu.Lock()
	f.expanded = append(f.expanded, prompt)
	hook := f.onExpand
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

func (f *fakeRemote) Publish(_ context.Context, id string) (string, error) {
	return "proj-" + id, nil
}

func (f *fakeRemote) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func newController(t *testing.T, r Remote, opts ...Option) (*Controller, *graph.Store, *graph.History) {
	t.Helper()
	store := graph.New()
	history := graph.NewHistory(0)
	opts = append([]Option{WithSaveDelay(30 * time.Millisecond), WithStatusTTL(20 * time.Millisecond)}, opts...)
	return New(store, history, r, opts...), store, history
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestLoadMapSeedsHistory(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m", Title: "", Nodes: []wire.Node{{ID: "a", Data: map[string]any{"label": "X"}}}})
	c, store, history := newController(t, r)

	m, err := c.LoadMap(context.Background(), "m")
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if m.Title != untitled {
		t.Errorf("title = %q", m.Title)
	}
	if n, ok := store.Node("a"); !ok || *n.Position != graph.GridPosition(0) {
		t.Errorf("node a = %+v", n)
	}
	if history.UndoLen() != 1 {
		t.Errorf("undo len = %d, want 1", history.UndoLen())
	}
}

func TestLoadMapFailureLeavesStore(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	r.getErr = errors.New("boom")
	c, store, _ := newController(t, r)

	if _, err := c.LoadMap(context.Background(), "m"); err == nil {
		t.Fatal("expected error")
	}
	if store.ID() != "" || len(store.Nodes()) != 0 {
		t.Error("store modified on failed load")
	}
	if c.Status().Error != MsgLoadFailed {
		t.Errorf("status = %+v", c.Status())
	}
}

func TestScheduleSaveCoalesces(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m", Title: "T"})
	c, store, _ := newController(t, r)
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}

	for range 10 {
		store.AddNode(models.NodeIdea, nil)
		c.ScheduleSave(true)
	}
	eventually(t, time.Second, func() bool { return r.saveCount() == 1 })
	time.Sleep(60 * time.Millisecond)
	if r.saveCount() != 1 {
		t.Fatalf("saves = %d, want 1", r.saveCount())
	}
	if got := len(r.saves[0].Nodes); got != 10 {
		t.Errorf("saved %d nodes, want state at fire time (10)", got)
	}
}

func TestDebounceOverHTTP(t *testing.T) {
	var puts atomic.Int32
	var lastPut atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(wire.Map{ID: "m", Title: "T"})
		case http.MethodPut:
			puts.Add(1)
			lastPut.Store(time.Now().UnixNano())
			_ = json.NewEncoder(w).Encode(wire.Map{ID: "m"})
		}
	}))
	defer srv.Close()

	delay := 50 * time.Millisecond
	c, _, _ := newController(t, client.New(srv.URL), WithSaveDelay(delay))
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}

	var lastCall time.Time
	for range 10 {
		c.ScheduleSave(true)
		lastCall = time.Now()
		time.Sleep(5 * time.Millisecond)
	}
	eventually(t, time.Second, func() bool { return puts.Load() == 1 })
	time.Sleep(2 * delay)
	if puts.Load() != 1 {
		t.Fatalf("puts = %d, want 1", puts.Load())
	}
	if fired := time.Unix(0, lastPut.Load()); fired.Sub(lastCall) < delay {
		t.Errorf("save fired %v after the last call, want >= %v", fired.Sub(lastCall), delay)
	}
}

func TestFlushFiresPendingSave(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	c, _, _ := newController(t, r, WithSaveDelay(time.Hour))
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	c.ScheduleSave(true)
	if !c.Pending() {
		t.Fatal("expected a pending save")
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if r.saveCount() != 1 || c.Pending() {
		t.Errorf("saves = %d pending = %v", r.saveCount(), c.Pending())
	}
}

// gatedRemote holds every Save until gate is closed.
type gatedRemote struct {
	*fakeRemote
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedRemote) Save(ctx context.Context, id string, m wire.Map) (wire.Map, error) {
	g.started <- struct{}{}
	<-g.gate
	return g.fakeRemote.Save(ctx, id, m)
}

func TestFlushWaitsForRunningSaves(t *testing.T) {
	r := &gatedRemote{
		fakeRemote: newFakeRemote(wire.Map{ID: "m"}),
		started:    make(chan struct{}, 16),
		gate:       make(chan struct{}),
	}
	c, _, _ := newController(t, r, WithSaveDelay(time.Millisecond))
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}

	const explicit = 4
	for range explicit {
		go func() { _ = c.SaveNow(context.Background(), true) }()
	}
	c.ScheduleSave(true)
	for range explicit + 1 {
		<-r.started
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Flush(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Flush with saves blocked = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Flush(context.Background()) }()
	select {
	case err := <-done:
		t.Fatalf("Flush returned %v before saves finished", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(r.gate)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Flush: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Flush did not return")
	}
	if got := r.saveCount(); got != explicit+1 {
		t.Errorf("saves = %d, want %d", got, explicit+1)
	}
	if err := c.Flush(context.Background()); err != nil {
		t.Errorf("idle Flush: %v", err)
	}
}

func TestSaveNowStatus(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	var seen []Status
	var mu sync.Mutex
	c, _, _ := newController(t, r, WithOnStatus(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	}))
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	if err := c.SaveNow(context.Background(), false); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}
	if c.Status().Info != MsgSaved {
		t.Errorf("info = %q", c.Status().Info)
	}
	eventually(t, time.Second, func() bool { return c.Status().Info == "" })

	mu.Lock()
	defer mu.Unlock()
	sawSaving := false
	for _, s := range seen {
		if s.Saving {
			sawSaving = true
		}
	}
	if !sawSaving {
		t.Error("saving flag never reported")
	}
}

func TestSaveErrorIsReturnedAndReported(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	c, store, _ := newController(t, r)
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	store.AddNode(models.NodeIdea, nil)
	r.saveErr = errors.New("down")

	if err := c.SaveNow(context.Background(), true); err == nil {
		t.Fatal("expected error")
	}
	if c.Status().Error != MsgSaveFailed {
		t.Errorf("status = %+v", c.Status())
	}
	if len(store.Nodes()) != 1 {
		t.Error("local graph rolled back")
	}
}

func TestSaveWithoutMap(t *testing.T) {
	c, _, _ := newController(t, newFakeRemote(wire.Map{ID: "m"}))
	if err := c.SaveNow(context.Background(), true); !errors.Is(err, ErrNoMap) {
		t.Errorf("err = %v", err)
	}
}

func TestRequestAIExpand(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m", Title: "T", Nodes: []wire.Node{{ID: "a", Label: "Root"}}})
	r.onExpand = func(id string) {
		r.mu.Lock()
		m := r.maps[id]
		m.Nodes = append(m.Nodes, wire.Node{ID: "b", Label: "New"})
		r.maps[id] = m
		r.mu.Unlock()
	}
	c, store, history := newController(t, r)
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	store.AddNode(models.NodeIdea, nil)
	c.ScheduleSave(true)

	if err := c.RequestAIExpand(context.Background(), "payments"); err != nil {
		t.Fatalf("RequestAIExpand: %v", err)
	}
	if c.Pending() {
		t.Error("pending save should be dropped")
	}
	nodes := store.Nodes()
	if len(nodes) != 2 || nodes[1].ID != "b" {
		t.Fatalf("nodes after reload = %+v", nodes)
	}
	if history.UndoLen() != 2 {
		t.Errorf("undo len = %d, want 2", history.UndoLen())
	}
	if r.saveCount() != 0 {
		t.Errorf("saves = %d, want 0", r.saveCount())
	}
}

func TestRequestAIExpandEmptyPrompt(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	c, _, _ := newController(t, r)
	if err := c.RequestAIExpand(context.Background(), "   "); err != nil {
		t.Fatal(err)
	}
	if len(r.expanded) != 0 {
		t.Error("empty prompt reached the backend")
	}
}

func TestPublish(t *testing.T) {
	r := newFakeRemote(wire.Map{ID: "m"})
	c, _, _ := newController(t, r)
	if _, err := c.Publish(context.Background()); !errors.Is(err, ErrNoMap) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.LoadMap(context.Background(), "m"); err != nil {
		t.Fatal(err)
	}
	pid, err := c.Publish(context.Background())
	if err != nil || pid != "proj-m" {
		t.Errorf("Publish = %q, %v", pid, err)
	}
}
