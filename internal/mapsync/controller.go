// Package mapsync keeps a graph store in step with the remote map store.
//
// Saves are debounced: every ScheduleSave call cancels the pending timer and
// starts a new one, and the state written is the store state at fire time.
// In-flight saves are never cancelled, so two saves may overlap and the
// server keeps whichever lands last.
package mapsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/mindmap/internal/graph"
	"github.com/starford/mindmap/internal/metrics"
	"github.com/starford/mindmap/internal/models"
	"github.com/starford/mindmap/internal/wire"
)

const (
	// DefaultSaveDelay is the quiet period before a debounced save fires.
	DefaultSaveDelay = 700 * time.Millisecond
	// DefaultStatusTTL is how long an info message stays visible.
	DefaultStatusTTL = 1200 * time.Millisecond

	untitled = "Untitled map"
)

// Status messages.
const (
	MsgSaved       = "Saved"
	MsgExpanding   = "Generating ideas…"
	MsgExpanded    = "Done"
	MsgPublishing  = "Publishing…"
	MsgLoadFailed  = "Could not load the mind map."
	MsgSaveFailed  = "Could not save the map."
	MsgExpandError = "Could not expand with AI."
	MsgPublishFail = "Could not publish the project."
)

// ErrNoMap is returned by operations that need a loaded map.
var ErrNoMap = errors.New("mapsync: no map loaded")

// Remote is the subset of the API client the controller needs.
type Remote interface {
	Get(ctx context.Context, id string) (wire.Map, error)
	Save(ctx context.Context, id string, m wire.Map) (wire.Map, error)
	Expand(ctx context.Context, id, prompt string) error
	Publish(ctx context.Context, id string) (string, error)
}

// Status is the user-visible state of the controller. Info clears itself
// after the status TTL; Error stays until the next load.
type Status struct {
	Info   string
	Error  string
	Saving bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithSaveDelay sets the debounce quiet period.
func WithSaveDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithStatusTTL sets how long info messages are shown.
func WithStatusTTL(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.statusTTL = d
		}
	}
}

// WithOnStatus registers a callback invoked on every status change. It is
// called without locks held and may run on a timer goroutine.
func WithOnStatus(fn func(Status)) Option {
	return func(c *Controller) {
		c.onStatus = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller persists one graph store through a Remote.
type Controller struct {
	store     *graph.Store
	history   *graph.History
	remote    Remote
	delay     time.Duration
	statusTTL time.Duration
	onStatus  func(Status)
	logger    *slog.Logger

	mu            sync.Mutex
	timer         *time.Timer
	gen           uint64
	pendingSilent bool
	status        Status
	saving        int
	infoGen       uint64
	infoTimer     *time.Timer

	// inflight counts running saves. idle channels are closed when it
	// drops to zero.
	inflight int
	idle     []chan struct{}
}

// New creates a controller for store. history may be nil.
func New(store *graph.Store, history *graph.History, remote Remote, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		history:   history,
		remote:    remote,
		delay:     DefaultSaveDelay,
		statusTTL: DefaultStatusTTL,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LoadMap fetches the map and replaces the store contents with it. History is
// reset and seeded with the loaded state. On failure the store is untouched.
func (c *Controller) LoadMap(ctx context.Context, id string) (*models.Map, error) {
	c.update(func(s *Status) { s.Error = "" })

	w, err := c.remote.Get(ctx, id)
	if err != nil {
		c.logger.Error("load map", slog.String("id", id), slog.String("error", err.Error()))
		c.update(func(s *Status) { s.Error = MsgLoadFailed })
		return nil, fmt.Errorf("mapsync: load %s: %w", id, err)
	}
	m := wire.ToModel(w)
	if m.ID == "" {
		m.ID = id
	}
	if strings.TrimSpace(m.Title) == "" {
		m.Title = untitled
	}
	c.store.Load(m)
	if c.history != nil {
		c.history.Reset()
		c.history.Record(c.store.Snapshot())
	}
	c.logger.Debug("map loaded", slog.String("id", id), slog.Int("nodes", len(m.Nodes)))
	return c.store.Map(), nil
}

// ScheduleSave (re)starts the debounce timer. When it fires the current store
// state is written. A silent save reports only failures.
func (c *Controller) ScheduleSave(silent bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.pendingSilent = silent
	c.timer = time.AfterFunc(c.delay, func() { c.fire(gen) })
}

// Pending reports whether a debounced save is waiting to fire.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	silent := c.pendingSilent
	c.inflight++
	c.mu.Unlock()

	defer c.end()
	_ = c.save(context.Background(), silent, "debounced")
}

// cancelPending drops the pending debounced save and reports whether there was one.
func (c *Controller) cancelPending() (silent, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return false, false
	}
	c.timer.Stop()
	c.timer = nil
	c.gen++
	return c.pendingSilent, true
}

func (c *Controller) begin() {
	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight > 0 {
		return
	}
	for _, ch := range c.idle {
		close(ch)
	}
	c.idle = nil
}

// waitIdle blocks until no save is running.
func (c *Controller) waitIdle(ctx context.Context) error {
	c.mu.Lock()
	if c.inflight == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	c.idle = append(c.idle, ch)
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveNow writes the current state immediately, bypassing the debounce.
// A pending debounced save is left in place.
func (c *Controller) SaveNow(ctx context.Context, silent bool) error {
	c.begin()
	defer c.end()
	return c.save(ctx, silent, "explicit")
}

// Flush fires a pending debounced save right away and waits for every
// in-flight save to finish. It returns the error of the flushed save.
func (c *Controller) Flush(ctx context.Context) error {
	var err error
	if silent, ok := c.cancelPending(); ok {
		c.begin()
		err = c.save(ctx, silent, "flush")
		c.end()
	}
	if werr := c.waitIdle(ctx); werr != nil {
		return werr
	}
	return err
}

// RequestAIExpand asks the backend to expand the map and reloads it. Local
// edits not yet saved are discarded by the reload; the state before the
// expansion is recorded in history so it can be undone. An empty prompt is a
// no-op.
func (c *Controller) RequestAIExpand(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}
	id := c.store.ID()
	if id == "" {
		return ErrNoMap
	}

	c.cancelPending()
	before := c.store.Snapshot()
	c.setInfo(MsgExpanding, false)

	err := c.remote.Expand(ctx, id, prompt)
	var w wire.Map
	if err == nil {
		w, err = c.remote.Get(ctx, id)
	}
	if err != nil {
		c.logger.Error("expand map", slog.String("id", id), slog.String("error", err.Error()))
		c.update(func(s *Status) { s.Error = MsgExpandError })
		c.setInfo("", false)
		return fmt.Errorf("mapsync: expand %s: %w", id, err)
	}

	m := wire.ToModel(w)
	if m.ID == "" {
		m.ID = id
	}
	if strings.TrimSpace(m.Title) == "" {
		m.Title = before.Title
	}
	if c.history != nil {
		c.history.Record(before)
	}
	c.store.Load(m)
	c.setInfo(MsgExpanded, true)
	return nil
}

// Publish promotes the map to a project and returns the project id.
func (c *Controller) Publish(ctx context.Context) (string, error) {
	id := c.store.ID()
	if id == "" {
		return "", ErrNoMap
	}
	c.setInfo(MsgPublishing, false)
	pid, err := c.remote.Publish(ctx, id)
	if err != nil {
		c.logger.Error("publish map", slog.String("id", id), slog.String("error", err.Error()))
		c.update(func(s *Status) { s.Error = MsgPublishFail })
		c.setInfo("", false)
		return "", fmt.Errorf("mapsync: publish %s: %w", id, err)
	}
	c.setInfo("", false)
	return pid, nil
}

func (c *Controller) save(ctx context.Context, silent bool, trigger string) error {
	id := c.store.ID()
	if id == "" {
		return ErrNoMap
	}
	m := wire.FromModel(c.store.Map())

	if !silent {
		c.update(func(s *Status) {
			c.saving++
			s.Saving = true
		})
	}
	_, err := c.remote.Save(ctx, id, m)
	if !silent {
		c.update(func(s *Status) {
			c.saving--
			s.Saving = c.saving > 0
		})
	}
	metrics.ClientSaves.WithLabelValues(trigger, metrics.Result(err)).Inc()

	if err != nil {
		c.logger.Error("save map", slog.String("id", id), slog.String("error", err.Error()))
		c.update(func(s *Status) { s.Error = MsgSaveFailed })
		return fmt.Errorf("mapsync: save %s: %w", id, err)
	}
	c.logger.Debug("map saved", slog.String("id", id), slog.String("trigger", trigger))
	if !silent {
		c.setInfo(MsgSaved, true)
	}
	return nil
}

// setInfo sets the info message. With expire it is cleared after the TTL
// unless replaced in the meantime.
func (c *Controller) setInfo(msg string, expire bool) {
	c.mu.Lock()
	c.infoGen++
	gen := c.infoGen
	if c.infoTimer != nil {
		c.infoTimer.Stop()
		c.infoTimer = nil
	}
	if expire {
		c.infoTimer = time.AfterFunc(c.statusTTL, func() { c.clearInfo(gen) })
	}
	c.mu.Unlock()
	c.update(func(s *Status) { s.Info = msg })
}

func (c *Controller) clearInfo(gen uint64) {
	c.mu.Lock()
	stale := gen != c.infoGen
	if !stale {
		c.infoTimer = nil
	}
	c.mu.Unlock()
	if !stale {
		c.update(func(s *Status) { s.Info = "" })
	}
}

func (c *Controller) update(fn func(*Status)) {
	c.mu.Lock()
	fn(&c.status)
	st := c.status
	c.mu.Unlock()
	if c.onStatus != nil {
		c.onStatus(st)
	}
}
