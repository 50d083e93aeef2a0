package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mindmap/internal/checksum"
	"github.com/starford/mindmap/internal/storage"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, id string)

// Event kinds passed to EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

const (
	// settleDelay coalesces the Create/Write bursts of a single save.
	settleDelay    = 50 * time.Millisecond
	reconcileDelay = 200 * time.Millisecond
)

type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback

	dirty map[string]string // id -> vault path, waiting to settle
}

func (w *watcher) emit(kind, id string) {
	if w.cb != nil {
		w.cb(kind, id)
	}
}

// Watch starts an fsnotify watcher on the maps directory of the vault and
// keeps the index in step with it until ctx is cancelled. cb, when non-nil,
// is called after each index change.
//
// Writes whose checksum matches the index are ignored, so saves made through
// the service do not echo back as events. Renames trigger a debounced
// reconciliation pass.
func Watch(ctx context.Context, db *DB, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	mapsRoot := filepath.Join(vaultRoot, storage.MapsDir)
	if err := os.MkdirAll(mapsRoot, 0o755); err != nil {
		return err
	}
	if err := fw.Add(mapsRoot); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", mapsRoot))

	w := &watcher{db: db, store: store, root: vaultRoot, logger: logger, cb: cb, dirty: map[string]string{}}

	settle := newIdleTimer()
	defer settle.stop()
	reconcileT := newIdleTimer()
	defer reconcileT.stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-settle.c():
			for id, rel := range w.dirty {
				w.index(id, rel)
			}
			clear(w.dirty)

		case <-reconcileT.c():
			reconcile(db, store, logger, cb)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(vaultRoot, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			id, isMap := storage.MapID(rel)
			if !isMap {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
				w.dirty[id] = rel
				settle.reset(settleDelay)
			case ev.Has(fsnotify.Remove):
				delete(w.dirty, id)
				w.remove(id)
			case ev.Has(fsnotify.Rename):
				// fsnotify reports the old path only; the new one shows up as
				// a Create when it stays inside maps/.
				delete(w.dirty, id)
				w.remove(id)
				reconcileT.reset(reconcileDelay)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// index re-reads one document and upserts it unless the index already holds
// the same checksum.
func (w *watcher) index(id, rel string) {
	data, err := w.store.Read(rel)
	if err != nil {
		// Removed or renamed before it settled; the Remove/Rename event
		// handles the index.
		w.logger.Debug("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	known, _ := w.db.GetChecksum(id)
	if known == checksum.Sum(data) {
		return
	}
	if err := IndexDocument(w.db, rel, data); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	kind := EventUpdated
	if known == "" {
		kind = EventCreated
	}
	w.logger.Debug("watcher: indexed", slog.String("id", id), slog.String("op", kind))
	w.emit(kind, id)
}

func (w *watcher) remove(id string) {
	if known, _ := w.db.GetChecksum(id); known == "" {
		return
	}
	if err := w.db.DeleteMap(id); err != nil {
		w.logger.Warn("watcher: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	w.logger.Debug("watcher: deleted", slog.String("id", id))
	w.emit(EventDeleted, id)
}

// idleTimer is a resettable one-shot timer whose channel is nil while idle,
// so it can sit in a select without firing.
type idleTimer struct {
	t *time.Timer
}

func newIdleTimer() *idleTimer { return &idleTimer{} }

func (i *idleTimer) c() <-chan time.Time {
	if i.t == nil {
		return nil
	}
	return i.t.C
}

func (i *idleTimer) reset(d time.Duration) {
	if i.t == nil {
		i.t = time.NewTimer(d)
		return
	}
	i.t.Reset(d)
}

func (i *idleTimer) stop() {
	if i.t != nil {
		i.t.Stop()
	}
}
