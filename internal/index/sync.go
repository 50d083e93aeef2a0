package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/mindmap/internal/checksum"
	"github.com/starford/mindmap/internal/metrics"
	"github.com/starford/mindmap/internal/storage"
	"github.com/starford/mindmap/internal/wire"
)

// Sync brings the index up to date with the maps directory: new and changed
// documents are decoded and upserted, entries without a document are
// removed. Broken documents are logged and skipped.
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	return syncVault(db, store, logger, nil)
}

// reconcile is Sync for the watcher: failures are only logged and every
// change is reported to cb.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	if err := syncVault(db, store, logger, cb); err != nil {
		logger.Warn("reconcile failed", slog.String("error", err.Error()))
	}
}

func syncVault(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) error {
	metas, err := store.List(storage.MapsDir, storage.MapExt)
	if err != nil {
		return err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}
	emit := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		id, ok := storage.MapID(m.Path)
		if !ok {
			continue
		}
		onDisk[id] = struct{}{}

		known := checksums[id]
		if known == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexDocument(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("path", m.Path))
		if known == "" {
			emit(EventCreated, id)
		} else {
			emit(EventUpdated, id)
		}
	}

	for id := range checksums {
		if _, ok := onDisk[id]; ok {
			continue
		}
		if err := db.DeleteMap(id); err != nil {
			logger.Warn("sync: delete failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("id", id))
		emit(EventDeleted, id)
	}

	if n, err := db.Count(); err == nil {
		metrics.IndexedMaps.Set(float64(n))
	}
	return nil
}

// IndexDocument decodes the map document at path and upserts it.
func IndexDocument(db MapIndex, path string, data []byte) error {
	id, ok := storage.MapID(path)
	if !ok {
		return fmt.Errorf("index: not a map document: %s", path)
	}
	var w wire.Map
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("index: decode %s: %w", path, err)
	}
	row, labels := Describe(id, w, checksum.Sum(data))
	return db.UpsertMap(row, labels)
}

// Describe builds the index row and the searchable label text of a map.
func Describe(id string, m wire.Map, sum string) (MapRow, string) {
	labels := make([]string, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		lbl := n.Label
		if lbl == "" {
			lbl, _ = n.Data["label"].(string)
		}
		if lbl = strings.TrimSpace(lbl); lbl != "" {
			labels = append(labels, lbl)
		}
	}
	status := m.Status
	if status == "" {
		status = "draft"
	}
	updated := m.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	return MapRow{
		ID:        id,
		Title:     m.Title,
		Status:    status,
		ProjectID: m.ProjectID,
		NodeCount: len(m.Nodes),
		EdgeCount: len(m.Edges),
		Checksum:  sum,
		CreatedAt: m.CreatedAt,
		UpdatedAt: updated,
	}, strings.Join(labels, " ")
}
