package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/mindmap/internal/apperr"
)

// MapRow represents a row in the maps table.
type MapRow struct {
	ID        string
	Title     string
	Status    string
	ProjectID string
	NodeCount int
	EdgeCount int
	Checksum  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectRow represents a row in the projects table.
type ProjectRow struct {
	ID        string
	MapID     string
	Title     string
	Path      string
	CreatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Title   string
	Snippet string
}

const defaultSearchLimit = 20

func searchLimit(n int) int {
	if n <= 0 {
		return defaultSearchLimit
	}
	return n
}

// scanResults reads (id, title, snippet) rows and closes them.
func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, fmt.Errorf("index: scan search row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const mapColumns = `id, title, status, project_id, node_count, edge_count, checksum, created_at, updated_at`

// UpsertMap inserts or replaces a map and its FTS entry within a transaction.
// labels is the space-joined text of all node labels.
func (db *DB) UpsertMap(r MapRow, labels string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	// Stored as text, so a single zone keeps ORDER BY chronological.
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()

	_, err = tx.Exec(`
		INSERT INTO maps (`+mapColumns+`, labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			status     = excluded.status,
			project_id = excluded.project_id,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at,
			labels     = excluded.labels
	`, r.ID, r.Title, r.Status, r.ProjectID, r.NodeCount, r.EdgeCount, r.Checksum, r.CreatedAt, r.UpdatedAt, labels)
	if err != nil {
		return fmt.Errorf("index: upsert map: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r.ID, r.Title, labels); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteMap removes a map and its FTS entry.
func (db *DB) DeleteMap(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	if _, err := tx.Exec(`DELETE FROM maps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete map: %w", err)
	}
	return tx.Commit()
}

// GetMap returns the indexed row for id, or apperr.ErrNotFound.
func (db *DB) GetMap(id string) (*MapRow, error) {
	row := db.conn.QueryRow(`SELECT `+mapColumns+` FROM maps WHERE id = ?`, id)
	r, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get map: %w", err)
	}
	return &r, nil
}

// GetChecksum returns the stored checksum for a map, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM maps WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// ListMaps returns maps filtered by exact status and a case-insensitive title
// substring, newest first. Empty filters match everything.
func (db *DB) ListMaps(status, query string) ([]MapRow, error) {
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT `+mapColumns+`
		FROM maps
		WHERE (? = '' OR status = ?)
		  AND (? = '' OR title LIKE ?)
		ORDER BY updated_at DESC, id
	`, status, status, query, like)
	if err != nil {
		return nil, fmt.Errorf("index: list maps: %w", err)
	}
	defer rows.Close()

	var out []MapRow
	for rows.Next() {
		r, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns id → checksum for every indexed map.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM maps`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// Count returns the number of indexed maps.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM maps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// UpsertProject records a published project.
func (db *DB) UpsertProject(p ProjectRow) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO projects (id, map_id, title, path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			map_id = excluded.map_id,
			title  = excluded.title,
			path   = excluded.path
	`, p.ID, p.MapID, p.Title, p.Path, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}
	return nil
}

// GetProject returns the project with id, or apperr.ErrNotFound.
func (db *DB) GetProject(id string) (*ProjectRow, error) {
	var p ProjectRow
	err := db.conn.QueryRow(`SELECT id, map_id, title, path, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.MapID, &p.Title, &p.Path, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get project: %w", err)
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMap(s scanner) (MapRow, error) {
	var r MapRow
	err := s.Scan(&r.ID, &r.Title, &r.Status, &r.ProjectID, &r.NodeCount, &r.EdgeCount, &r.Checksum, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
