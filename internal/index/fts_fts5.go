//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS maps_fts USING fts5(
			id UNINDEXED,
			title,
			labels,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, labels string) error {
	if _, err := tx.Exec(`DELETE FROM maps_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: clear fts %s: %w", id, err)
	}
	if _, err := tx.Exec(`INSERT INTO maps_fts (id, title, labels) VALUES (?, ?, ?)`, id, title, labels); err != nil {
		return fmt.Errorf("index: upsert fts %s: %w", id, err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM maps_fts WHERE id = ?`, id)
}

// matchQuery turns free text into an FTS5 query: every word becomes a
// quoted prefix term so operators and punctuation in user input are inert.
func matchQuery(q string) string {
	words := strings.Fields(q)
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ReplaceAll(w, `"`, `""`)
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

// Search matches titles and node labels and returns hits ranked by bm25
// with a highlighted label snippet.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	mq := matchQuery(query)
	if mq == "" {
		return nil, nil
	}
	rows, err := db.conn.Query(`
		SELECT id,
		       title,
		       snippet(maps_fts, 2, '<b>', '</b>', '...', 32)
		FROM maps_fts
		WHERE maps_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, mq, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
