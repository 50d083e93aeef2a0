//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the labels column of maps is searched directly.

func initFTS(*sql.DB) error { return nil }

func ftsUpsert(*sql.Tx, string, string, string) error { return nil }

func ftsDelete(*sql.Tx, string) {}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches titles and node labels with LIKE, newest first. The
// snippet is the stretch of labels around the first match.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	like := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(`
		SELECT id, title, labels
		FROM maps
		WHERE title LIKE ? ESCAPE '\' OR labels LIKE ? ESCAPE '\'
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Snippet = excerpt(results[i].Snippet, query, 80)
	}
	return results, nil
}

// excerpt returns up to width bytes of text on each side of the first
// case-insensitive occurrence of q, or the head of text when q is absent.
func excerpt(text, q string, width int) string {
	i := strings.Index(strings.ToLower(text), strings.ToLower(q))
	if i < 0 {
		if len(text) > 2*width {
			return text[:2*width] + "..."
		}
		return text
	}
	start, end := max(0, i-width), min(len(text), i+len(q)+width)
	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}
