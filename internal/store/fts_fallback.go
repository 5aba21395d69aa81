//go:build !sqlite_fts5

package store

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on tutorials.body.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// snippetLead is how much text before the first body match a snippet keeps.
const snippetLead = 60

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// Title matches rank first; snippets start shortly before the first body match.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, title,
		       substr(body, max(1, instr(lower(body), lower(?1)) - ?2), 200)
		FROM tutorials
		WHERE title LIKE ?3 OR body LIKE ?3
		ORDER BY (title LIKE ?3) DESC, path
		LIMIT ?4
	`, query, snippetLead, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
