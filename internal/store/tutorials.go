package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/caged/internal/apperr"
)

// TutorialRow is a row of the tutorials table. Error holds the inline
// extraction failure when the file could not be read.
type TutorialRow struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// UpsertTutorial inserts or replaces a tutorial and its FTS entry within a transaction.
func (db *DB) UpsertTutorial(t TutorialRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO tutorials (path, title, checksum, body, error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			body       = excluded.body,
			error      = excluded.error,
			updated_at = excluded.updated_at
	`, t.Path, t.Title, t.Checksum, body, t.Error, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: upsert tutorial: %w", err)
	}

	if err := ftsUpsert(tx, t.Path, t.Title, body); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTutorial removes a tutorial and its FTS entry.
func (db *DB) DeleteTutorial(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tutorials WHERE path = ?`, path); err != nil {
		return fmt.Errorf("store: delete tutorial: %w", err)
	}

	return tx.Commit()
}

// GetTutorial returns one tutorial and its text.
func (db *DB) GetTutorial(path string) (*TutorialRow, string, error) {
	var (
		t    TutorialRow
		body string
	)
	err := db.conn.QueryRow(`
		SELECT path, title, checksum, error, updated_at, body FROM tutorials WHERE path = ?
	`, path).Scan(&t.Path, &t.Title, &t.Checksum, &t.Error, &t.UpdatedAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", apperr.ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: get tutorial: %w", err)
	}
	return &t, body, nil
}

// ListTutorials returns every tutorial ordered by path.
func (db *DB) ListTutorials() ([]TutorialRow, error) {
	rows, err := db.conn.Query(`SELECT path, title, checksum, error, updated_at FROM tutorials ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("store: list tutorials: %w", err)
	}
	defer rows.Close()

	var out []TutorialRow
	for rows.Next() {
		var t TutorialRow
		if err := rows.Scan(&t.Path, &t.Title, &t.Checksum, &t.Error, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AllChecksums returns path -> checksum for every tutorial.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM tutorials`)
	if err != nil {
		return nil, fmt.Errorf("store: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
