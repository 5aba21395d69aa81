package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/theory"
)

var _ session.Store = (*DB)(nil)

// SaveSession upserts st. A row already holding a newer version is left
// untouched, so out-of-order saves from concurrent hooks cannot regress it.
func (db *DB) SaveSession(ctx context.Context, st session.State) error {
	edits := st.Edits
	if edits == nil {
		edits = []fretboard.NoteEdit{}
	}
	editsJSON, err := json.Marshal(edits)
	if err != nil {
		return fmt.Errorf("store: encode edits: %w", err)
	}
	var anchorJSON []byte
	if st.Anchor != nil {
		if anchorJSON, err = json.Marshal(st.Anchor); err != nil {
			return fmt.Errorf("store: encode anchor: %w", err)
		}
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, version, key, quality, tuning, shape, mode, anchor, has_edits, edits, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version    = excluded.version,
			key        = excluded.key,
			quality    = excluded.quality,
			tuning     = excluded.tuning,
			shape      = excluded.shape,
			mode       = excluded.mode,
			anchor     = excluded.anchor,
			has_edits  = excluded.has_edits,
			edits      = excluded.edits,
			updated_at = excluded.updated_at
		WHERE excluded.version >= sessions.version
	`, st.ID, int64(st.Version), int(st.Key), string(st.Quality), st.Tuning, string(st.Shape), string(st.Mode),
		string(anchorJSON), st.HasEdits, string(editsJSON), st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: save session: %w", err)
	}
	return nil
}

// LoadSessions returns every persisted session ordered by id. Rows whose
// JSON columns cannot be decoded are logged and skipped.
func (db *DB) LoadSessions(ctx context.Context) ([]session.State, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, version, key, quality, tuning, shape, mode, anchor, has_edits, edits, updated_at
		FROM sessions ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: load sessions: %w", err)
	}
	defer rows.Close()

	var out []session.State
	for rows.Next() {
		var (
			st                   session.State
			version              int64
			key                  int
			quality, shape, mode string
			anchorJSON           string
			editsJSON            string
		)
		if err := rows.Scan(&st.ID, &version, &key, &quality, &st.Tuning, &shape, &mode, &anchorJSON, &st.HasEdits, &editsJSON, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.Version = uint64(version)
		st.Key = theory.PitchClass(key)
		st.Quality = theory.Quality(quality)
		st.Shape = fretboard.Shape(shape)
		st.Mode = fretboard.Mode(mode)
		if err := decodeSessionJSON(&st, anchorJSON, editsJSON); err != nil {
			slog.Warn("skipping unreadable session",
				slog.String("session", st.ID),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func decodeSessionJSON(st *session.State, anchorJSON, editsJSON string) error {
	if anchorJSON != "" {
		st.Anchor = new(fretboard.Position)
		if err := json.Unmarshal([]byte(anchorJSON), st.Anchor); err != nil {
			return fmt.Errorf("decode anchor: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(editsJSON), &st.Edits); err != nil {
		return fmt.Errorf("decode edits: %w", err)
	}
	return nil
}

// DeleteSession removes a session row. Missing rows are not an error.
func (db *DB) DeleteSession(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete session: %w", err)
	}
	return nil
}
