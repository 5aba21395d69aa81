package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/store"
)

// CreateSessionRequest is the request body for creating a session. Empty
// fields fall back to the configured defaults.
type CreateSessionRequest = session.Params

// SetKeyRequest changes the harmony. Empty fields keep the current value.
type SetKeyRequest = session.Params

// ModeRequest switches between box and edit mode.
type ModeRequest struct {
	Mode string `json:"mode" example:"edit"`
}

// Validate validates the request.
func (r ModeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.Required),
	)
}

// ShapeRequest selects a shape directly.
type ShapeRequest struct {
	Shape string `json:"shape" example:"A"`
}

// Validate validates the request.
func (r ShapeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Shape, validation.Required, validation.Length(1, 1)),
	)
}

// ClickRequest is one press on the fretboard.
type ClickRequest struct {
	String *int `json:"string" example:"0"`
	Fret   *int `json:"fret" example:"3"`
}

// Validate validates the request. Range checks against the grid happen in
// the session.
func (r ClickRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.String, validation.NotNil),
		validation.Field(&r.Fret, validation.NotNil),
	)
}

// Position returns the clicked position.
func (r ClickRequest) Position() fretboard.Position {
	return fretboard.Position{Str: *r.String, Fret: *r.Fret}
}

// ClickResponse reports how many presses await classification.
type ClickResponse struct {
	Pending int `json:"pending" example:"1"`
}

// ImportRequest carries ASCII tablature, optionally with YAML frontmatter.
type ImportRequest struct {
	Tab string `json:"tab"`
}

// Validate validates the request.
func (r ImportRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Tab, validation.Required, validation.Length(1, 1<<20)),
	)
}

// NoteDTO is one visible note.
type NoteDTO struct {
	String   int    `json:"string"`
	Fret     int    `json:"fret"`
	Name     string `json:"name" example:"E"`
	Label    string `json:"label" example:"R"`
	Interval int    `json:"interval"`
	Pitch    int    `json:"pitch"`
	IsRoot   bool   `json:"is_root"`
}

// SnapshotDTO is the wire form of a session snapshot. Only visible notes
// are listed.
type SnapshotDTO struct {
	ID      string    `json:"id"`
	Version uint64    `json:"version"`
	Key     string    `json:"key" example:"C"`
	Quality string    `json:"quality" example:"Maj7"`
	Tuning  string    `json:"tuning" example:"Standard"`
	Shape   string    `json:"shape" example:"C"`
	Mode    string    `json:"mode" example:"box"`
	Strings int       `json:"strings"`
	Frets   int       `json:"frets"`
	Notes   []NoteDTO `json:"notes"`
	TakenAt time.Time `json:"taken_at"`
}

// NewSnapshotDTO converts a snapshot for the wire.
func NewSnapshotDTO(s fretboard.Snapshot) SnapshotDTO {
	dto := SnapshotDTO{
		ID:      s.ID,
		Version: s.Version,
		Key:     s.Key.String(),
		Quality: string(s.Quality),
		Tuning:  s.Tuning.Name,
		Shape:   string(s.Shape),
		Mode:    string(s.Mode),
		Strings: s.Grid.Strings,
		Frets:   s.Grid.Frets,
		Notes:   []NoteDTO{},
		TakenAt: s.TakenAt,
	}
	for _, n := range s.Notes() {
		dto.Notes = append(dto.Notes, NoteDTO{
			String:   n.Str,
			Fret:     n.Fret,
			Name:     n.Name,
			Label:    n.Display(),
			Interval: n.Interval,
			Pitch:    n.Pitch,
			IsRoot:   n.IsRoot,
		})
	}
	return dto
}

// SessionListResponse wraps the session listing.
type SessionListResponse struct {
	Sessions []session.Summary `json:"sessions"`
	Total    int               `json:"total" example:"1"`
}

// NoteStateResponse is the state of one position.
type NoteStateResponse struct {
	String int `json:"string"`
	Fret   int `json:"fret"`
	fretboard.NoteState
}

// SearchResponse wraps tutorial search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results"`
}

// TutorialListResponse wraps the tutorial listing.
type TutorialListResponse struct {
	Tutorials []store.TutorialRow `json:"tutorials"`
	Total     int                 `json:"total"`
}
