package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/caged/internal/export"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/library"
	"github.com/starford/caged/internal/metrics"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/store"
	"github.com/starford/caged/internal/tab"
)

const maxBody = 1 << 20

// Sessions is the subset of session.Manager the handlers use.
type Sessions interface {
	Create(ctx context.Context, p session.Params) (*session.Session, error)
	Get(id string) (*session.Session, error)
	List() []session.Summary
	Delete(ctx context.Context, id string) error
}

// Tutorials is the subset of library.Library the handlers use.
type Tutorials interface {
	Get(p string) (*library.Tutorial, error)
	List() ([]store.TutorialRow, error)
	Search(query string, limit int) ([]store.SearchResult, error)
}

// Handler holds API route handlers.
type Handler struct {
	sessions      Sessions
	tutorials     Tutorials
	recorder      metrics.Recorder
	defaultFormat export.Format
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecorder records export metrics.
func WithRecorder(r metrics.Recorder) HandlerOption {
	return func(h *Handler) { h.recorder = r }
}

// WithDefaultFormat sets the export format used when the query omits one.
func WithDefaultFormat(f export.Format) HandlerOption {
	return func(h *Handler) { h.defaultFormat = f }
}

// NewHandler creates a new Handler. tutorials may be nil, in which case the
// tutorial routes answer 404.
func NewHandler(sessions Sessions, tutorials Tutorials, opts ...HandlerOption) *Handler {
	h := &Handler{
		sessions:      sessions,
		tutorials:     tutorials,
		recorder:      metrics.Nop(),
		defaultFormat: export.PDF,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// decode reads a JSON body into v and runs its validation rules.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get session", err)
		return nil, false
	}
	return s, true
}

func writeSnapshot(w http.ResponseWriter, status int, s *session.Session) {
	writeJSON(w, status, NewSnapshotDTO(s.Snapshot()))
}

// CreateSession handles POST /api/sessions.
//
//	@Summary		Create a session
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSessionRequest	false	"Key, quality and tuning"
//	@Success		201		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	s, err := h.sessions.Create(r.Context(), req)
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeSnapshot(w, http.StatusCreated, s)
}

// ListSessions handles GET /api/sessions.
//
//	@Summary		List sessions
//	@Tags			sessions
//	@Produce		json
//	@Success		200	{object}	SessionListResponse
//	@Security		BearerAuth
//	@Router			/sessions [get]
func (h *Handler) ListSessions(w http.ResponseWriter, _ *http.Request) {
	list := h.sessions.List()
	if list == nil {
		list = []session.Summary{}
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: list, Total: len(list)})
}

// GetSession handles GET /api/sessions/{id}.
//
//	@Summary		Get a session snapshot
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SnapshotDTO
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [get]
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// DeleteSession handles DELETE /api/sessions/{id}.
//
//	@Summary		Delete a session
//	@Tags			sessions
//	@Param			id	path	string	true	"Session ID"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id} [delete]
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SwitchMode handles PUT /api/sessions/{id}/mode.
//
//	@Summary		Switch between box and edit mode
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Session ID"
//	@Param			body	body		ModeRequest	true	"Target mode"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/mode [put]
func (h *Handler) SwitchMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ModeRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := fretboard.ParseMode(req.Mode)
	if err == nil {
		err = s.SwitchTo(m)
	}
	if err != nil {
		writeError(w, "switch mode", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// AdvanceShape handles POST /api/sessions/{id}/shape/advance.
//
//	@Summary		Advance to the next CAGED shape
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SnapshotDTO
//	@Security		BearerAuth
//	@Router			/sessions/{id}/shape/advance [post]
func (h *Handler) AdvanceShape(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.AdvanceShape(); err != nil {
		writeError(w, "advance shape", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// SelectShape handles PUT /api/sessions/{id}/shape.
//
//	@Summary		Jump to a shape
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ShapeRequest	true	"Shape letter"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/shape [put]
func (h *Handler) SelectShape(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ShapeRequest
	if !decode(w, r, &req) {
		return
	}
	shape, err := fretboard.ParseShape(req.Shape)
	if err == nil {
		err = s.SelectShape(shape)
	}
	if err != nil {
		writeError(w, "select shape", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// SetKey handles PUT /api/sessions/{id}/key.
//
//	@Summary		Change key, quality or tuning
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		SetKeyRequest	true	"New harmony"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/key [put]
func (h *Handler) SetKey(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetKeyRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetKey(req); err != nil {
		writeError(w, "set key", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// SetRoot handles POST /api/sessions/{id}/root.
//
//	@Summary		Make the pitch at a position the key
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ClickRequest	true	"Position"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/root [post]
func (h *Handler) SetRoot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ClickRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.SetRootAt(req.Position()); err != nil {
		writeError(w, "set root", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// JumpToShape handles POST /api/sessions/{id}/shape/jump.
//
//	@Summary		Root the shape on a position's string there
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ClickRequest	true	"Position"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/shape/jump [post]
func (h *Handler) JumpToShape(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ClickRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.JumpToShape(req.Position()); err != nil {
		writeError(w, "jump to shape", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// Click handles POST /api/sessions/{id}/clicks. The press is classified
// asynchronously; subscribe to /api/events to observe the outcome.
//
//	@Summary		Press a fretboard position
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ClickRequest	true	"Position"
//	@Success		202		{object}	ClickResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/clicks [post]
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ClickRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.Click(req.Position()); err != nil {
		writeError(w, "click", err)
		return
	}
	writeJSON(w, http.StatusAccepted, ClickResponse{Pending: s.PendingClicks()})
}

// GetNote handles GET /api/sessions/{id}/notes/{string}/{fret}.
//
//	@Summary		State of one position
//	@Tags			sessions
//	@Produce		json
//	@Param			id		path		string	true	"Session ID"
//	@Param			string	path		int		true	"String index, 0 is the lowest"
//	@Param			fret	path		int		true	"Fret, 0 is open"
//	@Success		200		{object}	NoteStateResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/notes/{string}/{fret} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	str, err1 := strconv.Atoi(chi.URLParam(r, "string"))
	fret, err2 := strconv.Atoi(chi.URLParam(r, "fret"))
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("string and fret must be integers"))
		return
	}
	p := fretboard.Position{Str: str, Fret: fret}
	n, err := s.NoteState(p)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteStateResponse{String: str, Fret: fret, NoteState: n})
}

// ResetEdits handles DELETE /api/sessions/{id}/edits.
//
//	@Summary		Discard the edit layer
//	@Tags			sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	SnapshotDTO
//	@Security		BearerAuth
//	@Router			/sessions/{id}/edits [delete]
func (h *Handler) ResetEdits(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ResetEdits(); err != nil {
		writeError(w, "reset edits", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// Import handles POST /api/sessions/{id}/import. Frontmatter settings are
// applied before the notes, which replace the edit layer.
//
//	@Summary		Import ASCII tablature into the edit layer
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Session ID"
//	@Param			body	body		ImportRequest	true	"Tablature"
//	@Success		200		{object}	SnapshotDTO
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ImportRequest
	if !decode(w, r, &req) {
		return
	}
	if err := ImportTab(s, []byte(req.Tab)); err != nil {
		writeError(w, "import", err)
		return
	}
	writeSnapshot(w, http.StatusOK, s)
}

// ImportTab parses data and loads it into s in one change. Nothing is
// applied when the frontmatter or any position is rejected.
func ImportTab(s *session.Session, data []byte) error {
	res, err := tab.Parse(data, s.Grid().Strings)
	if err != nil {
		return err
	}
	fm := res.Frontmatter
	in := session.Import{
		Params:    session.Params{Key: fm.Key, Quality: fm.Quality, Tuning: fm.Tuning},
		Positions: res.Positions,
	}
	if fm.Shape != "" {
		if in.Shape, err = fretboard.ParseShape(fm.Shape); err != nil {
			return err
		}
	}
	return s.Import(in)
}

// Export handles GET /api/sessions/{id}/export.
//
//	@Summary		Export the session as PDF or MIDI
//	@Tags			sessions
//	@Produce		application/pdf
//	@Produce		audio/midi
//	@Param			id		path	string	true	"Session ID"
//	@Param			format	query	string	false	"Export format"	Enums(pdf, midi)
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions/{id}/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	f := h.defaultFormat
	if v := r.URL.Query().Get("format"); v != "" {
		var err error
		if f, err = export.ParseFormat(v); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
	}

	start := time.Now()
	art, err := export.Export(r.Context(), s.Snapshot(), f)
	h.recorder.ObserveExport(string(f), err == nil, time.Since(start))
	if err != nil {
		writeError(w, "export", err)
		return
	}

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, art.SuggestedFilename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		slog.Warn("export write failed", slog.String("session_id", s.ID()), slog.String("error", err.Error()))
	}
}
