// Package session owns the interaction state of one fretboard: the mode,
// the active CAGED shape, the note registry and the click disambiguator.
// Every mutation runs under a single lock; readers get Snapshots.
//
// A session displays exactly one registry. Switching modes never touches it:
// edits made in Edit mode stay on the board in Box mode, and the computed box
// is what Edit mode starts from. A change of key, shape or anchor recomputes
// the registry and drops the edits.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/fretboard"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// Reason names what produced a Change.
type Reason string

const (
	ReasonMode   Reason = "mode"
	ReasonShape  Reason = "shape"
	ReasonKey    Reason = "key"
	ReasonEdit   Reason = "edit"
	ReasonReset  Reason = "reset"
	ReasonImport Reason = "import"
)

// Change describes one committed mutation. Snapshot and State were taken
// under the same lock as the mutation.
type Change struct {
	Reason   Reason
	Snapshot fretboard.Snapshot
	State    State
}

// Hooks are invoked after the session lock is released.
type Hooks struct {
	OnChange func(Change)
	OnClick  func(id string, c clicks.Classified)
}

// Config describes how to build a session.
type Config struct {
	ID     string
	Frets  int
	Window time.Duration
	Clock  clicks.Clock
	Hooks  Hooks
}

// Session is one interactive fretboard.
type Session struct {
	mu      sync.Mutex
	id      string
	grid    fretboard.Grid
	h       harmony
	shape   fretboard.Shape
	mode    fretboard.Mode
	anchor  *fretboard.Position
	reg     *fretboard.Registry
	edited  bool
	version uint64
	closed  bool

	clock  clicks.Clock
	clicks *clicks.Disambiguator
	hooks  Hooks
}

// New creates a session in Box mode with shape C.
func New(cfg Config, p Params, d Defaults) (*Session, error) {
	h, err := p.resolve(d)
	if err != nil {
		return nil, fmt.Errorf("session: new: %w", err)
	}
	return build(cfg, h, State{Shape: fretboard.DefaultShape, Mode: fretboard.Box})
}

// Restore rebuilds a session from persisted state.
func Restore(cfg Config, st State) (*Session, error) {
	h, err := st.harmony()
	if err != nil {
		return nil, fmt.Errorf("session: restore %s: %w", st.ID, err)
	}
	if _, err := fretboard.ParseShape(string(st.Shape)); err != nil {
		return nil, fmt.Errorf("session: restore %s: %w", st.ID, err)
	}
	if _, err := fretboard.ParseMode(string(st.Mode)); err != nil {
		return nil, fmt.Errorf("session: restore %s: %w", st.ID, err)
	}
	cfg.ID = st.ID
	return build(cfg, h, st)
}

func build(cfg Config, h harmony, st State) (*Session, error) {
	if cfg.ID == "" {
		return nil, errors.New("session: empty id")
	}
	frets := cfg.Frets
	if frets == 0 {
		frets = fretboard.DefaultFrets
	}
	grid, err := fretboard.NewGrid(h.tuning.Strings(), frets)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clicks.SystemClock{}
	}

	s := &Session{
		id:      cfg.ID,
		grid:    grid,
		h:       h,
		shape:   st.Shape,
		mode:    st.Mode,
		version: st.Version,
		clock:   cfg.Clock,
		hooks:   cfg.Hooks,
	}
	if st.Anchor != nil && grid.Contains(*st.Anchor) {
		a := *st.Anchor
		s.anchor = &a
	}
	s.recompute()
	if st.HasEdits {
		s.reg.ApplyEdits(st.Edits)
		s.edited = true
	}
	s.clicks = clicks.New(cfg.Clock, cfg.Window, s.apply)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Grid returns the immutable position grid.
func (s *Session) Grid() fretboard.Grid { return s.grid }

// Mode returns the active mode.
func (s *Session) Mode() fretboard.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Shape returns the active CAGED shape.
func (s *Session) Shape() fretboard.Shape {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shape
}

// NoteState returns the displayed state at p.
func (s *Session) NoteState(p fretboard.Position) (fretboard.NoteState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Get(p)
}

// Snapshot returns a consistent copy of the displayed state.
func (s *Session) Snapshot() fretboard.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the persistable form of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// SwitchTo activates mode m. Switching to the active mode is a no-op.
// NoteState is never altered by a switch.
func (s *Session) SwitchTo(m fretboard.Mode) error {
	if _, err := fretboard.ParseMode(string(m)); err != nil {
		return err
	}
	return s.mutate(func() (Reason, error) {
		if m == s.mode {
			return "", nil
		}
		s.mode = m
		return ReasonMode, nil
	})
}

// AdvanceShape moves to the next shape in the cycle and returns it.
func (s *Session) AdvanceShape() (fretboard.Shape, error) {
	var next fretboard.Shape
	err := s.mutate(func() (Reason, error) {
		s.shape = s.shape.Next()
		s.recompute()
		next = s.shape
		return ReasonShape, nil
	})
	return next, err
}

// SelectShape jumps directly to shape.
func (s *Session) SelectShape(shape fretboard.Shape) error {
	if _, err := fretboard.ParseShape(string(shape)); err != nil {
		return err
	}
	return s.mutate(func() (Reason, error) {
		if shape == s.shape {
			return "", nil
		}
		s.shape = shape
		s.recompute()
		return ReasonShape, nil
	})
}

// SetKey changes key, quality and tuning. Empty Params fields keep the
// current value. The anchor and any edits are dropped.
func (s *Session) SetKey(p Params) error {
	h, err := s.resolve(p)
	if err != nil {
		return err
	}
	return s.mutate(func() (Reason, error) {
		s.h = h
		s.anchor = nil
		s.recompute()
		return ReasonKey, nil
	})
}

// SetRootAt makes the pitch at p the key and places the box in the octave
// that contains p. Quality, tuning, shape and mode are kept.
func (s *Session) SetRootAt(p fretboard.Position) error {
	if err := s.grid.Check(p); err != nil {
		return err
	}
	return s.mutate(func() (Reason, error) {
		s.h.key = s.h.tuning.PitchClass(p.Str, p.Fret)
		s.anchor = &p
		s.recompute()
		return ReasonKey, nil
	})
}

// JumpToShape roots the board at p with the shape whose root lies on p's
// string and returns to Box mode. Box shapes exist only in standard tuning.
func (s *Session) JumpToShape(p fretboard.Position) (fretboard.Shape, error) {
	if err := s.grid.Check(p); err != nil {
		return "", err
	}
	shape, err := fretboard.ShapeForString(p.Str)
	if err != nil {
		return "", err
	}
	err = s.mutate(func() (Reason, error) {
		if !s.h.tuning.IsStandard() {
			return "", fmt.Errorf("%w: tuning %s has no box shapes", apperr.ErrInvalidShape, s.h.tuning.Name)
		}
		s.h.key = s.h.tuning.PitchClass(p.Str, p.Fret)
		s.anchor = &p
		s.shape = shape
		s.mode = fretboard.Box
		s.recompute()
		return ReasonShape, nil
	})
	if err != nil {
		return "", err
	}
	return shape, nil
}

// ResetEdits discards edits. In Edit mode the board becomes empty; in Box
// mode the computed box is shown again.
func (s *Session) ResetEdits() error {
	return s.mutate(func() (Reason, error) {
		if s.mode == fretboard.Edit {
			s.reg.Clear()
			s.edited = true
			return ReasonReset, nil
		}
		if !s.edited {
			return "", nil
		}
		s.recompute()
		return ReasonReset, nil
	})
}

// ImportNotes replaces the board with positions and switches to Edit.
func (s *Session) ImportNotes(positions []fretboard.Position) error {
	return s.Import(Import{Positions: positions})
}

// Import is a tab applied to a session in one step.
type Import struct {
	// Params change the harmony first; empty fields keep the current value.
	Params Params
	// Shape, when set, is selected before the notes are placed.
	Shape     fretboard.Shape
	Positions []fretboard.Position
}

// Import validates everything in in before changing anything, then applies
// the harmony, the shape and the notes as one change and switches to Edit.
func (s *Session) Import(in Import) error {
	for _, p := range in.Positions {
		if err := s.grid.Check(p); err != nil {
			return err
		}
	}
	if in.Shape != "" {
		if _, err := fretboard.ParseShape(string(in.Shape)); err != nil {
			return err
		}
	}
	var h *harmony
	if in.Params != (Params{}) {
		resolved, err := s.resolve(in.Params)
		if err != nil {
			return err
		}
		h = &resolved
	}
	return s.mutate(func() (Reason, error) {
		if h != nil {
			s.h = *h
			s.anchor = nil
		}
		if in.Shape != "" {
			s.shape = in.Shape
		}
		s.recompute()
		s.reg.Clear()
		for _, p := range in.Positions {
			if n, _ := s.reg.Get(p); n.Visible {
				continue
			}
			if _, err := s.reg.ToggleMember(p); err != nil {
				return "", err
			}
		}
		s.edited = true
		s.mode = fretboard.Edit
		return ReasonImport, nil
	})
}

// Click feeds a press on p to the disambiguator. The classification is
// applied asynchronously for single clicks and before Click returns for the
// second press of a double click.
func (s *Session) Click(p fretboard.Position) error {
	if err := s.grid.Check(p); err != nil {
		return err
	}
	if err := s.clicks.Click(clicks.Event{Position: p, At: s.clock.Now()}); err != nil {
		if errors.Is(err, clicks.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// PendingClicks returns the number of positions awaiting classification.
func (s *Session) PendingClicks() int { return s.clicks.Pending() }

// Close cancels pending clicks. Later mutations return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.clicks.Close()
}

// apply commits a classified click. Box: a single click is inert, a double
// click advances the shape. Edit: single toggles membership, double toggles
// the root role.
func (s *Session) apply(c clicks.Classified) {
	if s.hooks.OnClick != nil {
		s.hooks.OnClick(s.id, c)
	}
	err := s.mutate(func() (Reason, error) {
		switch {
		case s.mode == fretboard.Box && c.Kind == clicks.Double:
			s.shape = s.shape.Next()
			s.recompute()
			return ReasonShape, nil
		case s.mode == fretboard.Box:
			return "", nil
		case c.Kind == clicks.Double:
			if _, err := s.reg.ToggleRoot(c.Position); err != nil {
				return "", err
			}
		default:
			if _, err := s.reg.ToggleMember(c.Position); err != nil {
				return "", err
			}
		}
		s.edited = true
		return ReasonEdit, nil
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		slog.Error("session: apply click",
			slog.String("session", s.id),
			slog.String("position", c.Position.String()),
			slog.String("error", err.Error()))
	}
}

// mutate runs fn under the lock. A non-empty reason commits the change:
// the version is bumped and OnChange runs after unlocking.
func (s *Session) mutate(fn func() (Reason, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	reason, err := fn()
	if err != nil || reason == "" {
		s.mu.Unlock()
		return err
	}
	s.version++
	ch := Change{Reason: reason, Snapshot: s.snapshotLocked(), State: s.stateLocked()}
	s.mu.Unlock()

	if s.hooks.OnChange != nil {
		s.hooks.OnChange(ch)
	}
	return nil
}

// resolve applies p over the current harmony. The tuning must keep the
// board's string count.
func (s *Session) resolve(p Params) (harmony, error) {
	s.mu.Lock()
	cur := Defaults{Key: s.h.key, Quality: s.h.quality, Tuning: s.h.tuning.Name}
	s.mu.Unlock()
	h, err := p.resolve(cur)
	if err != nil {
		return harmony{}, err
	}
	if h.tuning.Strings() != s.grid.Strings {
		return harmony{}, fmt.Errorf("%w: tuning %s has %d strings, board has %d", apperr.ErrInvalidKey, h.tuning.Name, h.tuning.Strings(), s.grid.Strings)
	}
	return h, nil
}

// recompute replaces the board with the computed box and drops edits.
func (s *Session) recompute() {
	var states []fretboard.NoteState
	if s.anchor != nil {
		states = fretboard.ComputeAnchored(s.grid, s.h.tuning, s.h.key, s.h.quality, s.shape, *s.anchor)
	} else {
		states = fretboard.Compute(s.grid, s.h.tuning, s.h.key, s.h.quality, s.shape)
	}
	s.reg = fretboard.NewRegistry(s.grid, states)
	s.edited = false
}

func (s *Session) snapshotLocked() fretboard.Snapshot {
	return fretboard.Snapshot{
		ID:      s.id,
		Version: s.version,
		Key:     s.h.key,
		Quality: s.h.quality,
		Tuning:  s.h.tuning,
		Shape:   s.shape,
		Mode:    s.mode,
		Grid:    s.grid,
		States:  s.reg.States(),
		TakenAt: s.clock.Now(),
	}
}

func (s *Session) stateLocked() State {
	st := State{
		ID:        s.id,
		Version:   s.version,
		Key:       s.h.key,
		Quality:   s.h.quality,
		Tuning:    s.h.tuning.Name,
		Shape:     s.shape,
		Mode:      s.mode,
		UpdatedAt: s.clock.Now(),
	}
	if s.anchor != nil {
		a := *s.anchor
		st.Anchor = &a
	}
	if s.edited {
		st.HasEdits = true
		st.Edits = s.reg.Edits()
	}
	return st
}
