package fretboard

import "slices"

// Registry holds the NoteState of every grid position. It is not safe for
// concurrent use; the owning session serialises access.
type Registry struct {
	grid   Grid
	states []NoteState
}

// NewRegistry copies states into a registry over g. states must have g.Size() entries.
func NewRegistry(g Grid, states []NoteState) *Registry {
	r := &Registry{grid: g, states: make([]NoteState, g.Size())}
	copy(r.states, states)
	return r
}

// Grid returns the registry's grid.
func (r *Registry) Grid() Grid { return r.grid }

// Get returns the state at p.
func (r *Registry) Get(p Position) (NoteState, error) {
	if err := r.grid.Check(p); err != nil {
		return NoteState{}, err
	}
	return r.states[r.grid.index(p)], nil
}

// States returns a copy of all states in grid order.
func (r *Registry) States() []NoteState { return slices.Clone(r.states) }

// Clone returns an independent copy.
func (r *Registry) Clone() *Registry { return NewRegistry(r.grid, r.states) }

// ToggleMember adds p to the visible set, taking the root role if it sounds
// the key, or removes it entirely.
func (r *Registry) ToggleMember(p Position) (NoteState, error) {
	if err := r.grid.Check(p); err != nil {
		return NoteState{}, err
	}
	n := &r.states[r.grid.index(p)]
	if n.Visible {
		n.clear()
	} else {
		n.InScale, n.Visible = true, true
		n.IsRoot = n.Interval == 0
	}
	return *n, nil
}

// ToggleRoot demotes a root to a plain member, or promotes p to a visible root.
func (r *Registry) ToggleRoot(p Position) (NoteState, error) {
	if err := r.grid.Check(p); err != nil {
		return NoteState{}, err
	}
	n := &r.states[r.grid.index(p)]
	if n.IsRoot {
		n.IsRoot = false
	} else {
		n.InScale, n.Visible, n.IsRoot = true, true, true
	}
	return *n, nil
}

// Clear drops every flag, keeping the pitch data.
func (r *Registry) Clear() {
	for i := range r.states {
		r.states[i].clear()
	}
}

// NoteEdit records the flags of one position that differ from an empty board.
type NoteEdit struct {
	Position
	InScale bool `json:"in_scale"`
	IsRoot  bool `json:"is_root"`
	Visible bool `json:"visible"`
}

// Edits lists every position with at least one flag set.
func (r *Registry) Edits() []NoteEdit {
	var out []NoteEdit
	for i, n := range r.states {
		if n.InScale || n.IsRoot || n.Visible {
			out = append(out, NoteEdit{Position: r.grid.position(i), InScale: n.InScale, IsRoot: n.IsRoot, Visible: n.Visible})
		}
	}
	return out
}

// ApplyEdits clears the registry and sets the flags from edits. Edits off
// the grid are skipped; IsRoot forces InScale.
func (r *Registry) ApplyEdits(edits []NoteEdit) {
	r.Clear()
	for _, e := range edits {
		if !r.grid.Contains(e.Position) {
			continue
		}
		n := &r.states[r.grid.index(e.Position)]
		n.InScale = e.InScale || e.IsRoot
		n.IsRoot = e.IsRoot
		n.Visible = e.Visible
	}
}
