package fretboard

import (
	"time"

	"github.com/starford/caged/internal/theory"
)

// Snapshot is an immutable, consistent copy of one session's state. Shape,
// Mode and States always belong to the same instant.
type Snapshot struct {
	ID      string
	Version uint64
	Key     theory.PitchClass
	Quality theory.Quality
	Tuning  theory.Tuning
	Shape   Shape
	Mode    Mode
	Grid    Grid
	States  []NoteState
	TakenAt time.Time
}

// At returns the state at p.
func (s Snapshot) At(p Position) (NoteState, error) {
	if err := s.Grid.Check(p); err != nil {
		return NoteState{}, err
	}
	return s.States[s.Grid.index(p)], nil
}

// Notes returns the visible notes ordered by string, then fret.
func (s Snapshot) Notes() []Note {
	var out []Note
	for i, n := range s.States {
		if n.Visible {
			out = append(out, Note{Position: s.Grid.position(i), NoteState: n})
		}
	}
	return out
}

// Roots returns the positions of visible roots.
func (s Snapshot) Roots() []Position {
	var out []Position
	for _, n := range s.Notes() {
		if n.IsRoot {
			out = append(out, n.Position)
		}
	}
	return out
}
