// Package fretboard models the instrument grid, the CAGED shape rotation, the
// exclusive Box/Edit modes and the per-position note registry.
package fretboard

import (
	"fmt"

	"github.com/starford/caged/internal/apperr"
)

// DefaultFrets is the highest fret drawn when the config does not say otherwise.
const DefaultFrets = 24

// Position identifies one cell of the grid. String 0 is the lowest string.
type Position struct {
	Str  int `json:"string"`
	Fret int `json:"fret"`
}

func (p Position) String() string { return fmt.Sprintf("s%d/f%d", p.Str, p.Fret) }

// Grid is the immutable set of positions of an instrument: Strings strings,
// frets 0 (open) through Frets.
type Grid struct {
	Strings int
	Frets   int
}

// NewGrid validates the dimensions.
func NewGrid(strings, frets int) (Grid, error) {
	if strings < 1 || frets < 1 {
		return Grid{}, fmt.Errorf("fretboard: grid %dx%d is empty", strings, frets)
	}
	return Grid{Strings: strings, Frets: frets}, nil
}

// Contains reports whether p lies on the grid.
func (g Grid) Contains(p Position) bool {
	return p.Str >= 0 && p.Str < g.Strings && p.Fret >= 0 && p.Fret <= g.Frets
}

// Check returns apperr.ErrInvalidPosition for positions off the grid.
func (g Grid) Check(p Position) error {
	if !g.Contains(p) {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidPosition, p)
	}
	return nil
}

// Size is the number of positions.
func (g Grid) Size() int { return g.Strings * (g.Frets + 1) }

func (g Grid) index(p Position) int { return p.Str*(g.Frets+1) + p.Fret }

func (g Grid) position(i int) Position {
	return Position{Str: i / (g.Frets + 1), Fret: i % (g.Frets + 1)}
}
