package fretboard

import (
	"github.com/starford/caged/internal/theory"
)

// Compute derives the Box-mode state of every position from the tuning, key,
// quality and shape. It is pure: equal inputs give equal output.
//
// In standard tuning a note is visible when it is a chord tone inside the
// shape's fret box. Other tunings have no box shapes and show every chord tone.
func Compute(g Grid, tuning theory.Tuning, key theory.PitchClass, quality theory.Quality, shape Shape) []NoteState {
	return compute(g, tuning, key, quality, shape, nil)
}

// ComputeAnchored is Compute with the box moved to the octave that contains
// anchor. When no octave of the shape reaches the anchor's fret the lowest
// playable box is used, as in Compute.
func ComputeAnchored(g Grid, tuning theory.Tuning, key theory.PitchClass, quality theory.Quality, shape Shape, anchor Position) []NoteState {
	return compute(g, tuning, key, quality, shape, &anchor)
}

func compute(g Grid, tuning theory.Tuning, key theory.PitchClass, quality theory.Quality, shape Shape, anchor *Position) []NoteState {
	boxLow, boxHigh := 0, g.Frets
	if tuning.IsStandard() {
		boxLow, boxHigh = boxRange(tuning, key, shape, g.Frets, anchor)
	}

	states := make([]NoteState, g.Size())
	for i := range states {
		p := g.position(i)
		if p.Str >= tuning.Strings() {
			continue
		}
		pc := tuning.PitchClass(p.Str, p.Fret)
		interval := theory.Interval(key, pc)
		inScale := quality.Contains(interval)
		states[i] = NoteState{
			InScale:  inScale,
			IsRoot:   inScale && interval == 0,
			Visible:  inScale && p.Fret >= boxLow && p.Fret <= boxHigh,
			Interval: interval,
			Label:    theory.IntervalLabel(interval),
			Name:     pc.String(),
			Pitch:    tuning.Pitch(p.Str, p.Fret),
		}
	}
	return states
}

// boxRange returns the inclusive fret span of shape for key. With an anchor
// the first octave whose box covers the anchor's fret wins. Otherwise the root
// fret on the shape's root string is moved up an octave when the box would
// start behind the nut.
func boxRange(tuning theory.Tuning, key theory.PitchClass, shape Shape, frets int, anchor *Position) (int, int) {
	def, ok := definitions[shape]
	if !ok || def.anchorString >= tuning.Strings() {
		return 0, -1
	}
	open := theory.PitchClassOf(tuning.Open[def.anchorString])
	rootFret := (int(key) - int(open) + 12) % 12
	if anchor != nil {
		for c := rootFret; c <= frets; c += 12 {
			if anchor.Fret >= c-def.offsetLow && anchor.Fret <= c+def.offsetHigh {
				return c - def.offsetLow, c + def.offsetHigh
			}
		}
	}
	if rootFret-def.offsetLow < 0 {
		rootFret += 12
	}
	return rootFret - def.offsetLow, rootFret + def.offsetHigh
}
