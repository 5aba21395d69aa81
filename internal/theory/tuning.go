package theory

import (
	"fmt"
	"strings"

	"github.com/starford/caged/internal/apperr"
)

// StandardTuning is the only tuning CAGED box shapes are defined for.
const StandardTuning = "Standard"

// Tuning lists the MIDI pitch of each open string, lowest string first.
type Tuning struct {
	Name string
	Open []int
}

var tunings = []Tuning{
	{Name: StandardTuning, Open: []int{40, 45, 50, 55, 59, 64}}, // E2 A2 D3 G3 B3 E4
	{Name: "DADGAD", Open: []int{38, 45, 50, 55, 57, 62}},
	{Name: "Open D", Open: []int{38, 45, 50, 54, 57, 62}},
	{Name: "Drop D", Open: []int{38, 45, 50, 55, 59, 64}},
}

// Tunings returns the built-in tunings.
func Tunings() []Tuning {
	out := make([]Tuning, len(tunings))
	copy(out, tunings)
	return out
}

// LookupTuning finds a built-in tuning by name, case-insensitively.
func LookupTuning(name string) (Tuning, error) {
	for _, t := range tunings {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return Tuning{}, fmt.Errorf("%w: unknown tuning %q", apperr.ErrInvalidKey, name)
}

// IsStandard reports whether box shapes apply to this tuning.
func (t Tuning) IsStandard() bool { return t.Name == StandardTuning }

// Pitch returns the MIDI pitch sounded at (string, fret).
func (t Tuning) Pitch(str, fret int) int { return t.Open[str] + fret }

// PitchClass returns the pitch class sounded at (string, fret).
func (t Tuning) PitchClass(str, fret int) PitchClass { return PitchClassOf(t.Pitch(str, fret)) }

// Strings returns the number of strings.
func (t Tuning) Strings() int { return len(t.Open) }

// Labels renders the open strings low to high, e.g. "E A D G B E".
func (t Tuning) Labels() string {
	names := make([]string, len(t.Open))
	for i, p := range t.Open {
		names[i] = PitchClassOf(p).String()
	}
	return strings.Join(names, " ")
}
