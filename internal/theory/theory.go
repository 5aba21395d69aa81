// Package theory holds the pitch, interval, chord and tuning tables the
// fretboard is computed from.
package theory

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/caged/internal/apperr"
)

// PitchClass is a chromatic pitch class, C = 0 .. B = 11.
type PitchClass int

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = map[string]PitchClass{
	"DB": 1, "EB": 3, "GB": 6, "AB": 8, "BB": 10,
}

// String returns the sharp spelling of the pitch class.
func (p PitchClass) String() string {
	if !p.Valid() {
		return fmt.Sprintf("?%d", int(p))
	}
	return noteNames[p]
}

// Valid reports whether p is in 0..11.
func (p PitchClass) Valid() bool { return p >= 0 && p < 12 }

// ParsePitchClass accepts sharp ("C#"), flat ("Db") and file-safe ("Cs")
// spellings, case-insensitively.
func ParsePitchClass(s string) (PitchClass, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(u, "S") && len(u) == 2 {
		u = u[:1] + "#"
	}
	for i, n := range noteNames {
		if n == u {
			return PitchClass(i), nil
		}
	}
	if pc, ok := flatNames[u]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("%w: %q", apperr.ErrInvalidKey, s)
}

// PitchClassOf returns the pitch class of a MIDI pitch.
func PitchClassOf(pitch int) PitchClass {
	return PitchClass(((pitch % 12) + 12) % 12)
}

// PitchName renders a MIDI pitch with its octave, e.g. 40 -> "E2".
func PitchName(pitch int) string {
	if pitch < 0 {
		return fmt.Sprintf("?%d", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}

var intervalLabels = [12]string{"R", "b2", "2", "b3", "3", "4", "b5", "5", "#5", "6", "b7", "7"}

// Interval returns the ascending distance in semitones from root to note.
func Interval(root, note PitchClass) int {
	return (int(note) - int(root) + 12) % 12
}

// IntervalLabel returns the display label of a 0..11 interval; the root is "R".
func IntervalLabel(interval int) string {
	return intervalLabels[((interval%12)+12)%12]
}

// Quality names a seventh-chord formula.
type Quality string

const (
	Maj7   Quality = "Maj7"
	Dom7   Quality = "Dom7"
	Min7   Quality = "Min7"
	Min7b5 Quality = "Min7b5"
	Dim7   Quality = "Dim7"
)

var formulas = map[Quality][]int{
	Maj7:   {0, 4, 7, 11},
	Dom7:   {0, 4, 7, 10},
	Min7:   {0, 3, 7, 10},
	Min7b5: {0, 3, 6, 10},
	Dim7:   {0, 3, 6, 9},
}

// Qualities lists every supported quality in display order.
func Qualities() []Quality {
	return []Quality{Maj7, Dom7, Min7, Min7b5, Dim7}
}

// ParseQuality matches a quality name case-insensitively.
func ParseQuality(s string) (Quality, error) {
	for _, q := range Qualities() {
		if strings.EqualFold(string(q), strings.TrimSpace(s)) {
			return q, nil
		}
	}
	return "", fmt.Errorf("%w: unknown quality %q", apperr.ErrInvalidKey, s)
}

// Contains reports whether interval is a chord tone of q.
func (q Quality) Contains(interval int) bool {
	return slices.Contains(formulas[q], interval)
}

// Formula returns a copy of the intervals of q.
func (q Quality) Formula() []int {
	return slices.Clone(formulas[q])
}
