package theory

import (
	"errors"
	"testing"

	"github.com/starford/caged/internal/apperr"
)

func TestParsePitchClass(t *testing.T) {
	cases := map[string]PitchClass{
		"C": 0, "c#": 1, "Db": 1, "Cs": 1, "F#": 6, "Bb": 10, " b ": 11,
	}
	for in, want := range cases {
		got, err := ParsePitchClass(in)
		if err != nil {
			t.Fatalf("ParsePitchClass(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParsePitchClass(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParsePitchClass("H"); !errors.Is(err, apperr.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestPitchName(t *testing.T) {
	if got := PitchName(40); got != "E2" {
		t.Errorf("PitchName(40) = %q", got)
	}
	if got := PitchName(60); got != "C4" {
		t.Errorf("PitchName(60) = %q", got)
	}
}

func TestIntervalAndLabel(t *testing.T) {
	if Interval(0, 0) != 0 || IntervalLabel(0) != "R" {
		t.Error("unison should be labelled R")
	}
	if Interval(9, 0) != 3 {
		t.Errorf("A to C = %d, want 3", Interval(9, 0))
	}
	if IntervalLabel(11) != "7" || IntervalLabel(10) != "b7" {
		t.Error("seventh labels wrong")
	}
}

func TestQualityFormula(t *testing.T) {
	if !Maj7.Contains(11) || Maj7.Contains(10) {
		t.Error("Maj7 formula wrong")
	}
	q, err := ParseQuality("min7b5")
	if err != nil || q != Min7b5 {
		t.Fatalf("ParseQuality = %v, %v", q, err)
	}
	f := Dom7.Formula()
	f[0] = 99
	if !Dom7.Contains(0) {
		t.Error("Formula must return a copy")
	}
}

func TestLookupTuning(t *testing.T) {
	std, err := LookupTuning("standard")
	if err != nil {
		t.Fatal(err)
	}
	if !std.IsStandard() || std.Labels() != "E A D G B E" {
		t.Errorf("standard tuning = %+v", std)
	}
	if std.PitchClass(1, 3) != 0 {
		t.Error("A string fret 3 should be C")
	}
	dadgad, _ := LookupTuning("DADGAD")
	if dadgad.IsStandard() {
		t.Error("DADGAD is not standard")
	}
	if _, err := LookupTuning("Nashville"); err == nil {
		t.Error("expected error for unknown tuning")
	}
}
