package tab

import (
	"errors"
	"testing"

	"github.com/starford/caged/internal/fretboard"
)

const cmaj7 = `---
title: Cmaj7 grip
key: C
quality: Maj7
shape: C
---
Intro voicing

e|-----0-----|
B|-----0-----|
G|-----0-----|
D|-----2-----|
A|--3--------|
E|-----------|
`

func TestParse_FrontmatterAndPositions(t *testing.T) {
	r, err := Parse([]byte(cmaj7), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Cmaj7 grip" || r.Frontmatter.Key != "C" || r.Frontmatter.Shape != "C" {
		t.Errorf("frontmatter = %+v", r.Frontmatter)
	}
	want := []fretboard.Position{
		{Str: 5, Fret: 0},
		{Str: 4, Fret: 0},
		{Str: 3, Fret: 0},
		{Str: 2, Fret: 2},
		{Str: 1, Fret: 3},
	}
	if len(r.Positions) != len(want) {
		t.Fatalf("positions = %v, want %v", r.Positions, want)
	}
	for i := range want {
		if r.Positions[i] != want[i] {
			t.Errorf("position %d = %v, want %v", i, r.Positions[i], want[i])
		}
	}
}

func TestParse_MultipleBlocksDedupe(t *testing.T) {
	input := "e|--12--|\nB|------|\nG|------|\nD|------|\nA|------|\nE|-3----|\n\n" +
		"e|--12h14--|\nB|---------|\nG|---------|\nD|---------|\nA|---------|\nE|---------|\n"
	r, err := Parse([]byte(input), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []fretboard.Position{{Str: 5, Fret: 12}, {Str: 0, Fret: 3}, {Str: 5, Fret: 14}}
	if len(r.Positions) != 3 {
		t.Fatalf("positions = %v, want %v", r.Positions, want)
	}
	for i := range want {
		if r.Positions[i] != want[i] {
			t.Errorf("position %d = %v, want %v", i, r.Positions[i], want[i])
		}
	}
	if r.Title != "" {
		t.Errorf("title = %q, want empty", r.Title)
	}
}

func TestParse_NoTab(t *testing.T) {
	_, err := Parse([]byte("just some words\n"), 6)
	if !errors.Is(err, ErrNoTab) {
		t.Errorf("err = %v, want ErrNoTab", err)
	}
}

func TestParse_WrongStringCount(t *testing.T) {
	_, err := Parse([]byte("e|--1--|\nB|--1--|\n"), 6)
	if !errors.Is(err, ErrInvalidTab) {
		t.Errorf("err = %v, want ErrInvalidTab for a 2-line block on a 6-string board", err)
	}
}

func TestParse_FretOverflow(t *testing.T) {
	input := "e|--99999999999999999999--|\nB|-----|\nG|-----|\nD|-----|\nA|-----|\nE|-----|\n"
	_, err := Parse([]byte(input), 6)
	if !errors.Is(err, ErrInvalidTab) {
		t.Errorf("err = %v, want ErrInvalidTab", err)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\n" + "|--1--|\n|-----|\n|-----|\n|-----|\n|-----|\n|-----|\n"
	r, err := Parse([]byte(input), 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != (Frontmatter{}) {
		t.Errorf("expected empty frontmatter on invalid YAML, got %+v", r.Frontmatter)
	}
	if len(r.Positions) != 1 || r.Positions[0] != (fretboard.Position{Str: 5, Fret: 1}) {
		t.Errorf("positions = %v", r.Positions)
	}
}
