package fretboard

import (
	"fmt"
	"strings"

	"github.com/starford/caged/internal/apperr"
)

// Shape is one of the five CAGED box shapes.
type Shape string

const (
	ShapeC Shape = "C"
	ShapeA Shape = "A"
	ShapeG Shape = "G"
	ShapeE Shape = "E"
	ShapeD Shape = "D"
)

// DefaultShape is active when a session starts.
const DefaultShape = ShapeC

var cycle = [...]Shape{ShapeC, ShapeA, ShapeG, ShapeE, ShapeD}

// Shapes returns the rotation in cycle order.
func Shapes() []Shape { return cycle[:] }

// Next returns the successor of s in the rotation, wrapping D back to C.
func (s Shape) Next() Shape {
	for i, c := range cycle {
		if c == s {
			return cycle[(i+1)%len(cycle)]
		}
	}
	return DefaultShape
}

// ParseShape accepts a shape letter in either case.
func ParseShape(v string) (Shape, error) {
	u := Shape(strings.ToUpper(strings.TrimSpace(v)))
	for _, c := range cycle {
		if c == u {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidShape, v)
}

// shapeDef places a box relative to the root on its anchor string: the box
// spans offsetLow frets below the root fret to offsetHigh frets above it.
type shapeDef struct {
	anchorString int
	offsetLow    int
	offsetHigh   int
}

var definitions = map[Shape]shapeDef{
	ShapeC: {anchorString: 1, offsetLow: 3, offsetHigh: 2},
	ShapeA: {anchorString: 1, offsetLow: 0, offsetHigh: 4},
	ShapeG: {anchorString: 0, offsetLow: 3, offsetHigh: 2},
	ShapeE: {anchorString: 0, offsetLow: 0, offsetHigh: 4},
	ShapeD: {anchorString: 2, offsetLow: 0, offsetHigh: 4},
}

// stringShapes lists, per string, the shapes whose root can sit on that
// string, preferred shape first.
var stringShapes = [...][]Shape{
	0: {ShapeE, ShapeG},
	1: {ShapeA, ShapeC},
	2: {ShapeD, ShapeE},
	3: {ShapeG, ShapeA},
	4: {ShapeD},
	5: {ShapeE, ShapeG},
}

// ShapeForString returns the preferred shape rooted on string str of a
// six-string standard neck.
func ShapeForString(str int) (Shape, error) {
	if str < 0 || str >= len(stringShapes) {
		return "", fmt.Errorf("%w: no shape is rooted on string %d", apperr.ErrInvalidShape, str)
	}
	return stringShapes[str][0], nil
}
