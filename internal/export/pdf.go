package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/theory"
)

const (
	pageMargin    = 15.0
	stringSpacing = 12.0
	noteRadius    = 3.6
	boardTop      = 45.0
)

var inlays = map[int]int{3: 1, 5: 1, 7: 1, 9: 1, 12: 2, 15: 1, 17: 1, 19: 1, 21: 1, 24: 2}

type pdfRenderer struct{}

func (pdfRenderer) ContentType() string { return "application/pdf" }
func (pdfRenderer) Extension() string { return "pdf" }

// Render draws the board with the highest string on top, like tablature.
// Roots are filled red and labelled "R".
func (pdfRenderer) Render(snap fretboard.Snapshot, buf *bytes.Buffer) error {
	doc := fpdf.New("L", "mm", "A4", "")
	doc.SetCreationDate(snap.TakenAt)
	doc.SetModificationDate(snap.TakenAt)
	doc.SetCatalogSort(true)
	doc.SetTitle(fmt.Sprintf("CAGED %s %s shape %s", snap.Key, snap.Quality, snap.Shape), false)
	doc.SetCreator("caged", false)
	doc.AddPage()

	pageW, _ := doc.GetPageSize()
	g := snap.Grid
	fretW := (pageW - 2*pageMargin - 10) / float64(g.Frets+1)
	left := pageMargin + 10
	bottom := boardTop + float64(g.Strings-1)*stringSpacing

	doc.SetFont("Helvetica", "B", 16)
	doc.Text(pageMargin, 20, fmt.Sprintf("CAGED Session: %s %s", snap.Key, snap.Quality))
	doc.SetFont("Helvetica", "", 11)
	doc.Text(pageMargin, 28, fmt.Sprintf("Shape %s  |  Mode %s  |  Tuning %s (%s)", snap.Shape, snap.Mode, snap.Tuning.Name, snap.Tuning.Labels()))

	// y of string s; string 0 (lowest) at the bottom.
	y := func(s int) float64 { return bottom - float64(s)*stringSpacing }
	// x of the centre of fret cell f; cell 0 lies left of the nut.
	x := func(f int) float64 { return left + (float64(f)+0.5)*fretW }

	doc.SetDrawColor(60, 60, 60)
	doc.SetLineWidth(0.3)
	for s := range g.Strings {
		doc.Line(left+fretW, y(s), left+float64(g.Frets+1)*fretW, y(s))
		doc.SetFont("Helvetica", "", 8)
		name := theory.PitchClassOf(snap.Tuning.Open[s]).String()
		doc.Text(pageMargin, y(s)+1, name)
	}
	for f := 0; f <= g.Frets; f++ {
		lx := left + float64(f+1)*fretW
		if f == 0 {
			doc.SetLineWidth(1.2)
		} else {
			doc.SetLineWidth(0.3)
		}
		doc.Line(lx, y(g.Strings-1), lx, y(0))
	}

	doc.SetFillColor(200, 200, 200)
	doc.SetFont("Helvetica", "", 7)
	for f := 1; f <= g.Frets; f++ {
		cx := x(f)
		switch inlays[f] {
		case 1:
			doc.Circle(cx, bottom+6, 1.2, "F")
		case 2:
			doc.Circle(cx-2, bottom+6, 1.2, "F")
			doc.Circle(cx+2, bottom+6, 1.2, "F")
		}
		label := fmt.Sprint(f)
		doc.Text(cx-doc.GetStringWidth(label)/2, bottom+12, label)
	}

	doc.SetFont("Helvetica", "B", 7)
	for _, n := range snap.Notes() {
		cx, cy := x(n.Fret), y(n.Str)
		if n.IsRoot {
			doc.SetFillColor(192, 40, 40)
		} else {
			doc.SetFillColor(40, 90, 170)
		}
		doc.Circle(cx, cy, noteRadius, "F")
		doc.SetTextColor(255, 255, 255)
		label := n.Display()
		doc.Text(cx-doc.GetStringWidth(label)/2, cy+1.2, label)
	}
	doc.SetTextColor(0, 0, 0)

	doc.SetFont("Helvetica", "", 9)
	doc.Text(pageMargin, bottom+24, fmt.Sprintf("%d notes, %d roots. Formula: %s", len(snap.Notes()), len(snap.Roots()), formula(snap.Quality)))

	if err := doc.Output(buf); err != nil {
		return err
	}
	return doc.Error()
}

func formula(q theory.Quality) string {
	var out string
	for i, iv := range q.Formula() {
		if i > 0 {
			out += " "
		}
		out += theory.IntervalLabel(iv)
	}
	return out
}
