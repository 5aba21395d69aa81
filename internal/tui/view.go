package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/caged/internal/fretboard"
)

// Screen geometry. The board starts at boardTop; each fret takes cellWidth
// columns after a labelWidth-wide string label. The highest string is drawn
// first, as in tablature.
const (
	boardTop   = 3
	labelWidth = 3
	cellWidth  = 4
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	rootStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD7FF"))
	wireStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#585858"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	editBadge   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFD75F")).Padding(0, 1)
	boxBadge    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#87D787")).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#A8A8A8"))
)

// hitTest maps a terminal cell to a board position.
func hitTest(g fretboard.Grid, x, y int) (fretboard.Position, bool) {
	row := y - boardTop
	if row < 0 || row >= g.Strings || x < labelWidth {
		return fretboard.Position{}, false
	}
	fret := (x - labelWidth) / cellWidth
	if fret > g.Frets {
		return fretboard.Position{}, false
	}
	return fretboard.Position{Str: g.Strings - 1 - row, Fret: fret}, true
}

// View draws the header, fret numbers, strings and the key help.
func (m Model) View() string {
	s := m.snap
	var b strings.Builder

	badge := boxBadge.Render("BOX")
	if s.Mode == fretboard.Edit {
		badge = editBadge.Render("EDIT")
	}
	fmt.Fprintf(&b, "%s %s  %s %s  shape %s  %s\n",
		titleStyle.Render("CAGED"), badge, s.Key, s.Quality, s.Shape, dimStyle.Render(s.Tuning.Name))
	b.WriteString("\n")

	b.WriteString(strings.Repeat(" ", labelWidth))
	for f := 0; f <= s.Grid.Frets; f++ {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%-*d", cellWidth, f)))
	}
	b.WriteString("\n")

	for row := 0; row < s.Grid.Strings; row++ {
		str := s.Grid.Strings - 1 - row
		b.WriteString(fmt.Sprintf("%-*s", labelWidth, stringLabel(s, str)))
		for f := 0; f <= s.Grid.Frets; f++ {
			b.WriteString(cell(s, fretboard.Position{Str: str, Fret: f}))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("b box  e edit  n next shape  r reset edits  x export pdf  m export midi  q quit  right-click root  middle-click jump"))
	b.WriteString("\n")
	return b.String()
}

func stringLabel(s fretboard.Snapshot, str int) string {
	n, err := s.At(fretboard.Position{Str: str, Fret: 0})
	if err != nil {
		return "?"
	}
	return n.Name
}

// cell renders one fret position, cellWidth columns wide. Roots show "R".
func cell(s fretboard.Snapshot, p fretboard.Position) string {
	n, err := s.At(p)
	if err != nil || !n.Visible {
		return wireStyle.Render(strings.Repeat("-", cellWidth-1) + "|")
	}
	text, style := n.Name, noteStyle
	if n.IsRoot {
		text, style = n.Display(), rootStyle
	}
	pad := max(cellWidth-1-len(text), 0)
	left := pad / 2
	return wireStyle.Render(strings.Repeat("-", left)) +
		style.Render(text) +
		wireStyle.Render(strings.Repeat("-", pad-left)+"|")
}
