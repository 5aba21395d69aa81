package tui

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
)

func newModel(t *testing.T) (Model, *session.Session, *clicks.ManualClock, chan struct{}) {
	t.Helper()
	clk := clicks.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	changes := make(chan struct{}, 16)
	s, err := session.New(session.Config{
		ID:    "tui",
		Clock: clk,
		Hooks: session.Hooks{OnChange: func(session.Change) {
			select {
			case changes <- struct{}{}:
			default:
			}
		}},
	}, session.Params{}, session.DefaultDefaults)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return New(s, changes, t.TempDir()), s, clk, changes
}

func key(r string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(r)}
}

func press(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress}
}

// cellOf returns a terminal coordinate inside the cell of p.
func cellOf(g fretboard.Grid, p fretboard.Position) (int, int) {
	return labelWidth + p.Fret*cellWidth + 1, boardTop + g.Strings - 1 - p.Str
}

func TestHitTest(t *testing.T) {
	g := fretboard.Grid{Strings: 6, Frets: 24}
	for _, p := range []fretboard.Position{{Str: 0, Fret: 0}, {Str: 5, Fret: 24}, {Str: 2, Fret: 7}} {
		x, y := cellOf(g, p)
		got, ok := hitTest(g, x, y)
		if !ok || got != p {
			t.Errorf("hitTest(%d,%d) = %v,%v want %v", x, y, got, ok, p)
		}
	}
	if _, ok := hitTest(g, 0, boardTop); ok {
		t.Error("label column should not hit")
	}
	if _, ok := hitTest(g, labelWidth, boardTop+6); ok {
		t.Error("row below the board should not hit")
	}
	if _, ok := hitTest(g, labelWidth+25*cellWidth, boardTop); ok {
		t.Error("column past the last fret should not hit")
	}
}

func TestKeysDriveSession(t *testing.T) {
	m, s, _, _ := newModel(t)

	next, _ := m.Update(key("n"))
	m = next.(Model)
	if s.Shape() != fretboard.ShapeA {
		t.Errorf("shape = %s, want A", s.Shape())
	}

	next, _ = m.Update(key("e"))
	m = next.(Model)
	if s.Mode() != fretboard.Edit {
		t.Errorf("mode = %s, want edit", s.Mode())
	}
	if !strings.Contains(m.View(), "EDIT") {
		t.Error("view should show the edit badge")
	}

	next, _ = m.Update(key("b"))
	m = next.(Model)
	if s.Mode() != fretboard.Box {
		t.Errorf("mode = %s, want box", s.Mode())
	}

	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestMouseDoubleClickAdvancesShape(t *testing.T) {
	m, s, clk, _ := newModel(t)
	x, y := cellOf(s.Grid(), fretboard.Position{Str: 1, Fret: 3})

	next, _ := m.Update(press(x, y))
	m = next.(Model)
	if s.PendingClicks() != 1 {
		t.Fatalf("pending = %d, want 1", s.PendingClicks())
	}
	clk.Advance(50 * time.Millisecond)
	next, _ = m.Update(press(x, y))
	m = next.(Model)

	if s.Shape() != fretboard.ShapeA {
		t.Errorf("shape = %s, want A", s.Shape())
	}
	if !strings.Contains(m.View(), "shape A") {
		t.Error("view should reflect the new shape")
	}
}

func TestRightAndMiddleClick(t *testing.T) {
	m, s, _, _ := newModel(t)

	x, y := cellOf(s.Grid(), fretboard.Position{Str: 2, Fret: 7})
	next, _ := m.Update(tea.MouseMsg{X: x, Y: y, Button: tea.MouseButtonRight, Action: tea.MouseActionPress})
	m = next.(Model)
	if got := s.Snapshot().Key.String(); got != "A" {
		t.Errorf("key after right click = %s, want A", got)
	}
	if s.PendingClicks() != 0 {
		t.Error("right click should not reach the disambiguator")
	}

	x, y = cellOf(s.Grid(), fretboard.Position{Str: 3, Fret: 5})
	next, _ = m.Update(tea.MouseMsg{X: x, Y: y, Button: tea.MouseButtonMiddle, Action: tea.MouseActionPress})
	m = next.(Model)
	if s.Shape() != fretboard.ShapeG || s.Snapshot().Key.String() != "C" {
		t.Errorf("after middle click shape=%s key=%s, want G and C", s.Shape(), s.Snapshot().Key)
	}
	if !strings.Contains(m.View(), "jumped to shape G") {
		t.Error("status should report the jump")
	}
}

func TestAsyncSingleClickRefreshesView(t *testing.T) {
	m, s, clk, changes := newModel(t)
	next, _ := m.Update(key("e"))
	m = next.(Model)
	<-changes

	p := fretboard.Position{Str: 0, Fret: 21}
	x, y := cellOf(s.Grid(), p)
	next, _ = m.Update(press(x, y))
	m = next.(Model)
	clk.Advance(clicks.DefaultWindow)

	cmd := m.waitForChange()
	if _, ok := cmd().(ChangedMsg); !ok {
		t.Fatal("expected a change notification")
	}
	next, _ = m.Update(ChangedMsg{})
	m = next.(Model)
	n, err := m.snap.At(p)
	if err != nil {
		t.Fatal(err)
	}
	if !n.Visible {
		t.Error("single click in edit mode should add the note")
	}
}

func TestViewShowsRoots(t *testing.T) {
	m, _, _, _ := newModel(t)
	out := m.View()
	if !strings.Contains(out, "R") || !strings.Contains(out, "CAGED") {
		t.Errorf("view missing roots or title:\n%s", out)
	}
	if lines := strings.Count(out, "\n"); lines < boardTop+6 {
		t.Errorf("view has %d lines", lines)
	}
}

func TestExportWritesFile(t *testing.T) {
	m, _, _, _ := newModel(t)
	_, cmd := m.Update(key("x"))
	if cmd == nil {
		t.Fatal("x should return an export command")
	}
	msg := cmd()
	next, _ := m.Update(msg)
	m = next.(Model)
	if !strings.HasPrefix(m.status, "exported ") {
		t.Fatalf("status = %q", m.status)
	}
	path := strings.TrimPrefix(m.status, "exported ")
	if filepath.Base(path) != "CAGED_Session_C_Maj7_C.pdf" {
		t.Errorf("file = %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}
