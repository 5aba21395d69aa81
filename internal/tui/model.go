// Package tui is a terminal fretboard: mouse presses go to the session's
// click disambiguator and keys drive mode, shape and export.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/caged/internal/export"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/session"
)

// ChangedMsg tells the model the session changed outside Update, typically
// when a single click resolves after the double-click window.
type ChangedMsg struct{}

type exportedMsg struct {
	path string
	err  error
}

// Model renders one session.
type Model struct {
	sess    *session.Session
	changes <-chan struct{}
	outDir  string
	snap    fretboard.Snapshot
	status  string
	width   int
}

// New creates a model for s. changes, if non-nil, signals asynchronous
// session updates. Exports are written to outDir.
func New(s *session.Session, changes <-chan struct{}, outDir string) Model {
	return Model{
		sess:    s,
		changes: changes,
		outDir:  outDir,
		snap:    s.Snapshot(),
		status:  "click a note: single and double clicks act by mode",
	}
}

// Init starts listening for session changes.
func (m Model) Init() tea.Cmd {
	return m.waitForChange()
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return ChangedMsg{}
	}
}

// Update handles keys, mouse presses and session change notifications.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ChangedMsg:
		m.snap = m.sess.Snapshot()
		return m, m.waitForChange()

	case exportedMsg:
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "exported " + msg.path
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.MouseMsg:
		if msg.Action != tea.MouseActionPress {
			return m, nil
		}
		p, ok := hitTest(m.snap.Grid, msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		m.status = m.press(msg.Button, p)
		m.snap = m.sess.Snapshot()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// press routes a mouse button on p: left clicks the board, right sets the
// root there, middle jumps to the shape rooted there.
func (m Model) press(b tea.MouseButton, p fretboard.Position) string {
	switch b {
	case tea.MouseButtonLeft:
		if err := m.sess.Click(p); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("pressed string %d fret %d", p.Str+1, p.Fret)
	case tea.MouseButtonRight:
		if err := m.sess.SetRootAt(p); err != nil {
			return err.Error()
		}
		return fmt.Sprintf("root set at string %d fret %d", p.Str+1, p.Fret)
	case tea.MouseButtonMiddle:
		shape, err := m.sess.JumpToShape(p)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("jumped to shape %s", shape)
	}
	return m.status
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var err error
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "b":
		err = m.sess.SwitchTo(fretboard.Box)
	case "e":
		err = m.sess.SwitchTo(fretboard.Edit)
	case "n", " ":
		_, err = m.sess.AdvanceShape()
	case "r":
		err = m.sess.ResetEdits()
	case "x":
		return m, m.export(export.PDF)
	case "m":
		return m, m.export(export.MIDI)
	default:
		return m, nil
	}
	if err != nil {
		m.status = err.Error()
	}
	m.snap = m.sess.Snapshot()
	return m, nil
}

func (m Model) export(f export.Format) tea.Cmd {
	snap := m.sess.Snapshot()
	dir := m.outDir
	return func() tea.Msg {
		art, err := export.Export(context.Background(), snap, f)
		if err != nil {
			return exportedMsg{err: err}
		}
		path := filepath.Join(dir, art.SuggestedFilename)
		if err := os.WriteFile(path, art.Data, 0o644); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: path}
	}
}
