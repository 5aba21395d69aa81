package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/theory"
)

// Store persists session state.
type Store interface {
	SaveSession(ctx context.Context, st State) error
	LoadSessions(ctx context.Context) ([]State, error)
	DeleteSession(ctx context.Context, id string) error
}

// EventType identifies a manager event.
type EventType string

const (
	EventCreated EventType = "session.created"
	EventUpdated EventType = "session.updated"
	EventDeleted EventType = "session.deleted"
)

// Event is published to listeners for every committed session change.
type Event struct {
	Type     EventType
	ID       string
	Reason   Reason
	Snapshot *fretboard.Snapshot
}

// Summary is a lightweight listing entry.
type Summary struct {
	ID      string          `json:"id"`
	Version uint64          `json:"version"`
	Key     string          `json:"key"`
	Quality theory.Quality  `json:"quality"`
	Tuning  string          `json:"tuning"`
	Shape   fretboard.Shape `json:"shape"`
	Mode    fretboard.Mode  `json:"mode"`
}

// Manager hosts sessions, persists their changes and fans events out.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// persistMu orders saves from change hooks against Delete. deleted
	// holds ids whose rows are gone; late hooks for them are dropped.
	persistMu sync.Mutex
	deleted   map[string]struct{}

	store     Store
	defaults  Defaults
	frets     int
	window    time.Duration
	clock     clicks.Clock
	newID     func() string
	listeners []func(Event)
	observers []func(id string, c clicks.Classified)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore persists sessions in st.
func WithStore(st Store) ManagerOption {
	return func(m *Manager) { m.store = st }
}

// WithDefaults sets the harmony of sessions created without parameters.
func WithDefaults(d Defaults) ManagerOption {
	return func(m *Manager) { m.defaults = d }
}

// WithFrets sets the highest fret of new boards.
func WithFrets(n int) ManagerOption {
	return func(m *Manager) { m.frets = n }
}

// WithDoubleClickWindow sets the click classification window.
func WithDoubleClickWindow(d time.Duration) ManagerOption {
	return func(m *Manager) { m.window = d }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clicks.Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithIDFunc replaces the UUID generator.
func WithIDFunc(fn func() string) ManagerOption {
	return func(m *Manager) { m.newID = fn }
}

// WithListener registers fn for every manager event.
func WithListener(fn func(Event)) ManagerOption {
	return func(m *Manager) { m.listeners = append(m.listeners, fn) }
}

// WithClickObserver registers fn for every classified click.
func WithClickObserver(fn func(id string, c clicks.Classified)) ManagerOption {
	return func(m *Manager) { m.observers = append(m.observers, fn) }
}

// NewManager creates an empty manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		deleted:  make(map[string]struct{}),
		defaults: DefaultDefaults,
		frets:    fretboard.DefaultFrets,
		window:   clicks.DefaultWindow,
		clock:    clicks.SystemClock{},
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) config(id string) Config {
	return Config{
		ID:     id,
		Frets:  m.frets,
		Window: m.window,
		Clock:  m.clock,
		Hooks: Hooks{
			OnChange: m.changed,
			OnClick:  m.clicked,
		},
	}
}

// Create starts a new session and persists it.
func (m *Manager) Create(ctx context.Context, p Params) (*Session, error) {
	s, err := New(m.config(m.newID()), p, m.defaults)
	if err != nil {
		return nil, err
	}
	if m.store != nil {
		if err := m.store.SaveSession(ctx, s.State()); err != nil {
			s.Close()
			return nil, fmt.Errorf("session: create: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	snap := s.Snapshot()
	m.publish(Event{Type: EventCreated, ID: s.ID(), Snapshot: &snap})
	slog.Info("session created", slog.String("session", s.ID()))
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// List returns a summary of every session ordered by id.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(all))
	for _, s := range all {
		st := s.State()
		out = append(out, Summary{
			ID:      st.ID,
			Version: st.Version,
			Key:     st.Key.String(),
			Quality: st.Quality,
			Tuning:  st.Tuning,
			Shape:   st.Shape,
			Mode:    st.Mode,
		})
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete closes and forgets a session.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	s.Close()

	m.persistMu.Lock()
	m.deleted[id] = struct{}{}
	var err error
	if m.store != nil {
		err = m.store.DeleteSession(ctx, id)
	}
	m.persistMu.Unlock()
	if err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	m.publish(Event{Type: EventDeleted, ID: id})
	slog.Info("session deleted", slog.String("session", id))
	return nil
}

// Restore loads persisted sessions. Rows that no longer validate are
// skipped and logged.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	states, err := m.store.LoadSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("session: restore: %w", err)
	}
	n := 0
	for _, st := range states {
		s, err := Restore(m.config(st.ID), st)
		if err != nil {
			slog.Warn("skip session", slog.String("session", st.ID), slog.String("error", err.Error()))
			continue
		}
		m.mu.Lock()
		if old, ok := m.sessions[s.ID()]; ok {
			old.Close()
		}
		m.sessions[s.ID()] = s
		m.mu.Unlock()
		n++
	}
	return n, nil
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

// changed persists and publishes a committed change. A change that lost the
// race with Delete is dropped so the row is not written back.
func (m *Manager) changed(ch Change) {
	m.persistMu.Lock()
	if _, gone := m.deleted[ch.State.ID]; gone {
		m.persistMu.Unlock()
		return
	}
	if m.store != nil {
		if err := m.store.SaveSession(context.Background(), ch.State); err != nil {
			slog.Error("persist session",
				slog.String("session", ch.State.ID),
				slog.String("error", err.Error()))
		}
	}
	m.persistMu.Unlock()

	snap := ch.Snapshot
	m.publish(Event{Type: EventUpdated, ID: snap.ID, Reason: ch.Reason, Snapshot: &snap})
}

func (m *Manager) clicked(id string, c clicks.Classified) {
	for _, fn := range m.observers {
		fn(id, c)
	}
}

func (m *Manager) publish(ev Event) {
	for _, fn := range m.listeners {
		fn(ev)
	}
}
