package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/fretboard"
)

// memStore keeps the latest state per session and applies the same
// version guard as the SQLite store.
type memStore struct {
	mu     sync.Mutex
	states map[string]State
	saves  int
	fail   error
}

func newMemStore() *memStore { return &memStore{states: make(map[string]State)} }

func (m *memStore) SaveSession(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	if cur, ok := m.states[st.ID]; ok && cur.Version > st.Version {
		return nil
	}
	m.states[st.ID] = st
	return nil
}

func (m *memStore) LoadSessions(_ context.Context) ([]State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

func (m *memStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *memStore) get(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	return st, ok
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("s%02d", n)
	}
}

func TestManagerLifecycle(t *testing.T) {
	st := newMemStore()
	events := &eventLog{}
	clk := clicks.NewManualClock(epoch)
	var observed []clicks.Kind
	m := NewManager(
		WithStore(st),
		WithClock(clk),
		WithIDFunc(sequentialIDs()),
		WithListener(events.add),
		WithClickObserver(func(_ string, c clicks.Classified) { observed = append(observed, c.Kind) }),
	)
	t.Cleanup(m.Close)
	ctx := context.Background()

	s, err := m.Create(ctx, Params{Key: "A", Quality: "Min7"})
	require.NoError(t, err)
	assert.Equal(t, "s01", s.ID())
	_, ok := st.get("s01")
	assert.True(t, ok, "created session should be persisted")

	got, err := m.Get("s01")
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, s.Click(fretboard.Position{Str: 0, Fret: 5}))
	require.NoError(t, s.Click(fretboard.Position{Str: 0, Fret: 5}))
	assert.Equal(t, []clicks.Kind{clicks.Double}, observed)

	saved, _ := st.get("s01")
	assert.Equal(t, fretboard.ShapeA, saved.Shape)
	assert.Equal(t, s.State().Version, saved.Version)

	require.NoError(t, m.Delete(ctx, "s01"))
	_, ok = st.get("s01")
	assert.False(t, ok)
	assert.Equal(t, []EventType{EventCreated, EventUpdated, EventDeleted}, events.types())

	_, err = m.Get("s01")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.ErrorIs(t, m.Delete(ctx, "s01"), apperr.ErrNotFound)
}

// A change committed before Delete but persisted after it must not bring the
// row back.
func TestManagerLateChangeAfterDeleteIsDropped(t *testing.T) {
	st := newMemStore()
	events := &eventLog{}
	m := NewManager(WithStore(st), WithIDFunc(sequentialIDs()), WithListener(events.add))
	t.Cleanup(m.Close)
	ctx := context.Background()

	s, err := m.Create(ctx, Params{})
	require.NoError(t, err)
	late := Change{Reason: ReasonShape, Snapshot: s.Snapshot(), State: s.State()}
	late.State.Version++

	require.NoError(t, m.Delete(ctx, "s01"))
	m.changed(late)

	_, ok := st.get("s01")
	assert.False(t, ok, "late save resurrected a deleted session")
	assert.Equal(t, []EventType{EventCreated, EventDeleted}, events.types())
}

func TestManagerListIsSorted(t *testing.T) {
	m := NewManager(WithIDFunc(sequentialIDs()))
	t.Cleanup(m.Close)
	for range 3 {
		_, err := m.Create(context.Background(), Params{})
		require.NoError(t, err)
	}
	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "s01", list[0].ID)
	assert.Equal(t, "s03", list[2].ID)
	assert.Equal(t, "C", list[0].Key)
	assert.Equal(t, 3, m.Len())
}

func TestManagerRestore(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	first := NewManager(WithStore(st), WithIDFunc(sequentialIDs()))
	s, err := first.Create(ctx, Params{Key: "D"})
	require.NoError(t, err)
	require.NoError(t, s.SwitchTo(fretboard.Edit))
	_, err = s.AdvanceShape()
	require.NoError(t, err)
	want := s.Snapshot()
	first.Close()

	st.states["broken"] = State{ID: "broken", Tuning: "Banjo", Shape: "C", Mode: "box"}

	second := NewManager(WithStore(st))
	t.Cleanup(second.Close)
	n, err := second.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "invalid rows are skipped")

	got, err := second.Get("s01")
	require.NoError(t, err)
	snap := got.Snapshot()
	assert.Equal(t, want.Shape, snap.Shape)
	assert.Equal(t, want.Mode, snap.Mode)
	assert.Equal(t, want.Version, snap.Version)
	assert.Equal(t, want.Notes(), snap.Notes())
}

func TestManagerCreateFailsWhenStoreFails(t *testing.T) {
	st := newMemStore()
	st.fail = errors.New("disk full")
	m := NewManager(WithStore(st))
	t.Cleanup(m.Close)

	_, err := m.Create(context.Background(), Params{})
	require.Error(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestManagerCreateRejectsBadParams(t *testing.T) {
	m := NewManager()
	t.Cleanup(m.Close)
	_, err := m.Create(context.Background(), Params{Quality: "sus4"})
	assert.ErrorIs(t, err, apperr.ErrInvalidKey)
}
