package clicks

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/caged/internal/fretboard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu  sync.Mutex
	got []Classified
}

func (r *recorder) emit(c Classified) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
}

func (r *recorder) events() []Classified {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Classified(nil), r.got...)
}

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*ManualClock, *recorder, *Disambiguator) {
	t.Helper()
	clk := NewManualClock(start)
	rec := &recorder{}
	d := New(clk, DefaultWindow, rec.emit)
	t.Cleanup(d.Close)
	return clk, rec, d
}

func TestSingleEmittedAfterWindow(t *testing.T) {
	clk, rec, d := setup(t)
	pos := fretboard.Position{Str: 2, Fret: 3}

	require.NoError(t, d.Click(Event{Position: pos}))
	clk.Advance(DefaultWindow - time.Millisecond)
	assert.Empty(t, rec.events())
	assert.Equal(t, 1, d.Pending())

	clk.Advance(time.Millisecond)
	got := rec.events()
	require.Len(t, got, 1)
	assert.Equal(t, Single, got[0].Kind)
	assert.Equal(t, pos, got[0].Position)
	assert.Equal(t, start, got[0].At)
	assert.Zero(t, d.Pending())
}

func TestDoubleCancelsSingle(t *testing.T) {
	clk, rec, d := setup(t)
	pos := fretboard.Position{Str: 4, Fret: 5}

	require.NoError(t, d.Click(Event{Position: pos}))
	clk.Advance(100 * time.Millisecond)
	require.NoError(t, d.Click(Event{Position: pos}))

	got := rec.events()
	require.Len(t, got, 1)
	assert.Equal(t, Double, got[0].Kind)

	clk.Advance(time.Second)
	assert.Len(t, rec.events(), 1, "no trailing single after a double")
	assert.Zero(t, clk.Waiting())
}

func TestSlowClicksAreTwoSingles(t *testing.T) {
	clk, rec, d := setup(t)
	pos := fretboard.Position{Str: 1, Fret: 0}

	require.NoError(t, d.Click(Event{Position: pos}))
	clk.Advance(DefaultWindow + time.Millisecond)
	require.NoError(t, d.Click(Event{Position: pos}))
	clk.Advance(DefaultWindow)

	got := rec.events()
	require.Len(t, got, 2)
	assert.Equal(t, Single, got[0].Kind)
	assert.Equal(t, Single, got[1].Kind)
}

func TestTripleClickIsDoubleThenSingle(t *testing.T) {
	clk, rec, d := setup(t)
	pos := fretboard.Position{Str: 3, Fret: 7}

	for range 3 {
		require.NoError(t, d.Click(Event{Position: pos}))
		clk.Advance(50 * time.Millisecond)
	}
	clk.Advance(DefaultWindow)

	got := rec.events()
	require.Len(t, got, 2)
	assert.Equal(t, Double, got[0].Kind)
	assert.Equal(t, Single, got[1].Kind)
}

func TestPositionsAreIndependent(t *testing.T) {
	clk, rec, d := setup(t)
	a := fretboard.Position{Str: 1, Fret: 1}
	b := fretboard.Position{Str: 1, Fret: 2}

	require.NoError(t, d.Click(Event{Position: a}))
	require.NoError(t, d.Click(Event{Position: b}))
	assert.Equal(t, 2, d.Pending())
	require.NoError(t, d.Click(Event{Position: a}))
	clk.Advance(DefaultWindow)

	got := rec.events()
	require.Len(t, got, 2)
	assert.Equal(t, Classified{Position: a, Kind: Double, At: start}, got[0])
	assert.Equal(t, Classified{Position: b, Kind: Single, At: start}, got[1])
}

func TestCloseCancelsPending(t *testing.T) {
	clk, rec, d := setup(t)
	pos := fretboard.Position{Str: 6, Fret: 12}

	require.NoError(t, d.Click(Event{Position: pos}))
	d.Close()
	d.Close()
	clk.Advance(time.Second)

	assert.Empty(t, rec.events())
	assert.ErrorIs(t, d.Click(Event{Position: pos}), ErrClosed)
}

func TestNonPositiveWindowUsesDefault(t *testing.T) {
	d := New(NewManualClock(start), 0, func(Classified) {})
	defer d.Close()
	assert.Equal(t, DefaultWindow, d.Window())
}

func TestSystemClockSingle(t *testing.T) {
	done := make(chan Classified, 1)
	d := New(SystemClock{}, 20*time.Millisecond, func(c Classified) { done <- c })
	defer d.Close()

	require.NoError(t, d.Click(Event{Position: fretboard.Position{Str: 1, Fret: 1}}))
	select {
	case c := <-done:
		assert.Equal(t, Single, c.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for single click")
	}
}
