// Package clicks classifies presses on fret positions as single or double
// clicks with one cancellable timer per position.
package clicks

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/caged/internal/fretboard"
)

// DefaultWindow matches the double-click threshold of common desktop toolkits.
const DefaultWindow = 400 * time.Millisecond

// ErrClosed is returned by Click after Close.
var ErrClosed = errors.New("clicks: disambiguator closed")

// Kind is the classification of a click.
type Kind int

const (
	Single Kind = iota + 1
	Double
)

func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case Double:
		return "double"
	}
	return "unknown"
}

// Event is one press on a position. A zero At is stamped with the clock.
type Event struct {
	Position fretboard.Position
	At       time.Time
}

// Classified is emitted exactly once per single click or click pair.
type Classified struct {
	Position fretboard.Position
	Kind     Kind
	At       time.Time
}

// EmitFunc receives classifications. It is called without the
// disambiguator's lock held, from Click (Double) or a timer goroutine (Single).
type EmitFunc func(Classified)

// Disambiguator turns a stream of presses into classified clicks. Positions
// are independent: each has at most one pending timer.
type Disambiguator struct {
	mu      sync.Mutex
	clock   Clock
	window  time.Duration
	emit    EmitFunc
	pending map[fretboard.Position]*pending
	closed  bool
}

type pending struct {
	timer Timer
	at    time.Time
}

// New returns a disambiguator. A non-positive window selects DefaultWindow.
func New(clock Clock, window time.Duration, emit EmitFunc) *Disambiguator {
	if clock == nil {
		clock = SystemClock{}
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Disambiguator{
		clock:   clock,
		window:  window,
		emit:    emit,
		pending: make(map[fretboard.Position]*pending),
	}
}

// Window returns the double-click threshold.
func (d *Disambiguator) Window() time.Duration { return d.window }

// Click registers a press. A second press on a position with a pending timer
// cancels the timer and is emitted as Double before Click returns.
func (d *Disambiguator) Click(ev Event) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if ev.At.IsZero() {
		ev.At = d.clock.Now()
	}

	if p, ok := d.pending[ev.Position]; ok {
		delete(d.pending, ev.Position)
		p.timer.Stop()
		d.mu.Unlock()
		slog.Debug("clicks: double", slog.String("position", ev.Position.String()))
		d.emit(Classified{Position: ev.Position, Kind: Double, At: ev.At})
		return nil
	}

	p := &pending{at: ev.At}
	d.pending[ev.Position] = p
	pos := ev.Position
	p.timer = d.clock.AfterFunc(d.window, func() { d.fire(pos, p) })
	d.mu.Unlock()
	return nil
}

// fire emits Single unless the pending entry was consumed by a second click
// or by Close in the meantime.
func (d *Disambiguator) fire(pos fretboard.Position, p *pending) {
	d.mu.Lock()
	if d.closed || d.pending[pos] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, pos)
	d.mu.Unlock()
	slog.Debug("clicks: single", slog.String("position", pos.String()))
	d.emit(Classified{Position: pos, Kind: Single, At: p.at})
}

// Pending returns the number of positions awaiting classification.
func (d *Disambiguator) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels every pending timer without emitting. It is idempotent.
func (d *Disambiguator) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for pos, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, pos)
	}
}
