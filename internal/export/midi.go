package export

import (
	"bytes"
	"fmt"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/starford/caged/internal/fretboard"
)

const (
	ticksPerQuarter = 480
	tempoBPM        = 90
	velocity        = 96
	rootVelocity    = 118
)

type midiRenderer struct{}

func (midiRenderer) ContentType() string { return "audio/midi" }
func (midiRenderer) Extension() string { return "mid" }

// Render writes the visible notes as an ascending eighth-note arpeggio,
// one note per distinct pitch, on a single track. Roots are accented.
func (midiRenderer) Render(snap fretboard.Snapshot, buf *bytes.Buffer) error {
	type tone struct {
		pitch int
		root  bool
	}
	var tones []tone
	seen := map[int]bool{}
	for _, n := range snap.Notes() {
		if seen[n.Pitch] {
			continue
		}
		seen[n.Pitch] = true
		tones = append(tones, tone{pitch: n.Pitch, root: n.IsRoot})
	}
	slices.SortFunc(tones, func(a, b tone) int { return a.pitch - b.pitch })

	clock := smf.MetricTicks(ticksPerQuarter)
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(fmt.Sprintf("CAGED %s %s %s", snap.Key, snap.Quality, snap.Shape)))
	tr.Add(0, smf.MetaTempo(tempoBPM))
	for _, t := range tones {
		if t.pitch < 0 || t.pitch > 127 {
			return fmt.Errorf("pitch %d outside MIDI range", t.pitch)
		}
		v := uint8(velocity)
		if t.root {
			v = rootVelocity
		}
		tr.Add(0, midi.NoteOn(0, uint8(t.pitch), v))
		tr.Add(clock.Ticks8th(), midi.NoteOff(0, uint8(t.pitch)))
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		return err
	}
	_, err := s.WriteTo(buf)
	return err
}
