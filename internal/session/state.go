package session

import (
	"fmt"
	"time"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/fretboard"
	"github.com/starford/caged/internal/theory"
)

// State is the persistable form of a session.
type State struct {
	ID        string
	Version   uint64
	Key       theory.PitchClass
	Quality   theory.Quality
	Tuning    string
	Shape     fretboard.Shape
	Mode      fretboard.Mode
	Anchor    *fretboard.Position
	HasEdits  bool
	Edits     []fretboard.NoteEdit
	UpdatedAt time.Time
}

// Params selects the harmony of a session. Empty fields take defaults.
type Params struct {
	Key     string `json:"key"`
	Quality string `json:"quality"`
	Tuning  string `json:"tuning"`
}

// Defaults are applied to empty Params fields.
type Defaults struct {
	Key     theory.PitchClass
	Quality theory.Quality
	Tuning  string
}

// DefaultDefaults is C Maj7 in standard tuning.
var DefaultDefaults = Defaults{Key: 0, Quality: theory.Maj7, Tuning: theory.StandardTuning}

type harmony struct {
	key     theory.PitchClass
	quality theory.Quality
	tuning  theory.Tuning
}

func (p Params) resolve(d Defaults) (harmony, error) {
	h := harmony{key: d.Key, quality: d.Quality}
	var err error
	if p.Key != "" {
		if h.key, err = theory.ParsePitchClass(p.Key); err != nil {
			return harmony{}, err
		}
	}
	if p.Quality != "" {
		if h.quality, err = theory.ParseQuality(p.Quality); err != nil {
			return harmony{}, err
		}
	}
	name := d.Tuning
	if p.Tuning != "" {
		name = p.Tuning
	}
	if h.tuning, err = theory.LookupTuning(name); err != nil {
		return harmony{}, err
	}
	return h, nil
}

func (st State) harmony() (harmony, error) {
	t, err := theory.LookupTuning(st.Tuning)
	if err != nil {
		return harmony{}, err
	}
	if !st.Key.Valid() {
		return harmony{}, fmt.Errorf("%w: key %d out of range", apperr.ErrInvalidKey, st.Key)
	}
	if _, err := theory.ParseQuality(string(st.Quality)); err != nil {
		return harmony{}, err
	}
	return harmony{key: st.Key, quality: st.Quality, tuning: t}, nil
}
