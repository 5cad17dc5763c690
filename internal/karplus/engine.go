// Package karplus implements a Karplus-Strong plucked string: a delay line of
// one period is excited with a white-noise burst and fed back through a
// moving-average low-pass filter.
//
// Velocity and pitch bend are not supported.
package karplus

import (
	"math"
	"math/rand/v2"
	"sync/atomic"

	"github.com/cbegin/midisynth-go/internal/note"
	"github.com/cbegin/midisynth-go/internal/voice"
)

type Params struct {
	// ImpulseLength is the noise burst length as a fraction of the delay line.
	ImpulseLength float64
	// FilterLength is the moving-average tap count.
	FilterLength int
	// Seed makes the excitation noise reproducible.
	Seed uint64
}

func DefaultParams() Params {
	return Params{
		ImpulseLength: 0.3,
		FilterLength:  5,
		Seed:          1,
	}
}

// str is one plucked string. Only stopped is shared with the control side.
type str struct {
	note    int
	y       []float32
	n       int
	impulse float64
	taps    int
	stopped atomic.Bool
}

type Engine struct {
	sampleRate    float64
	impulseLength atomic.Uint64 // float64 bits
	filterLength  atomic.Int32
	rng           *rand.Rand // render side only
	voices        *voice.Table[*str]
}

func New(sampleRate int, params Params) *Engine {
	e := &Engine{
		sampleRate: float64(sampleRate),
		rng:        rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
		voices:     voice.NewTable[*str](),
	}
	e.setImpulseLength(params.ImpulseLength)
	e.setFilterLength(params.FilterLength)
	return e
}

// DelayLength returns D = round(sampleRate / f(note)).
func (e *Engine) DelayLength(key int) (int, error) {
	f, err := note.FrequencyForNote(key, 0)
	if err != nil {
		return 0, err
	}
	d := int(math.Round(e.sampleRate / f))
	if d < 1 {
		d = 1
	}
	return d, nil
}

// NoteOn plucks a new string for key using the current impulse and filter
// lengths. A velocity of zero is a note-off.
func (e *Engine) NoteOn(key int, velocity int) error {
	if velocity <= 0 {
		e.NoteOff(key)
		return nil
	}
	d, err := e.DelayLength(key)
	if err != nil {
		return err
	}
	s := &str{
		note:    key,
		y:       make([]float32, d),
		impulse: e.ImpulseLength() * float64(d),
		taps:    int(e.filterLength.Load()),
	}
	e.voices.Insert(key, s)
	return nil
}

// NoteOff stops the string at once; there is no release.
func (e *Engine) NoteOff(key int) {
	s, ok := e.voices.Remove(key)
	if !ok {
		return
	}
	s.stopped.Store(true)
	e.voices.Retire(s)
}

func (e *Engine) AllNotesOff() {
	for _, key := range e.voices.Notes() {
		e.NoteOff(key)
	}
}

// KnobTurn: 0 sets the impulse length (value/127), 1 the filter length
// (value+2). Existing strings keep their settings.
func (e *Engine) KnobTurn(knob int, value int) {
	if value < 0 {
		value = 0
	}
	switch knob {
	case 0:
		e.setImpulseLength(float64(value) / 127)
	case 1:
		e.setFilterLength(value + 2)
	}
}

// Render adds the mono output of every running string to dst.
func (e *Engine) Render(dst []float32) {
	for _, s := range e.voices.Running() {
		if s.stopped.Load() {
			continue
		}
		s.render(dst, e.rng)
	}
}

func (s *str) render(dst []float32, rng *rand.Rand) {
	y := s.y
	d := len(y)
	scale := 1 / float32(s.taps)
	n := s.n
	for i := range dst {
		var sum float32
		for j := 0; j < s.taps; j++ {
			k := n + j
			if k >= d {
				k %= d
			}
			sum += y[k]
		}
		v := sum * scale
		if s.impulse >= 0 {
			v += float32(rng.Float64() - 0.5)
			s.impulse--
		}
		y[n] = v
		dst[i] += v
		n++
		if n >= d {
			n = 0
		}
	}
	s.n = n
}

func (e *Engine) setImpulseLength(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.impulseLength.Store(math.Float64bits(v))
}

func (e *Engine) setFilterLength(n int) {
	if n < 1 {
		n = 1
	}
	e.filterLength.Store(int32(n))
}

func (e *Engine) ImpulseLength() float64 {
	return math.Float64frombits(e.impulseLength.Load())
}

func (e *Engine) FilterLength() int { return int(e.filterLength.Load()) }

// ActiveVoiceCount returns the number of notes registered in the voice table.
func (e *Engine) ActiveVoiceCount() int { return e.voices.Len() }

// SoundingVoiceCount includes orphaned strings still being rendered.
func (e *Engine) SoundingVoiceCount() int {
	n := 0
	for _, s := range e.voices.Running() {
		if !s.stopped.Load() {
			n++
		}
	}
	return n
}

// OrphanCount reports strings displaced by re-triggering a sounding note.
func (e *Engine) OrphanCount() int { return len(e.voices.Orphans()) }
