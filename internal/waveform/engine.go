package waveform

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/midisynth-go/internal/note"
	"github.com/cbegin/midisynth-go/internal/voice"
)

const twoPi = math.Pi * 2

const (
	attackFloor  = 0.01
	releaseFloor = 1e-15
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
	Sawtooth
)

// Waveforms is the order knob 0 selects from.
var Waveforms = [...]Waveform{Sine, Triangle, Square, Sawtooth}

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	default:
		return "unknown"
	}
}

// Params holds the knob values; Attack and Decay are raw 0..127.
type Params struct {
	Waveform Waveform
	Attack   int
	Decay    int
}

func DefaultParams() Params {
	return Params{
		Waveform: Sine,
		Attack:   10,
		Decay:    127,
	}
}

// AttackTime converts the attack knob to seconds.
func AttackTime(attack int) float64 {
	return 0.2*(float64(attack)+1)/128 + 0.01
}

// DecayTime converts the decay knob to seconds.
func DecayTime(decay int) float64 {
	return 2*(float64(decay)+1)/128 + 0.01
}

// osc is one sounding note. Fields above the blank line are written by the
// control side through atomics; the rest belong to the render side.
type osc struct {
	note    int
	shape   Waveform
	inc     atomic.Uint64 // cycles per sample, float64 bits
	release atomic.Int64  // release length in samples, -1 until note-off
	done    atomic.Bool

	phase     float64
	env       float64
	envStep   float64
	envSteps  int
	envTarget float64
	releasing bool
}

func (o *osc) setFrequency(freq, sampleRate float64) {
	o.inc.Store(math.Float64bits(freq / sampleRate))
}

func (o *osc) frequency(sampleRate float64) float64 {
	return math.Float64frombits(o.inc.Load()) * sampleRate
}

// Engine is the subtractive oscillator instrument. Knob and bend changes are
// atomic stores; Render may run concurrently on the audio goroutine.
type Engine struct {
	sampleRate float64
	waveform   atomic.Int32
	attack     atomic.Int32
	decay      atomic.Int32
	pitchBend  atomic.Int32
	voices     *voice.Table[*osc]
}

func New(sampleRate int, params Params) *Engine {
	e := &Engine{
		sampleRate: float64(sampleRate),
		voices:     voice.NewTable[*osc](),
	}
	e.waveform.Store(int32(params.Waveform))
	e.attack.Store(int32(clampInt(params.Attack, 0, 127)))
	e.decay.Store(int32(clampInt(params.Decay, 0, 127)))
	return e
}

// NoteOn starts a voice at the current pitch bend. A velocity of zero is a
// note-off.
func (e *Engine) NoteOn(key int, velocity int) error {
	if velocity <= 0 {
		e.NoteOff(key)
		return nil
	}
	e.voices.Reap(finished)
	freq, err := note.FrequencyForNote(key, int(e.pitchBend.Load()))
	if err != nil {
		return err
	}
	gain := note.GainForVelocity(velocity)
	steps := e.samplesFor(AttackTime(int(e.attack.Load())))
	o := &osc{
		note:      key,
		shape:     Waveform(e.waveform.Load()),
		env:       attackFloor,
		envSteps:  steps,
		envStep:   math.Pow(gain/attackFloor, 1/float64(steps)),
		envTarget: gain,
	}
	o.release.Store(-1)
	o.setFrequency(freq, e.sampleRate)
	e.voices.Insert(key, o)
	return nil
}

// NoteOff removes the note and lets its generator decay to silence. Unknown
// notes are ignored.
func (e *Engine) NoteOff(key int) {
	o, ok := e.voices.Remove(key)
	if !ok {
		return
	}
	o.release.Store(int64(e.samplesFor(DecayTime(int(e.decay.Load())))))
	e.voices.Reap(finished)
}

// AllNotesOff releases every registered note.
func (e *Engine) AllNotesOff() {
	for _, key := range e.voices.Notes() {
		e.NoteOff(key)
	}
}

// PitchBend retunes every registered voice in one step.
func (e *Engine) PitchBend(value int) {
	value = clampInt(value, note.MinBend, note.MaxBend)
	e.pitchBend.Store(int32(value))
	e.voices.Each(func(key int, o *osc) {
		if f, err := note.FrequencyForNote(key, value); err == nil {
			o.setFrequency(f, e.sampleRate)
		}
	})
}

// KnobTurn: 0 selects the waveform, 1 the attack, 2 the decay. Sounding
// notes keep their settings.
func (e *Engine) KnobTurn(knob int, value int) {
	switch knob {
	case 0:
		n := len(Waveforms)
		e.waveform.Store(int32(Waveforms[((value%n)+n)%n]))
	case 1:
		e.attack.Store(int32(clampInt(value, 0, 127)))
	case 2:
		e.decay.Store(int32(clampInt(value, 0, 127)))
	}
}

// Render adds the mono output of every running voice to dst.
func (e *Engine) Render(dst []float32) {
	for _, o := range e.voices.Running() {
		if o.done.Load() {
			continue
		}
		o.render(dst)
	}
}

func (o *osc) render(dst []float32) {
	if !o.releasing {
		if n := o.release.Load(); n >= 0 {
			o.releasing = true
			o.envSteps = int(n)
			o.envTarget = 0
			o.envStep = math.Pow(releaseFloor/o.env, 1/float64(n))
		}
	}
	dt := math.Float64frombits(o.inc.Load())
	for i := range dst {
		if o.envSteps > 0 {
			o.env *= o.envStep
			o.envSteps--
			if o.envSteps == 0 {
				o.env = o.envTarget
				if o.releasing {
					o.done.Store(true)
					return
				}
			}
		}
		dst[i] += float32(sample(o.shape, o.phase, dt) * o.env)
		o.phase += dt
		if o.phase >= 1 {
			o.phase -= math.Floor(o.phase)
		}
	}
}

func sample(w Waveform, phase, dt float64) float64 {
	switch w {
	case Triangle:
		return 2*math.Abs(2*phase-1) - 1
	case Square:
		out := -1.0
		if phase < 0.5 {
			out = 1
		}
		out += polyBLEP(phase, dt)
		out -= polyBLEP(math.Mod(phase+0.5, 1), dt)
		return out
	case Sawtooth:
		return 2*phase - 1 - polyBLEP(phase, dt)
	default:
		return math.Sin(twoPi * phase)
	}
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func finished(o *osc) bool { return o.done.Load() }

func (e *Engine) samplesFor(seconds float64) int {
	n := int(math.Round(seconds * e.sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}

// Params returns the current knob state.
func (e *Engine) Params() Params {
	return Params{
		Waveform: Waveform(e.waveform.Load()),
		Attack:   int(e.attack.Load()),
		Decay:    int(e.decay.Load()),
	}
}

func (e *Engine) PitchBendValue() int { return int(e.pitchBend.Load()) }

// ActiveVoiceCount returns the number of notes registered in the voice table.
func (e *Engine) ActiveVoiceCount() int { return e.voices.Len() }

// SoundingVoiceCount includes release tails and orphaned generators.
func (e *Engine) SoundingVoiceCount() int {
	n := 0
	for _, o := range e.voices.Running() {
		if !o.done.Load() {
			n++
		}
	}
	return n
}

// OrphanCount reports generators displaced by re-triggering a sounding note.
func (e *Engine) OrphanCount() int { return len(e.voices.Orphans()) }

// Frequency returns the current oscillator frequency of a registered note.
func (e *Engine) Frequency(key int) (float64, bool) {
	o, ok := e.voices.Lookup(key)
	if !ok {
		return 0, false
	}
	return o.frequency(e.sampleRate), true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
