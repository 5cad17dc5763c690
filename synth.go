// Package midisynth is a small software synthesizer driven by a MIDI
// keyboard. Raw MIDI messages are decoded onto an event bus; exactly one of
// two voice engines (a waveform oscillator bank or a Karplus-Strong string)
// listens at a time, and both are mixed into a stereo output stream.
package midisynth

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/midisynth-go/internal/audio"
	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
	intinst "github.com/cbegin/midisynth-go/internal/instrument"
	intks "github.com/cbegin/midisynth-go/internal/karplus"
	intmidi "github.com/cbegin/midisynth-go/internal/midi"
	intpreset "github.com/cbegin/midisynth-go/internal/preset"
	intwave "github.com/cbegin/midisynth-go/internal/waveform"
)

type Option func(*config)

type config struct {
	logger       *slog.Logger
	instrument   events.Instrument
	backend      intaudio.Backend
	masterVolume float64
	synth        intwave.Params
	karplus      intks.Params
	sampleTap    func([]float32)
}

func defaultConfig() config {
	return config{
		logger:       slog.Default(),
		instrument:   events.InstrumentSynth,
		backend:      intaudio.BackendEbiten,
		masterVolume: 1,
		synth:        intwave.DefaultParams(),
		karplus:      intks.DefaultParams(),
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithInitialInstrument selects the instrument enabled at startup.
func WithInitialInstrument(kind events.Instrument) Option {
	return func(cfg *config) {
		cfg.instrument = kind
	}
}

func WithBackend(backend intaudio.Backend) Option {
	return func(cfg *config) {
		cfg.backend = backend
	}
}

func WithMasterVolume(volume float64) Option {
	return func(cfg *config) {
		cfg.masterVolume = volume
	}
}

func WithSynthParams(params intwave.Params) Option {
	return func(cfg *config) {
		cfg.synth = params
	}
}

func WithKarplusParams(params intks.Params) Option {
	return func(cfg *config) {
		cfg.karplus = params
	}
}

// WithPreset applies every setting of a loaded preset except the sample rate,
// which is passed to New.
func WithPreset(p intpreset.Config) Option {
	return func(cfg *config) {
		cfg.instrument = p.Instrument
		cfg.masterVolume = p.MasterVolume
		cfg.synth = p.Synth
		cfg.karplus = p.Karplus
		cfg.backend = intaudio.Backend(p.Backend)
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *config) {
		cfg.sampleTap = tap
	}
}

type Synth struct {
	mu         sync.Mutex
	sampleRate int
	backend    intaudio.Backend
	logger     *slog.Logger
	bus        *bus.Bus
	synth      *intwave.Engine
	karplus    *intks.Engine
	board      *intinst.Switchboard
	midi       *intmidi.Handler
	audio      intaudio.Output
	gain       atomic.Uint64 // float64 bits
	sampleTap  func([]float32)

	mono []float32 // render side only
}

func New(sampleRate int, opts ...Option) (*Synth, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	backend, err := intaudio.ParseBackend(string(cfg.backend))
	if err != nil {
		return nil, err
	}
	cfg.backend = backend
	b := bus.New()
	s := &Synth{
		sampleRate: sampleRate,
		backend:    cfg.backend,
		logger:     cfg.logger,
		bus:        b,
		synth:      intwave.New(sampleRate, cfg.synth),
		karplus:    intks.New(sampleRate, cfg.karplus),
		midi:       intmidi.NewHandler(b, cfg.logger),
		sampleTap:  cfg.sampleTap,
	}
	s.SetMasterVolume(cfg.masterVolume)
	s.board = intinst.NewSwitchboard(b, map[events.Instrument]intinst.Instrument{
		events.InstrumentSynth:   intinst.NewBinding("synth", b, s.synth, cfg.logger),
		events.InstrumentKarplus: intinst.NewBinding("karplus", b, s.karplus, cfg.logger),
	}, cfg.logger)
	bus.Emit(b, events.InitializedTopic, events.Initialized{
		Instrument: cfg.instrument,
		Knobs:      s.knobs(cfg.instrument),
	})
	return s, nil
}

// knobs reports the current knob positions of an instrument in knob order.
func (s *Synth) knobs(kind events.Instrument) []int {
	switch kind {
	case events.InstrumentSynth:
		p := s.synth.Params()
		return []int{int(p.Waveform), p.Attack, p.Decay}
	case events.InstrumentKarplus:
		return []int{int(math.Round(s.karplus.ImpulseLength() * 127)), s.karplus.FilterLength() - 2}
	}
	return nil
}

// Bus exposes the event channels for display consumers.
func (s *Synth) Bus() *bus.Bus { return s.bus }

func (s *Synth) SampleRate() int { return s.sampleRate }

// HandleMIDI decodes one raw message and publishes it. It may be called from
// the MIDI driver goroutine.
func (s *Synth) HandleMIDI(msg []byte) {
	s.midi.HandleMessage(msg)
}

// SwitchInstrument publishes an instrument selection command.
func (s *Synth) SwitchInstrument(kind events.Instrument) {
	bus.Emit(s.bus, events.SwitchInstrumentTopic, events.SwitchInstrument{Instrument: kind})
}

func (s *Synth) ActiveInstrument() events.Instrument {
	return s.board.Active()
}

// Knobs returns the knob positions of the active instrument.
func (s *Synth) Knobs() []int {
	return s.knobs(s.board.Active())
}

// AllNotesOff releases every held note on both engines.
func (s *Synth) AllNotesOff() {
	s.synth.AllNotesOff()
	s.karplus.AllNotesOff()
}

// SetMasterVolume sets the output scalar, clamped to [0,1]. It takes effect
// on the next rendered buffer.
func (s *Synth) SetMasterVolume(volume float64) {
	if volume < 0 || math.IsNaN(volume) {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	s.gain.Store(math.Float64bits(volume))
}

func (s *Synth) MasterVolume() float64 {
	return math.Float64frombits(s.gain.Load())
}

// Process renders len(dst)/2 interleaved stereo frames. Both engines are
// mixed so voices of a disabled instrument finish their tails.
func (s *Synth) Process(dst []float32) {
	frames := len(dst) / 2
	if cap(s.mono) < frames {
		s.mono = make([]float32, frames)
	}
	mono := s.mono[:frames]
	clear(mono)
	s.synth.Render(mono)
	s.karplus.Render(mono)
	gain := float32(s.MasterVolume())
	for i, v := range mono {
		v *= gain
		dst[2*i] = v
		dst[2*i+1] = v
	}
	if s.sampleTap != nil {
		s.sampleTap(dst)
	}
}

// Start opens the audio device and begins playback. Calling it while
// already playing is a no-op.
func (s *Synth) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio != nil {
		return nil
	}
	out, err := intaudio.Open(s.backend, s.sampleRate, s)
	if err != nil {
		return err
	}
	s.audio = out
	s.audio.Play()
	s.logger.Info("audio started", "backend", s.backend, "sample_rate", s.sampleRate)
	return nil
}

func (s *Synth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audio == nil {
		return nil
	}
	err := s.audio.Stop()
	s.audio = nil
	return err
}

// Close stops audio and detaches both instruments from the bus.
func (s *Synth) Close() error {
	err := s.Stop()
	s.board.Close()
	return err
}
