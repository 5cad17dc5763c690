// Package instrument connects voice engines to the bus and keeps exactly one
// of them listening at a time.
package instrument

import (
	"log/slog"
	"sync"

	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
)

// Instrument is something the switchboard can turn on and off.
type Instrument interface {
	Enable()
	Disable()
}

// Engine is the control surface shared by the voice engines.
type Engine interface {
	NoteOn(key int, velocity int) error
	NoteOff(key int)
	KnobTurn(knob int, value int)
}

// PitchBender is implemented by engines that follow the pitch wheel.
type PitchBender interface {
	PitchBend(value int)
}

// Binding subscribes an engine's handlers to the MIDI channels while enabled.
type Binding struct {
	name   string
	bus    *bus.Bus
	engine Engine
	logger *slog.Logger

	mu   sync.Mutex
	subs []bus.Subscription
}

func NewBinding(name string, b *bus.Bus, engine Engine, logger *slog.Logger) *Binding {
	if logger == nil {
		logger = slog.Default()
	}
	return &Binding{
		name:   name,
		bus:    b,
		engine: engine,
		logger: logger.With("instrument", name),
	}
}

func (b *Binding) Name() string { return b.name }

func (b *Binding) Engine() Engine { return b.engine }

// Enabled reports whether the engine is currently subscribed.
func (b *Binding) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs != nil
}

// Enable subscribes the engine. Calling it twice does not duplicate handlers.
func (b *Binding) Enable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs != nil {
		return
	}
	b.subs = []bus.Subscription{
		bus.Listen(b.bus, events.NoteOnTopic, b.noteOn),
		bus.Listen(b.bus, events.NoteOffTopic, func(e events.NoteOff) {
			b.engine.NoteOff(e.Note)
		}),
		bus.Listen(b.bus, events.KnobTurnTopic, func(e events.KnobTurn) {
			b.engine.KnobTurn(e.Knob, e.Value)
		}),
	}
	if pb, ok := b.engine.(PitchBender); ok {
		b.subs = append(b.subs, bus.Listen(b.bus, events.PitchBendTopic, func(e events.PitchBend) {
			pb.PitchBend(e.Value)
		}))
	}
	b.logger.Debug("instrument: enabled")
}

// Disable drops every subscription. Voices already sounding are left alone.
func (b *Binding) Disable() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		return
	}
	for _, sub := range b.subs {
		b.bus.Unlisten(sub)
	}
	b.subs = nil
	b.logger.Debug("instrument: disabled")
}

func (b *Binding) noteOn(e events.NoteOn) {
	if err := b.engine.NoteOn(e.Note, e.Velocity); err != nil {
		b.logger.Warn("instrument: note dropped", "note", e.Note, "velocity", e.Velocity, "err", err)
	}
}
