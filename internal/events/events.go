// Package events defines the payloads exchanged on the bus and the channels
// that carry them.
package events

import (
	"fmt"
	"strings"

	"github.com/cbegin/midisynth-go/internal/bus"
)

// Event is implemented by every payload the MIDI decoder produces.
type Event interface {
	isEvent()
}

type NoteOn struct {
	Note     int
	Velocity int
}

type NoteOff struct {
	Note int
}

// KnobTurn is a mapped control change; Knob is 0..7, Value is raw 0..127.
type KnobTurn struct {
	Knob  int
	Value int
}

// PitchBend carries the most significant bend byte shifted to [-64, 63].
type PitchBend struct {
	Value int
}

func (NoteOn) isEvent()    {}
func (NoteOff) isEvent()   {}
func (KnobTurn) isEvent()  {}
func (PitchBend) isEvent() {}

// Instrument selects one of the voice engines.
type Instrument int

const (
	InstrumentNone Instrument = iota
	InstrumentKarplus
	InstrumentSynth
)

func (i Instrument) String() string {
	switch i {
	case InstrumentKarplus:
		return "karplus"
	case InstrumentSynth:
		return "synth"
	default:
		return "none"
	}
}

// ParseInstrument accepts the names produced by Instrument.String.
func ParseInstrument(name string) (Instrument, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "karplus", "karplus-strong", "ks":
		return InstrumentKarplus, nil
	case "synth", "waveform":
		return InstrumentSynth, nil
	case "", "none":
		return InstrumentNone, nil
	default:
		return InstrumentNone, fmt.Errorf("unknown instrument %q (expected synth|karplus)", name)
	}
}

type SwitchInstrument struct {
	Instrument Instrument
}

// Initialized is the initial-state notification: the instrument selected at
// startup and the knob values restored for it.
type Initialized struct {
	Instrument Instrument
	Knobs      []int
}

var (
	NoteOnTopic           = bus.NewTopic[NoteOn]("MIDI_NOTE_ON")
	NoteOffTopic          = bus.NewTopic[NoteOff]("MIDI_NOTE_OFF")
	KnobTurnTopic         = bus.NewTopic[KnobTurn]("MIDI_KNOB_TURN")
	PitchBendTopic        = bus.NewTopic[PitchBend]("MIDI_PITCH_BEND")
	SwitchInstrumentTopic = bus.NewTopic[SwitchInstrument]("SWITCH_INSTRUMENT")
	InitializedTopic      = bus.NewTopic[Initialized]("STORE_INITIALIZED")
)

// Publish emits a decoded MIDI event on its channel.
func Publish(b *bus.Bus, ev Event) {
	switch e := ev.(type) {
	case NoteOn:
		bus.Emit(b, NoteOnTopic, e)
	case NoteOff:
		bus.Emit(b, NoteOffTopic, e)
	case KnobTurn:
		bus.Emit(b, KnobTurnTopic, e)
	case PitchBend:
		bus.Emit(b, PitchBendTopic, e)
	}
}
