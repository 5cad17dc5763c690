package midi

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		msg  []byte
		want events.Event
	}{
		{"note on", []byte{0x90, 60, 64}, events.NoteOn{Note: 60, Velocity: 64}},
		{"note on velocity zero", []byte{0x90, 60, 0}, events.NoteOff{Note: 60}},
		{"note off", []byte{0x80, 60, 0}, events.NoteOff{Note: 60}},
		{"note on other channel", []byte{0x93, 61, 1}, events.NoteOn{Note: 61, Velocity: 1}},
		{"bend max", []byte{0xE0, 0, 127}, events.PitchBend{Value: 63}},
		{"bend center", []byte{0xE0, 0, 64}, events.PitchBend{Value: 0}},
		{"bend min ignores lsb", []byte{0xE0, 127, 0}, events.PitchBend{Value: -64}},
		{"knob 0", []byte{0xB0, 5, 100}, events.KnobTurn{Knob: 0, Value: 100}},
		{"knob 1", []byte{0xB0, 73, 1}, events.KnobTurn{Knob: 1, Value: 1}},
		{"knob 7", []byte{0xB2, 91, 127}, events.KnobTurn{Knob: 7, Value: 127}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Decode(tc.msg)
			if !ok {
				t.Fatalf("Decode(% x) dropped the message", tc.msg)
			}
			if got != tc.want {
				t.Fatalf("Decode(% x) = %#v, want %#v", tc.msg, got, tc.want)
			}
		})
	}
}

func TestDecodeDropsUnsupported(t *testing.T) {
	for _, msg := range [][]byte{
		{0xB0, 7, 100}, // unmapped controller
		{0xC0, 5, 0},   // program change
		{0xA0, 60, 10}, // poly aftertouch
		{0xF8, 0, 0},   // clock
		{0x90, 60},     // truncated
		nil,
	} {
		if ev, ok := Decode(msg); ok {
			t.Fatalf("Decode(% x) = %#v, want dropped", msg, ev)
		}
	}
}

func TestDecodeGomidiMessages(t *testing.T) {
	cases := []struct {
		msg  gomidi.Message
		want events.Event
	}{
		{gomidi.NoteOn(0, 60, 64), events.NoteOn{Note: 60, Velocity: 64}},
		{gomidi.NoteOff(3, 60), events.NoteOff{Note: 60}},
		{gomidi.ControlChange(0, 15, 33), events.KnobTurn{Knob: 2, Value: 33}},
		{gomidi.Pitchbend(0, 0), events.PitchBend{Value: 0}},
	}
	for _, tc := range cases {
		got, ok := Decode(tc.msg)
		if !ok || got != tc.want {
			t.Fatalf("Decode(%s) = %#v, %v; want %#v", tc.msg, got, ok, tc.want)
		}
	}
}

func TestHandlerPublishesDecodedEvents(t *testing.T) {
	b := bus.New()
	var got []events.Event
	bus.Listen(b, events.NoteOnTopic, func(e events.NoteOn) { got = append(got, e) })
	bus.Listen(b, events.NoteOffTopic, func(e events.NoteOff) { got = append(got, e) })
	bus.Listen(b, events.KnobTurnTopic, func(e events.KnobTurn) { got = append(got, e) })
	bus.Listen(b, events.PitchBendTopic, func(e events.PitchBend) { got = append(got, e) })

	h := NewHandler(b, nil)
	h.HandleMessage([]byte{0x90, 60, 64})
	h.HandleMessage([]byte{0xB0, 7, 1}) // dropped
	h.HandleMessage([]byte{0xB0, 74, 9})
	h.HandleMessage([]byte{0xE0, 0, 96})
	h.HandleMessage([]byte{0x90, 60, 0})

	want := []events.Event{
		events.NoteOn{Note: 60, Velocity: 64},
		events.KnobTurn{Knob: 4, Value: 9},
		events.PitchBend{Value: 32},
		events.NoteOff{Note: 60},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d events %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}
