package midisynth

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midisynth-go/internal/events"
	intwave "github.com/cbegin/midisynth-go/internal/waveform"
)

func TestRenderSamplesLength(t *testing.T) {
	s, _ := New(48000)
	out := RenderSamples(s, 0.5)
	if len(out) != 48000 {
		t.Fatalf("len = %d, want 48000", len(out))
	}
	if p := peak(out); p != 0 {
		t.Fatalf("silent synth produced peak %f", p)
	}
}

func TestRenderMessagesNoteLifecycle(t *testing.T) {
	s, _ := New(sr, WithSynthParams(intwave.Params{Waveform: intwave.Sine, Attack: 0, Decay: 0}))
	release := int(intwave.DecayTime(0)*sr) + 1
	msgs := []TimedMessage{
		{Frame: 4410, Data: gomidi.NoteOff(0, 69)},
		{Frame: 0, Data: gomidi.NoteOn(0, 69, 120)},
	}
	out := RenderMessages(s, msgs, 0.2)
	if len(out) != 2*int(0.2*sr) {
		t.Fatalf("len = %d", len(out))
	}
	if p := peak(out[:2*4410]); p < 0.1 {
		t.Fatalf("held note too quiet, peak %f", p)
	}
	tail := out[2*(4410+release+1024):]
	if p := peak(tail); p != 0 {
		t.Fatalf("output after release = %f, want silence", p)
	}
}

func TestRenderMessagesKarplusIsDeterministic(t *testing.T) {
	render := func() []float32 {
		s, _ := New(sr, WithInitialInstrument(events.InstrumentKarplus))
		return RenderMessages(s, []TimedMessage{
			{Frame: 0, Data: []byte{0x90, 64, 100}},
			{Frame: 1000, Data: []byte{0x90, 67, 100}},
			{Frame: 3000, Data: []byte{0x80, 64, 0}},
		}, 0.1)
	}
	a, b := render(), render()
	if peak(a) == 0 {
		t.Fatal("no output")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs: %f vs %f", i, a[i], b[i])
		}
	}
}
