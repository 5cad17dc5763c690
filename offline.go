package midisynth

import "sort"

// TimedMessage is a raw MIDI message scheduled at an output frame.
type TimedMessage struct {
	Frame int
	Data  []byte
}

// RenderSamples renders seconds of interleaved stereo output without an
// audio device.
func RenderSamples(s *Synth, seconds float64) []float32 {
	frames := int(float64(s.sampleRate) * seconds)
	out := make([]float32, frames*2)
	s.Process(out)
	return out
}

// RenderMessages plays msgs into s at their frame offsets and returns the
// rendered output. Messages with equal frames keep their order.
func RenderMessages(s *Synth, msgs []TimedMessage, seconds float64) []float32 {
	frames := int(float64(s.sampleRate) * seconds)
	out := make([]float32, frames*2)
	sorted := make([]TimedMessage, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Frame < sorted[j].Frame })

	pos := 0
	for _, m := range sorted {
		at := min(max(m.Frame, 0), frames)
		if at > pos {
			s.Process(out[pos*2 : at*2])
			pos = at
		}
		s.HandleMIDI(m.Data)
	}
	if pos < frames {
		s.Process(out[pos*2:])
	}
	return out
}
