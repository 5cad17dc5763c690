package note

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinNote and MaxNote bound the frequency table.
	MinNote = 0
	MaxNote = 126

	MinBend = -64
	MaxBend = 63

	referenceNote = 69 // A4
	referenceFreq = 440.0

	// bendSemitones is the bend value that equals one semitone; the full
	// [-64, 63] range spans about two semitones either way.
	bendSemitones = 32
)

// ErrNoteOutOfRange is matched by every *RangeError.
var ErrNoteOutOfRange = errors.New("note out of range")

// RangeError reports a note number outside [MinNote, MaxNote].
type RangeError struct {
	Note int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("note %d outside [%d, %d]", e.Note, MinNote, MaxNote)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrNoteOutOfRange
}

var frequencies = computeTable()

// computeTable builds the equal-tempered table f(n) = 440 * 2^((n-69)/12).
func computeTable() [MaxNote + 1]float64 {
	var t [MaxNote + 1]float64
	for n := range t {
		t[n] = referenceFreq * math.Pow(2, float64(n-referenceNote)/12)
	}
	return t
}

// FrequencyForNote returns the frequency in Hz of note shifted by pitchBend.
// pitchBend is clamped to [MinBend, MaxBend].
func FrequencyForNote(note int, pitchBend int) (float64, error) {
	if note < MinNote || note > MaxNote {
		return 0, &RangeError{Note: note}
	}
	f := frequencies[note]
	if pitchBend == 0 {
		return f, nil
	}
	bend := clampInt(pitchBend, MinBend, MaxBend)
	return f * math.Pow(2, float64(bend)/bendSemitones/12), nil
}

// GainForVelocity maps a MIDI velocity to linear gain using the DLS concave
// transform, atten_dB = 20*log10(127^2/v^2), which reduces to (v/127)^2.
// Velocity is clamped to [0, 127].
func GainForVelocity(velocity int) float64 {
	v := float64(clampInt(velocity, 0, 127)) / 127
	return v * v
}

var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Name returns the scientific pitch name of a MIDI note, e.g. 69 -> "A4".
func Name(note int) string {
	if note < 0 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", names[note%12], note/12-1)
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
