// Package midi turns raw MIDI channel voice messages into bus events and
// manages the input port they arrive on.
package midi

import (
	"log/slog"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
)

const (
	statusNoteOff       = 0x8
	statusNoteOn        = 0x9
	statusControlChange = 0xB
	statusPitchBend     = 0xE
)

// KnobMap maps controller numbers of the supported keyboard to knob indexes.
var KnobMap = map[uint8]int{
	5:  0,
	73: 1,
	15: 2,
	14: 3,
	74: 4,
	71: 5,
	70: 6,
	91: 7,
}

// Decode translates one 3-byte message. The channel nibble is ignored.
// Unsupported statuses, unmapped controllers and short messages yield false.
func Decode(msg []byte) (events.Event, bool) {
	if len(msg) < 3 {
		return nil, false
	}
	data1, data2 := int(msg[1]), int(msg[2])
	switch msg[0] >> 4 {
	case statusNoteOn:
		if data2 == 0 {
			return events.NoteOff{Note: data1}, true
		}
		return events.NoteOn{Note: data1, Velocity: data2}, true
	case statusNoteOff:
		return events.NoteOff{Note: data1}, true
	case statusControlChange:
		knob, ok := KnobMap[msg[1]]
		if !ok {
			return nil, false
		}
		return events.KnobTurn{Knob: knob, Value: data2}, true
	case statusPitchBend:
		// Only the MSB is used; the LSB makes little audible difference.
		return events.PitchBend{Value: data2 - 64}, true
	}
	return nil, false
}

// Handler decodes raw messages and publishes them on the bus.
type Handler struct {
	bus    *bus.Bus
	logger *slog.Logger
}

func NewHandler(b *bus.Bus, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bus: b, logger: logger}
}

// HandleMessage is safe to call from the MIDI driver goroutine. Messages that
// do not decode are logged at debug level and dropped.
func (h *Handler) HandleMessage(msg []byte) {
	ev, ok := Decode(msg)
	if !ok {
		h.logger.Debug("midi: unhandled message", "msg", gomidi.Message(msg).String(), "raw", msg)
		return
	}
	events.Publish(h.bus, ev)
}
