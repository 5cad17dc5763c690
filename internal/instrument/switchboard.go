package instrument

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
)

// ErrUnknownInstrument is returned when no instrument is registered for a kind.
var ErrUnknownInstrument = errors.New("instrument: unknown instrument")

// Switchboard owns the instruments and guarantees at most one is enabled.
type Switchboard struct {
	bus         *bus.Bus
	instruments map[events.Instrument]Instrument
	logger      *slog.Logger

	mu     sync.Mutex // guards active and subs
	active events.Instrument
	subs   []bus.Subscription
}

// NewSwitchboard starts listening for instrument commands. Nothing is enabled
// until the first SwitchInstrument or Initialized event, or a call to Enable.
func NewSwitchboard(b *bus.Bus, instruments map[events.Instrument]Instrument, logger *slog.Logger) *Switchboard {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Switchboard{
		bus:         b,
		instruments: instruments,
		logger:      logger,
		active:      events.InstrumentNone,
	}
	s.subs = []bus.Subscription{
		bus.Listen(b, events.SwitchInstrumentTopic, func(e events.SwitchInstrument) {
			if err := s.Enable(e.Instrument); err != nil {
				s.logger.Warn("switchboard: switch ignored", "instrument", e.Instrument, "err", err)
			}
		}),
		bus.Listen(b, events.InitializedTopic, s.initialized),
	}
	return s
}

// Enable disables the current instrument and enables kind. Selecting the
// active instrument again is a no-op. InstrumentNone silences input.
func (s *Switchboard) Enable(kind events.Instrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == s.active {
		return nil
	}
	var next Instrument
	if kind != events.InstrumentNone {
		inst, ok := s.instruments[kind]
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownInstrument, kind)
		}
		next = inst
	}
	if cur, ok := s.instruments[s.active]; ok {
		cur.Disable()
	}
	if next != nil {
		next.Enable()
	}
	s.logger.Info("switchboard: instrument selected", "from", s.active, "to", kind)
	s.active = kind
	return nil
}

func (s *Switchboard) Active() events.Instrument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close disables the active instrument and stops listening for commands.
func (s *Switchboard) Close() {
	s.mu.Lock()
	for _, sub := range s.subs {
		s.bus.Unlisten(sub)
	}
	s.subs = nil
	s.mu.Unlock()
	_ = s.Enable(events.InstrumentNone)
}

// initialized enables the instrument selected at startup. The knob values
// are already applied to the engines; they ride along for display consumers.
func (s *Switchboard) initialized(e events.Initialized) {
	if err := s.Enable(e.Instrument); err != nil {
		s.logger.Warn("switchboard: initial instrument ignored", "instrument", e.Instrument, "err", err)
		return
	}
	s.logger.Debug("switchboard: initialized", "instrument", e.Instrument, "knobs", e.Knobs)
}
