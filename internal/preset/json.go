// Package preset loads synth settings from a JSON file.
package preset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/midisynth-go/internal/audio"
	"github.com/cbegin/midisynth-go/internal/events"
	"github.com/cbegin/midisynth-go/internal/karplus"
	"github.com/cbegin/midisynth-go/internal/waveform"
)

// Config is the resolved configuration: defaults with a preset on top.
type Config struct {
	SampleRate   int
	Backend      string
	Instrument   events.Instrument
	MasterVolume float64
	Synth        waveform.Params
	Karplus      karplus.Params
	MIDI         MIDI
}

type MIDI struct {
	Preferred []string
	Excluded  []string
}

func Default() Config {
	return Config{
		SampleRate:   44100,
		Backend:      string(audio.BackendEbiten),
		Instrument:   events.InstrumentSynth,
		MasterVolume: 0.8,
		Synth:        waveform.DefaultParams(),
		Karplus:      karplus.DefaultParams(),
		MIDI: MIDI{
			Preferred: []string{"Launchkey", "Novation"},
		},
	}
}

// File is the JSON schema. Absent fields keep their defaults.
type File struct {
	SampleRate   *int          `json:"sample_rate"`
	Backend      *string       `json:"backend"`
	Instrument   *string       `json:"instrument"`
	MasterVolume *float64      `json:"master_volume"`
	Synth        *SynthKnobs   `json:"synth"`
	Karplus      *KarplusKnobs `json:"karplus"`
	MIDI         *MIDIFile     `json:"midi"`
}

// SynthKnobs holds raw knob values: waveform 0..3, attack and decay 0..127.
type SynthKnobs struct {
	Waveform *int `json:"waveform"`
	Attack   *int `json:"attack"`
	Decay    *int `json:"decay"`
}

type KarplusKnobs struct {
	ImpulseLength *float64 `json:"impulse_length"`
	FilterLength  *int     `json:"filter_length"`
	Seed          *uint64  `json:"seed"`
}

type MIDIFile struct {
	Preferred []string `json:"preferred"`
	Excluded  []string `json:"excluded"`
}

// LoadJSON reads path and applies it on top of Default.
func LoadJSON(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fault.Wrap(err,
				fmsg.WithDesc("read preset", fmt.Sprintf("Preset file %s does not exist", path)),
				ftag.With(ftag.NotFound))
		}
		return cfg, fault.Wrap(err, fmsg.With("read preset"))
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return cfg, fault.Wrap(err,
			fmsg.WithDesc("parse preset", fmt.Sprintf("Preset file %s is not valid JSON", path)),
			ftag.With(ftag.InvalidArgument))
	}
	if err := ApplyFile(&cfg, &f); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyFile validates f and copies its fields onto dst.
func ApplyFile(dst *Config, f *File) error {
	if dst == nil {
		return invalid("nil destination config")
	}
	if f == nil {
		return nil
	}
	if f.SampleRate != nil {
		if *f.SampleRate < 8000 || *f.SampleRate > 192000 {
			return invalid(fmt.Sprintf("sample_rate must be in [8000,192000], got %d", *f.SampleRate))
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.Backend != nil {
		b, err := audio.ParseBackend(*f.Backend)
		if err != nil {
			return invalid(fmt.Sprintf("backend must be one of %v, got %q", audio.Backends, *f.Backend))
		}
		dst.Backend = string(b)
	}
	if f.Instrument != nil {
		inst, err := events.ParseInstrument(*f.Instrument)
		if err != nil {
			return fault.Wrap(err, ftag.With(ftag.InvalidArgument))
		}
		dst.Instrument = inst
	}
	if f.MasterVolume != nil {
		if *f.MasterVolume < 0 || *f.MasterVolume > 1 {
			return invalid(fmt.Sprintf("master_volume must be in [0,1], got %v", *f.MasterVolume))
		}
		dst.MasterVolume = *f.MasterVolume
	}
	if s := f.Synth; s != nil {
		if s.Waveform != nil {
			if *s.Waveform < 0 || *s.Waveform >= len(waveform.Waveforms) {
				return invalid(fmt.Sprintf("synth.waveform must be in [0,%d], got %d", len(waveform.Waveforms)-1, *s.Waveform))
			}
			dst.Synth.Waveform = waveform.Waveforms[*s.Waveform]
		}
		if s.Attack != nil {
			if err := knobRange("synth.attack", *s.Attack); err != nil {
				return err
			}
			dst.Synth.Attack = *s.Attack
		}
		if s.Decay != nil {
			if err := knobRange("synth.decay", *s.Decay); err != nil {
				return err
			}
			dst.Synth.Decay = *s.Decay
		}
	}
	if k := f.Karplus; k != nil {
		if k.ImpulseLength != nil {
			if *k.ImpulseLength < 0 || *k.ImpulseLength > 1 {
				return invalid(fmt.Sprintf("karplus.impulse_length must be in [0,1], got %v", *k.ImpulseLength))
			}
			dst.Karplus.ImpulseLength = *k.ImpulseLength
		}
		if k.FilterLength != nil {
			if *k.FilterLength < 1 || *k.FilterLength > 129 {
				return invalid(fmt.Sprintf("karplus.filter_length must be in [1,129], got %d", *k.FilterLength))
			}
			dst.Karplus.FilterLength = *k.FilterLength
		}
		if k.Seed != nil {
			dst.Karplus.Seed = *k.Seed
		}
	}
	if m := f.MIDI; m != nil {
		if m.Preferred != nil {
			dst.MIDI.Preferred = m.Preferred
		}
		if m.Excluded != nil {
			dst.MIDI.Excluded = m.Excluded
		}
	}
	return nil
}

func knobRange(name string, v int) error {
	if v < 0 || v > 127 {
		return invalid(fmt.Sprintf("%s must be in [0,127], got %d", name, v))
	}
	return nil
}

func invalid(msg string) error {
	return fault.New(msg, fmsg.WithDesc(msg, "Invalid preset: "+msg), ftag.With(ftag.InvalidArgument))
}
