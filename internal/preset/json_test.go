package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/midisynth-go/internal/events"
	"github.com/cbegin/midisynth-go/internal/waveform"
)

func writePreset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return path
}

func TestLoadJSONOverlaysDefaults(t *testing.T) {
	path := writePreset(t, `{
		"instrument": "karplus",
		"master_volume": 0.5,
		"synth": {"waveform": 3, "decay": 40},
		"karplus": {"filter_length": 9, "seed": 7},
		"midi": {"preferred": ["Arturia"]}
	}`)
	cfg, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	def := Default()
	if cfg.Instrument != events.InstrumentKarplus {
		t.Fatalf("instrument = %v, want karplus", cfg.Instrument)
	}
	if cfg.MasterVolume != 0.5 {
		t.Fatalf("master volume = %v, want 0.5", cfg.MasterVolume)
	}
	if cfg.Synth.Waveform != waveform.Sawtooth || cfg.Synth.Decay != 40 {
		t.Fatalf("synth = %+v", cfg.Synth)
	}
	if cfg.Synth.Attack != def.Synth.Attack {
		t.Fatalf("attack = %d, want default %d", cfg.Synth.Attack, def.Synth.Attack)
	}
	if cfg.Karplus.FilterLength != 9 || cfg.Karplus.Seed != 7 || cfg.Karplus.ImpulseLength != def.Karplus.ImpulseLength {
		t.Fatalf("karplus = %+v", cfg.Karplus)
	}
	if len(cfg.MIDI.Preferred) != 1 || cfg.MIDI.Preferred[0] != "Arturia" {
		t.Fatalf("preferred = %v", cfg.MIDI.Preferred)
	}
	if cfg.SampleRate != def.SampleRate || cfg.Backend != def.Backend {
		t.Fatalf("untouched fields changed: %+v", cfg)
	}
}

func TestLoadJSONRejectsInvalidValues(t *testing.T) {
	for _, body := range []string{
		`{"sample_rate": 100}`,
		`{"backend": "alsa"}`,
		`{"master_volume": 1.5}`,
		`{"instrument": "theremin"}`,
		`{"synth": {"waveform": 4}}`,
		`{"synth": {"attack": -1}}`,
		`{"synth": {"decay": 128}}`,
		`{"karplus": {"impulse_length": 2}}`,
		`{"karplus": {"filter_length": 0}}`,
		`{not json`,
	} {
		_, err := LoadJSON(writePreset(t, body))
		if err == nil {
			t.Fatalf("LoadJSON(%s) succeeded, want error", body)
		}
		if kind := ftag.Get(err); kind != ftag.InvalidArgument {
			t.Fatalf("LoadJSON(%s) kind = %v, want InvalidArgument", body, kind)
		}
	}
}

func TestLoadJSONMissingFile(t *testing.T) {
	_, err := LoadJSON(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := ftag.Get(err); kind != ftag.NotFound {
		t.Fatalf("kind = %v, want NotFound", kind)
	}
}

func TestApplyFileNil(t *testing.T) {
	cfg := Default()
	if err := ApplyFile(&cfg, nil); err != nil {
		t.Fatal(err)
	}
	if err := ApplyFile(nil, &File{}); err == nil {
		t.Fatal("expected error for nil destination")
	}
}

func TestLoadJSONNormalizesBackend(t *testing.T) {
	cfg, err := LoadJSON(writePreset(t, `{"backend": " OTO "}`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != "oto" {
		t.Fatalf("backend = %q, want oto", cfg.Backend)
	}
}
