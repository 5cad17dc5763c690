package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Southclaws/fault/fmsg"

	"github.com/cbegin/midisynth-go"
	"github.com/cbegin/midisynth-go/internal/bus"
	"github.com/cbegin/midisynth-go/internal/events"
	"github.com/cbegin/midisynth-go/internal/midi"
	"github.com/cbegin/midisynth-go/internal/note"
	"github.com/cbegin/midisynth-go/internal/preset"
)

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	var (
		presetPath = flag.String("preset", "", "path to a JSON preset")
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		instrument = flag.String("instrument", "synth", "initial instrument: synth|karplus")
		volume     = flag.Float64("volume", 0.8, "master volume (0..1)")
		noMIDI     = flag.Bool("no-midi", false, "do not open a MIDI input")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()
	initLogger(*debug)

	cfg := preset.Default()
	if *presetPath != "" {
		loaded, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fatal("load preset", err)
		}
		cfg = loaded
	}
	// Flags given explicitly win over the preset.
	var flagErr error
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "backend":
			cfg.Backend = *backend
		case "volume":
			cfg.MasterVolume = *volume
		case "instrument":
			kind, err := events.ParseInstrument(*instrument)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Instrument = kind
		}
	})
	if flagErr != nil {
		fatal("invalid flag", flagErr)
	}

	logger.Info("midisynth starting",
		"sample_rate", cfg.SampleRate,
		"backend", cfg.Backend,
		"instrument", cfg.Instrument,
		"volume", cfg.MasterVolume,
		"preset", *presetPath,
	)

	synth, err := midisynth.New(cfg.SampleRate, midisynth.WithPreset(cfg), midisynth.WithLogger(logger))
	if err != nil {
		fatal("create synth", err)
	}
	defer synth.Close()
	if *debug {
		bus.Listen(synth.Bus(), events.NoteOnTopic, func(e events.NoteOn) {
			logger.Debug("note on", "note", note.Name(e.Note), "midi_note", e.Note, "velocity", e.Velocity)
		})
	}
	if err := synth.Start(); err != nil {
		fatal("start audio", err)
	}

	var watcher *midi.Watcher
	if !*noMIDI {
		opts := []midi.WatcherOption{
			midi.WithPreferred(cfg.MIDI.Preferred...),
			midi.WithWatcherLogger(logger),
			midi.WithOnDisconnect(func() {
				logger.Warn("midi: disconnect, releasing all notes")
				synth.AllNotesOff()
			}),
		}
		if cfg.MIDI.Excluded != nil {
			opts = append(opts, midi.WithExcluded(cfg.MIDI.Excluded...))
		}
		watcher, err = midi.NewWatcher(synth.HandleMIDI, opts...)
		if err != nil {
			logger.Error("midi watcher init failed, continuing without MIDI input", "err", err, "reason", fmsg.GetIssue(err))
			watcher = nil
		} else {
			defer watcher.Close()
		}
	}

	fmt.Println("commands: synth | karplus | none | vol <0..1> | panic | quit")
	lines := make(chan string)
	go readCommands(lines)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	if watcher != nil {
		watcher.Tick()
	}
	for {
		select {
		case <-sigs:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			if watcher != nil {
				watcher.Tick()
			}
		case line, ok := <-lines:
			if !ok {
				logger.Info("stdin closed, shutting down")
				return
			}
			if quit := runCommand(synth, line); quit {
				return
			}
		}
	}
}

func readCommands(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// runCommand executes one shell command and reports whether to quit.
func runCommand(synth *midisynth.Synth, line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return true
	case "panic":
		synth.AllNotesOff()
	case "vol", "volume":
		if len(fields) < 2 {
			fmt.Printf("volume %.2f\n", synth.MasterVolume())
			return false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Printf("invalid volume %q\n", fields[1])
			return false
		}
		synth.SetMasterVolume(v)
	default:
		kind, err := events.ParseInstrument(fields[0])
		if err != nil {
			fmt.Println(err)
			return false
		}
		synth.SwitchInstrument(kind)
		fmt.Printf("instrument %s knobs %v\n", synth.ActiveInstrument(), synth.Knobs())
	}
	return false
}

func fatal(msg string, err error) {
	logger.Error(msg, "err", err)
	if issue := fmsg.GetIssue(err); issue != "" {
		fmt.Fprintln(os.Stderr, issue)
	}
	os.Exit(1)
}
