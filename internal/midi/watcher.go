package midi

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// DefaultExcluded lists virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

const rescanInterval = time.Second

// Driver is the subset of an rtmidi driver the watcher needs.
type Driver interface {
	Ins() ([]drivers.In, error)
	Close() error
}

// Watcher keeps one MIDI input connected. Tick scans the available ports,
// connects to the preferred one and notices when it goes away.
//
// onMessage receives the raw bytes of every message from the driver
// goroutine. onDisconnect runs on its own goroutine when the port is lost.
type Watcher struct {
	mu           sync.Mutex
	drv          Driver
	inPort       drivers.In
	stopFn       func()
	connected    bool
	selectedName string
	lastRescanAt time.Time

	preferred []string
	excluded  []string
	logger    *slog.Logger

	onMessage    func([]byte)
	onDisconnect func()
}

type WatcherOption func(*Watcher)

// WithPreferred sets name patterns picked before any other port.
func WithPreferred(patterns ...string) WatcherOption {
	return func(w *Watcher) { w.preferred = patterns }
}

// WithExcluded replaces DefaultExcluded.
func WithExcluded(patterns ...string) WatcherOption {
	return func(w *Watcher) { w.excluded = patterns }
}

func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithOnDisconnect(fn func()) WatcherOption {
	return func(w *Watcher) { w.onDisconnect = fn }
}

// NewWatcher initialises the rtmidi driver. Call Close when done.
func NewWatcher(onMessage func([]byte), opts ...WatcherOption) (*Watcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fault.Wrap(err,
			fmsg.WithDesc("rtmididrv init", "MIDI is not available on this system"),
			ftag.With(ftag.Internal))
	}
	return newWatcher(drv, onMessage, opts...), nil
}

func newWatcher(drv Driver, onMessage func([]byte), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		drv:       drv,
		excluded:  DefaultExcluded,
		logger:    slog.Default(),
		onMessage: onMessage,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Close shuts down the active connection and the driver.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeConn()
	_ = w.drv.Close()
}

// Connected returns the name of the open port, if any.
func (w *Watcher) Connected() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedName, w.connected
}

// Tick should be called regularly from the main loop. Scans are rate limited
// to one per second.
func (w *Watcher) Tick() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if !w.lastRescanAt.IsZero() && now.Sub(w.lastRescanAt) < rescanInterval {
		return
	}
	w.lastRescanAt = now

	inputs := w.listInputs()

	if w.connected {
		for _, n := range inputs {
			if n == w.selectedName {
				return
			}
		}
		w.logger.Warn("midi: device disappeared", "device", w.selectedName)
		w.closeConn()
		w.lastRescanAt = time.Time{}
		if w.onDisconnect != nil {
			go w.onDisconnect()
		}
		return
	}

	if len(inputs) == 0 {
		return
	}
	cand, ok := pickPreferred(inputs, w.preferred)
	if !ok {
		w.logger.Debug("midi: no preferred input", "devices", strings.Join(inputs, ", "))
		return
	}
	if err := w.openByName(cand); err != nil {
		w.logger.Error("midi: connect failed", "device", cand, "err", err)
	}
}

func (w *Watcher) listInputs() []string {
	ins, err := w.drv.Ins()
	if err != nil {
		w.logger.Error("midi: list inputs failed", "err", err)
		return nil
	}
	var names []string
	for _, in := range ins {
		name := in.String()
		if matchesAny(name, w.excluded) {
			w.logger.Debug("midi: input excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	w.logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

// pickPreferred returns the first input matching a preferred pattern, in
// pattern order. With no match a lone input is still accepted.
func pickPreferred(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}

func (w *Watcher) closeConn() {
	if w.stopFn != nil {
		w.stopFn()
		w.stopFn = nil
	}
	if w.inPort != nil {
		_ = w.inPort.Close()
		w.inPort = nil
	}
	w.connected = false
	w.selectedName = ""
}

func (w *Watcher) openByName(name string) error {
	ins, err := w.drv.Ins()
	if err != nil {
		return fault.Wrap(err, fmsg.With("list inputs"))
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return fault.New(fmt.Sprintf("input %q not found", name), ftag.With(ftag.NotFound))
	}
	if err := found.Open(); err != nil {
		return fault.Wrap(err, fmsg.WithDesc(fmt.Sprintf("open %q", name), "Could not open MIDI device "+name))
	}

	stop, err := gomidi.ListenTo(found, func(msg gomidi.Message, _ int32) {
		w.onMessage(msg.Bytes())
	}, gomidi.HandleError(func(listenErr error) {
		w.logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// closeConn must not run on the listener goroutine.
		go w.dropIfCurrent(name)
	}))
	if err != nil {
		_ = found.Close()
		return fault.Wrap(err, fmsg.With(fmt.Sprintf("listen %q", name)))
	}

	w.inPort = found
	w.stopFn = stop
	w.connected = true
	w.selectedName = name
	w.logger.Info("midi: connected", "device", name)
	return nil
}

func (w *Watcher) dropIfCurrent(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected || w.selectedName != name {
		return
	}
	w.closeConn()
	w.lastRescanAt = time.Time{}
	if w.onDisconnect != nil {
		go w.onDisconnect()
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
