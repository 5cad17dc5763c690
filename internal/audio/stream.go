// Package audio pulls stereo float32 frames from a SampleSource and hands
// them to the platform audio device.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
)

// SampleSource fills dst with interleaved stereo samples. It is called from
// the audio device goroutine.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to io.Reader producing 32-bit float
// little-endian stereo frames.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	// Sources mix into dst, so the previous read must not leak through.
	clear(r.buf)
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// Output is a running audio device.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	Stop() error
}

type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

var Backends = []Backend{BackendEbiten, BackendOto}

func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case "":
		return BackendEbiten, nil
	case BackendEbiten, BackendOto:
		return b, nil
	default:
		return "", fmt.Errorf("unknown audio backend %q (expected ebiten|oto)", name)
	}
}

// Open starts a paused output on backend. The device is shared per process
// and bound to the first sample rate requested.
func Open(backend Backend, sampleRate int, source SampleSource) (Output, error) {
	switch backend {
	case BackendEbiten, "":
		p, err := NewPlayer(sampleRate, source)
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendOto:
		p, err := NewOtoPlayer(sampleRate, source)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
