// Package voice tracks the sounding voices of one engine.
//
// The control side inserts and removes voices by note number under a short
// mutex. The render side reads an immutable snapshot of the running voices
// through an atomic pointer and never takes the lock; a voice retired while a
// buffer is being rendered stops at the next buffer boundary.
package voice

import (
	"sync"
	"sync/atomic"
)

// Table maps note numbers to voices and keeps the list of running generators.
// A running voice is not necessarily in the note map: released voices play
// their tail after removal, and voices replaced by a re-trigger keep running.
type Table[V comparable] struct {
	mu      sync.Mutex
	byNote  map[int]V
	orphans map[V]int
	running atomic.Pointer[[]V]
}

func NewTable[V comparable]() *Table[V] {
	t := &Table[V]{
		byNote:  make(map[int]V),
		orphans: make(map[V]int),
	}
	t.running.Store(&[]V{})
	return t
}

// Insert registers v under note and starts it. If note already had a voice
// the entry is replaced but the previous generator is left running and is
// reported by Orphans until retired.
func (t *Table[V]) Insert(note int, v V) (prev V, replaced bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, replaced = t.byNote[note]
	if replaced {
		t.orphans[prev] = note
	}
	t.byNote[note] = v
	cur := *t.running.Load()
	next := make([]V, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, v)
	t.running.Store(&next)
	return prev, replaced
}

// Remove drops the note entry. The voice keeps running until Retire.
func (t *Table[V]) Remove(note int) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.byNote[note]
	if ok {
		delete(t.byNote, note)
	}
	return v, ok
}

func (t *Table[V]) Lookup(note int) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.byNote[note]
	return v, ok
}

// Each calls fn for every registered note while holding the lock, so all
// voices observe the same control step. fn must not call back into t.
func (t *Table[V]) Each(fn func(note int, v V)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for n, v := range t.byNote {
		fn(n, v)
	}
}

// Notes returns the registered note numbers in no particular order.
func (t *Table[V]) Notes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.byNote))
	for n := range t.byNote {
		out = append(out, n)
	}
	return out
}

// Retire stops rendering v.
func (t *Table[V]) Retire(v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retireLocked(func(x V) bool { return x == v })
}

// Reap retires every running voice for which done reports true and returns
// how many were removed.
func (t *Table[V]) Reap(done func(V) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retireLocked(done)
}

func (t *Table[V]) retireLocked(match func(V) bool) int {
	cur := *t.running.Load()
	next := make([]V, 0, len(cur))
	for _, v := range cur {
		if match(v) {
			delete(t.orphans, v)
			continue
		}
		next = append(next, v)
	}
	removed := len(cur) - len(next)
	if removed > 0 {
		t.running.Store(&next)
	}
	return removed
}

// Running returns the render snapshot. Callers must not modify it.
func (t *Table[V]) Running() []V {
	return *t.running.Load()
}

// Len returns the number of registered notes.
func (t *Table[V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byNote)
}

// Orphans returns voices that were displaced by a re-trigger of the same note
// and are still running without a table entry.
func (t *Table[V]) Orphans() []V {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]V, 0, len(t.orphans))
	for v := range t.orphans {
		out = append(out, v)
	}
	return out
}
