package voice

import (
	"sort"
	"sync"
	"testing"
)

type fakeVoice struct {
	note int
	done bool
}

func TestInsertRemoveRetire(t *testing.T) {
	tbl := NewTable[*fakeVoice]()
	v := &fakeVoice{note: 60}
	if _, replaced := tbl.Insert(60, v); replaced {
		t.Fatalf("first insert reported a replacement")
	}
	if got, ok := tbl.Lookup(60); !ok || got != v {
		t.Fatalf("lookup = %v, %v", got, ok)
	}
	if n := len(tbl.Running()); n != 1 {
		t.Fatalf("running = %d, want 1", n)
	}
	got, ok := tbl.Remove(60)
	if !ok || got != v {
		t.Fatalf("remove = %v, %v", got, ok)
	}
	if tbl.Len() != 0 {
		t.Fatalf("len = %d after remove", tbl.Len())
	}
	if n := len(tbl.Running()); n != 1 {
		t.Fatalf("removed voice should keep running until retired, running = %d", n)
	}
	tbl.Retire(v)
	if n := len(tbl.Running()); n != 0 {
		t.Fatalf("running = %d after retire", n)
	}
	if _, ok := tbl.Remove(60); ok {
		t.Fatalf("second remove should report missing")
	}
}

func TestRetriggerLeavesOrphanRunning(t *testing.T) {
	tbl := NewTable[*fakeVoice]()
	first := &fakeVoice{note: 60}
	second := &fakeVoice{note: 60}
	tbl.Insert(60, first)
	prev, replaced := tbl.Insert(60, second)
	if !replaced || prev != first {
		t.Fatalf("replace = %v, %v; want first, true", prev, replaced)
	}
	if tbl.Len() != 1 {
		t.Fatalf("len = %d, want 1", tbl.Len())
	}
	orphans := tbl.Orphans()
	if len(orphans) != 1 || orphans[0] != first {
		t.Fatalf("orphans = %v, want [first]", orphans)
	}
	if n := len(tbl.Running()); n != 2 {
		t.Fatalf("running = %d, want both generators", n)
	}
	tbl.Retire(first)
	if len(tbl.Orphans()) != 0 {
		t.Fatalf("retired orphan still reported")
	}
}

func TestReap(t *testing.T) {
	tbl := NewTable[*fakeVoice]()
	a, b, c := &fakeVoice{done: true}, &fakeVoice{}, &fakeVoice{done: true}
	tbl.Insert(1, a)
	tbl.Insert(2, b)
	tbl.Insert(3, c)
	if n := tbl.Reap(func(v *fakeVoice) bool { return v.done }); n != 2 {
		t.Fatalf("reaped %d, want 2", n)
	}
	running := tbl.Running()
	if len(running) != 1 || running[0] != b {
		t.Fatalf("running = %v, want [b]", running)
	}
}

func TestSnapshotIsStableWhileControlMutates(t *testing.T) {
	tbl := NewTable[*fakeVoice]()
	for n := 0; n < 8; n++ {
		tbl.Insert(n, &fakeVoice{note: n})
	}
	snap := tbl.Running()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < 8; n++ {
			if v, ok := tbl.Remove(n); ok {
				tbl.Retire(v)
			}
		}
	}()
	wg.Wait()
	for i, v := range snap {
		if v.note != i {
			t.Fatalf("snapshot mutated at %d: note %d", i, v.note)
		}
	}
	if n := len(tbl.Running()); n != 0 {
		t.Fatalf("running = %d, want 0", n)
	}
}

func TestNotes(t *testing.T) {
	tbl := NewTable[*fakeVoice]()
	for _, n := range []int{64, 60, 67} {
		tbl.Insert(n, &fakeVoice{note: n})
	}
	tbl.Remove(64)
	got := tbl.Notes()
	sort.Ints(got)
	if len(got) != 2 || got[0] != 60 || got[1] != 67 {
		t.Fatalf("notes = %v, want [60 67]", got)
	}
}
