package cache

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestMemory_PutGet(t *testing.T) {
	m := NewMemory(1 << 20)

	if err := m.Put("a", []byte("alpha")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := m.Put("b", []byte("beta")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok := m.Get("a")
	if !ok || !bytes.Equal(got, []byte("alpha")) {
		t.Errorf("Get(a) = %q, %v", got, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) reported a hit")
	}

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
	if stats.Items != 2 || stats.Size != int64(len("alpha")+len("beta")) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMemory_EvictsLRU(t *testing.T) {
	m := NewMemory(100)

	a := make([]byte, 40)
	b := make([]byte, 40)
	c := make([]byte, 40)

	if err := m.Put("a", a); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("b", b); err != nil {
		t.Fatal(err)
	}

	// touch a so b becomes the cold end
	if _, ok := m.Get("a"); !ok {
		t.Fatal("a missing before eviction")
	}

	if err := m.Put("c", c); err != nil {
		t.Fatal(err)
	}

	if _, ok := m.Get("b"); ok {
		t.Error("b survived, want it evicted as least recently used")
	}
	if _, ok := m.Get("a"); !ok {
		t.Error("a evicted, want it kept")
	}
	if _, ok := m.Get("c"); !ok {
		t.Error("c evicted right after Put")
	}
	if got := m.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestMemory_UpdateExisting(t *testing.T) {
	m := NewMemory(1 << 20)

	if err := m.Put("k", make([]byte, 40)); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("k", []byte("short")); err != nil {
		t.Fatal(err)
	}

	got, ok := m.Get("k")
	if !ok || string(got) != "short" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if m.Len() != 1 || m.Size() != int64(len("short")) {
		t.Errorf("len=%d size=%d after update", m.Len(), m.Size())
	}
}

func TestMemory_RejectsOversizedValue(t *testing.T) {
	m := NewMemory(10)

	if err := m.Put("big", make([]byte, 11)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Put = %v, want ErrTooLarge", err)
	}
	if m.Size() != 0 {
		t.Errorf("Size = %d after rejected Put", m.Size())
	}
}

func TestMemory_Prune(t *testing.T) {
	m := NewMemory(1 << 20)
	if err := m.Put("a", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := m.Put("b", []byte("two")); err != nil {
		t.Fatal(err)
	}

	if n := m.prune(time.Hour); n != 0 {
		t.Errorf("prune(1h) removed %d fresh entries", n)
	}
	if n := m.prune(0); n != 2 {
		t.Errorf("prune(0) removed %d entries, want 2", n)
	}
	if m.Len() != 0 || m.Size() != 0 {
		t.Errorf("len=%d size=%d after prune", m.Len(), m.Size())
	}
}

func TestMemory_Clear(t *testing.T) {
	m := NewMemory(1 << 20)
	if err := m.Put("a", []byte("data")); err != nil {
		t.Fatal(err)
	}
	m.Clear()

	if m.Len() != 0 || m.Size() != 0 {
		t.Errorf("len=%d size=%d after Clear", m.Len(), m.Size())
	}
	if _, ok := m.Get("a"); ok {
		t.Error("entry survived Clear")
	}
}
