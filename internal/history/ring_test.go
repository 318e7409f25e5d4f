package history

import (
	"fmt"
	"testing"
)

func TestRingEmpty(t *testing.T) {
	r := NewRing(16)
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, ok := r.Get(0); ok {
		t.Error("Get(0) on empty ring should fail")
	}
}

func TestRingPushAndGet(t *testing.T) {
	r := NewRing(16)
	r.Push("first")
	r.Push("second")
	r.Push("third")

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	want := []string{"third", "second", "first"}
	for i, w := range want {
		got, ok := r.Get(i)
		if !ok || got != w {
			t.Errorf("Get(%d) = %q, %v; want %q, true", i, got, ok, w)
		}
	}
}

func TestRingSkipsEmptyLines(t *testing.T) {
	r := NewRing(16)
	r.Push("")
	if r.Len() != 0 {
		t.Errorf("Len() = %d after empty push, want 0", r.Len())
	}
}

func TestRingSkipsConsecutiveDuplicates(t *testing.T) {
	r := NewRing(16)
	r.Push("status")
	r.Push("status")
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	// Non-consecutive duplicates are kept.
	r.Push("reboot")
	r.Push("status")
	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(16)
	for i := 1; i <= 20; i++ {
		r.Push(fmt.Sprintf("cmd%d", i))
	}

	if r.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", r.Len())
	}

	// Most recent is the 20th push, oldest surviving entry is the 5th.
	if got, _ := r.Get(0); got != "cmd20" {
		t.Errorf("Get(0) = %q, want %q", got, "cmd20")
	}
	if got, _ := r.Get(15); got != "cmd5" {
		t.Errorf("Get(15) = %q, want %q", got, "cmd5")
	}
	if _, ok := r.Get(16); ok {
		t.Error("Get(16) should be out of range")
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing(0)
	if r.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", r.Cap())
	}
	r.Push("a")
	r.Push("b")
	if got, _ := r.Get(0); got != "b" {
		t.Errorf("Get(0) = %q, want %q", got, "b")
	}
}
