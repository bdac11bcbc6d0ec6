package refcount_test

import (
	"testing"

	"github.com/momentics/fiberio/internal/refcount"
)

func TestFinalizeOnLastRelease(t *testing.T) {
	finalized := 0
	h := refcount.New(2, func(v int) {
		finalized++
		if v != 42 {
			t.Errorf("finalizer got %d, want 42", v)
		}
	}, 42)

	h.Release()
	if finalized != 0 {
		t.Fatal("finalizer ran before last release")
	}
	if v, ok := h.Get(); !ok || v != 42 {
		t.Fatalf("Get = (%d, %v) after partial release", v, ok)
	}

	h.Release()
	if finalized != 1 {
		t.Fatalf("finalizer ran %d times, want 1", finalized)
	}
	if _, ok := h.Get(); ok {
		t.Error("Get succeeded on closed handle")
	}

	// Extra releases stay silent.
	h.Release()
	if finalized != 1 {
		t.Fatalf("finalizer ran %d times after extra release", finalized)
	}
}
