package value_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

func TestImmediateRoundTrip(t *testing.T) {
	v := value.Int(42)
	if v.AsInt() != 42 {
		t.Fatalf("got %d, want 42", v.AsInt())
	}
	// A Copy-style primitive assigned to a new binding and back compares
	// equal to the original (spec.md §8.2).
	w := v
	eq, err := value.Equal(v, w)
	if err != nil || !eq {
		t.Fatalf("got (%v, %v), want (true, nil)", eq, err)
	}
}

func TestBorrowRefShared(t *testing.T) {
	h := value.NewHeap(nil)
	s, err := h.NewString("hello")
	if err != nil {
		t.Fatal(err)
	}
	g1, _, err := value.BorrowRef(s)
	if err != nil {
		t.Fatal(err)
	}
	g2, _, err := value.BorrowRef(s)
	if err != nil {
		t.Fatalf("second concurrent read borrow should succeed: %v", err)
	}
	g1.Release()
	g2.Release()
}

func TestBorrowMutExclusive(t *testing.T) {
	h := value.NewHeap(nil)
	s, _ := h.NewString("hello")
	g, _, err := value.BorrowMut(s)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := value.BorrowRef(s); err == nil {
		t.Fatal("expected read borrow to fail while exclusively borrowed")
	}
	g.Release()
	if _, _, err := value.BorrowRef(s); err != nil {
		t.Fatalf("expected read borrow to succeed after release: %v", err)
	}
}

func TestTakeThenReadFails(t *testing.T) {
	h := value.NewHeap(nil)
	s, _ := h.NewString("hello")

	if _, err := value.Take(s); err != nil {
		t.Fatal(err)
	}
	if _, _, err := value.BorrowRef(s); !diag.Is(err, diag.KindNotReadable) {
		t.Fatalf("got %v, want NotReadable", err)
	}
	if _, _, err := value.BorrowMut(s); !diag.Is(err, diag.KindNotWritable) {
		t.Fatalf("got %v, want NotWritable", err)
	}
}

func TestTakeRequiresSoleOwner(t *testing.T) {
	h := value.NewHeap(nil)
	s, _ := h.NewString("hello")
	clone := s.Clone()
	defer value.Drop(clone)

	if _, err := value.Take(s); !diag.Is(err, diag.KindNotOwned) {
		t.Fatalf("got %v, want NotOwned", err)
	}
}

func TestCloneIncrementsStrongCount(t *testing.T) {
	h := value.NewHeap(nil)
	s, _ := h.NewString("hello")
	if value.StrongCount(s) != 1 {
		t.Fatalf("got %d, want 1", value.StrongCount(s))
	}
	clone := s.Clone()
	if value.StrongCount(s) != 2 {
		t.Fatalf("got %d, want 2", value.StrongCount(s))
	}
	value.Drop(clone)
	if value.StrongCount(s) != 1 {
		t.Fatalf("got %d, want 1", value.StrongCount(s))
	}
}

func TestEqualCrossTypePanics(t *testing.T) {
	_, err := value.Equal(value.Int(1), value.True)
	if !diag.Is(err, diag.KindTypeMismatch) {
		t.Fatalf("got %v, want TypeMismatch", err)
	}
}

type chargeRecorder struct{ charged int }

func (c *chargeRecorder) Charge(n int) error { c.charged += n; return nil }

func TestHeapChargesAllocations(t *testing.T) {
	rec := &chargeRecorder{}
	h := value.NewHeap(rec)
	if _, err := h.NewString("hello"); err != nil {
		t.Fatal(err)
	}
	if rec.charged == 0 {
		t.Fatal("expected a non-zero charge for a string allocation")
	}
}

type refusingAllocator struct{}

func (refusingAllocator) Charge(int) error {
	return diag.New(diag.KindAllocationError, "limit exceeded")
}

func TestHeapAllocationFailureSurfaces(t *testing.T) {
	h := value.NewHeap(refusingAllocator{})
	if _, err := h.NewString("hello"); !diag.Is(err, diag.KindAllocationError) {
		t.Fatalf("got %v, want AllocationError", err)
	}
}

func TestIsReadableAfterDrop(t *testing.T) {
	h := value.NewHeap(nil)
	s, _ := h.NewString("hello")
	value.Drop(s)
	// s's cell had strong count 1; after Drop the payload is freed but the
	// access flag (held on the now-dangling cell struct) remains whatever
	// it was — real "NotReadable after drop" (spec.md §8.3) is enforced at
	// the binding level by the compiler invalidating the place, not by the
	// cell itself since Go does not let us poison freed memory. The VM's
	// CLEAN/drop bookkeeping therefore tracks liveness per-binding; this
	// test documents that boundary rather than re-asserting it here.
}
