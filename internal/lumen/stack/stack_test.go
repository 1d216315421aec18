package stack_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/stack"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

func TestPushPopOrder(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(1))
	s.Push(value.Int(2))
	s.Push(value.Int(3))

	if got := s.Pop().AsInt(); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
	if got := s.Pop().AsInt(); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
	if s.Len() != 1 {
		t.Fatalf("got len %d, want 1", s.Len())
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(7))
	if got := s.Peek(0).AsInt(); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
	if s.Len() != 1 {
		t.Fatalf("peek must not change depth, got %d", s.Len())
	}
}

func TestPopEmptyPanics(t *testing.T) {
	defer func() {
		r := recover()
		if !diag.Is(asErr(r), diag.KindStackUnderflow) {
			t.Fatalf("got %v, want StackUnderflow panic", r)
		}
	}()
	stack.New().Pop()
}

func TestPopNRestoresPushOrder(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(1))
	s.Push(value.Int(2))
	s.Push(value.Int(3))
	got := s.PopN(2)
	if got[0].AsInt() != 2 || got[1].AsInt() != 3 {
		t.Fatalf("got %v, want [2 3]", got)
	}
	if s.Len() != 1 {
		t.Fatalf("got len %d, want 1", s.Len())
	}
}

func TestCallFrameLifecycle(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(10)) // argument

	s.PushFrame(stack.Frame{Base: 0, Origin: 5, Destination: 100, Kind: stack.FrameCall})
	if s.Depth() != 1 {
		t.Fatalf("got depth %d, want 1", s.Depth())
	}
	f := s.CurrentFrame()
	if f.Origin != 5 || f.Destination != 100 {
		t.Fatalf("got %+v, want Origin=5 Destination=100", f)
	}

	popped := s.PopFrame()
	if popped.Origin != 5 {
		t.Fatalf("got %d, want 5", popped.Origin)
	}
	if s.Depth() != 0 {
		t.Fatalf("got depth %d, want 0", s.Depth())
	}
}

func TestReturnWithNoFramePanics(t *testing.T) {
	defer func() {
		r := recover()
		if !diag.Is(asErr(r), diag.KindStackUnderflow) {
			t.Fatalf("got %v, want StackUnderflow panic", r)
		}
	}()
	stack.New().PopFrame()
}

func TestTruncateDropsEveryValue(t *testing.T) {
	s := stack.New()
	h := value.NewHeap(nil)
	a, _ := h.NewString("a")
	b, _ := h.NewString("b")
	base := s.Len()
	s.Push(a)
	s.Push(b)

	s.Truncate(base)
	if s.Len() != base {
		t.Fatalf("got len %d, want %d", s.Len(), base)
	}
	if value.StrongCount(a) != 0 || value.StrongCount(b) != 0 {
		t.Fatal("expected both values dropped by Truncate")
	}
}

func asErr(r any) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return err
	}
	return nil
}
