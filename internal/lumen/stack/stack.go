// Package stack implements lumen's value stack and call-frame activation
// records (spec.md §4.2). The stack is a single contiguous slice of Values
// shared by every call frame; each frame only records where its window into
// that slice begins and where execution resumes on return.
package stack

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// FrameKind distinguishes how a frame's return is driven, mirroring the
// call-kind classification also carried on value.FunctionPayload.
type FrameKind uint8

const (
	FrameCall FrameKind = iota
	FrameGenerator
	FrameAsync
	FrameStream
)

// Frame is a single activation record. Origin/Destination follow the
// return-address/target-address vocabulary of a jump-stack entry: Origin is
// where control resumes after RETURN, Destination is the entry instruction
// pointer of the callee.
type Frame struct {
	Base        int       // index into Stack.values where this frame's locals begin
	Origin      int       // instruction pointer to resume at on return
	Destination int       // instruction pointer this frame began executing at
	Kind        FrameKind
	LocalCount  int // number of local bindings below the operand stack in this frame
}

// Stack holds the VM's operand values and its call-frame chain. Both grow
// and shrink in lockstep with CALL/RETURN; the frame chain never
// interleaves with another Vm's stack since each Vm owns exactly one.
type Stack struct {
	values []value.Value
	frames []Frame
}

func New() *Stack {
	return &Stack{
		values: make([]value.Value, 0, 256),
		frames: make([]Frame, 0, 32),
	}
}

func (s *Stack) Len() int { return len(s.values) }

func (s *Stack) Push(v value.Value) { s.values = append(s.values, v) }

// Pop removes and returns the top value. Panics with diag.KindStackUnderflow
// if the stack is empty — the compiler is assumed to emit balanced
// instruction sequences, so an underflow here indicates a bytecode
// verification gap rather than a recoverable script-level error.
func (s *Stack) Pop() value.Value {
	n := len(s.values)
	if n == 0 {
		panic(diag.New(diag.KindStackUnderflow, "pop from empty stack"))
	}
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v
}

// Peek returns the value at depth below the top (0 is the top itself)
// without removing it.
func (s *Stack) Peek(depth int) value.Value {
	n := len(s.values)
	if depth < 0 || depth >= n {
		panic(diag.New(diag.KindStackUnderflow, "peek out of range at depth %d", depth))
	}
	return s.values[n-1-depth]
}

// PopN removes and returns the top n values in push order (oldest first).
func (s *Stack) PopN(n int) []value.Value {
	l := len(s.values)
	if n < 0 || n > l {
		panic(diag.New(diag.KindStackUnderflow, "popN(%d) exceeds stack depth %d", n, l))
	}
	out := make([]value.Value, n)
	copy(out, s.values[l-n:])
	s.values = s.values[:l-n]
	return out
}

// At returns the value at absolute stack index idx, used for local-binding
// access relative to the current frame's Base.
func (s *Stack) At(idx int) value.Value { return s.values[idx] }

// Set overwrites the value at absolute stack index idx, dropping whatever
// was previously there first (spec.md §4.1 drop-on-overwrite).
func (s *Stack) Set(idx int, v value.Value) {
	value.Drop(s.values[idx])
	s.values[idx] = v
}

// Truncate drops every value at or above absolute index base, in reverse
// order, then shrinks the stack to that length. Used by RETURN's frame
// teardown and by CleanPreserveTop. When the instruction loop stops on a
// panic it returns the error without calling Truncate, so the values
// still on the stack are not dropped.
func (s *Stack) Truncate(base int) {
	for i := len(s.values) - 1; i >= base; i-- {
		value.Drop(s.values[i])
	}
	s.values = s.values[:base]
}

// PushFrame begins a new activation. base is the absolute stack index where
// the callee's locals start (typically the current length minus the
// argument count already pushed by the caller).
func (s *Stack) PushFrame(f Frame) { s.frames = append(s.frames, f) }

// PopFrame removes and returns the innermost frame. Panics with
// diag.KindStackUnderflow if there is no active frame — RETURN with an
// empty frame chain is a bytecode verification gap.
func (s *Stack) PopFrame() Frame {
	n := len(s.frames)
	if n == 0 {
		panic(diag.New(diag.KindStackUnderflow, "return with no active call frame"))
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

// CurrentFrame returns the innermost active frame without removing it.
func (s *Stack) CurrentFrame() Frame {
	n := len(s.frames)
	if n == 0 {
		panic(diag.New(diag.KindStackUnderflow, "no active call frame"))
	}
	return s.frames[n-1]
}

func (s *Stack) Depth() int { return len(s.frames) }

// Frames returns a copy of the active frame chain, innermost last. Used by
// the exec package's Snapshotter implementation to capture a Vm's resumable
// state without exposing the live slice to mutation.
func (s *Stack) Frames() []Frame {
	return append([]Frame(nil), s.frames...)
}

// Restore rebuilds a Stack from a previously captured value slice and frame
// chain, as produced by a Vm snapshot's Reify step.
func Restore(values []value.Value, frames []Frame) *Stack {
	return &Stack{values: values, frames: frames}
}
