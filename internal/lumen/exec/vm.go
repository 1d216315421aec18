// Package exec implements lumen's instruction loop: the decode-execute Vm
// that drives a compiled Unit's bytecode forward to its next suspension
// point or completion (spec.md §3.6, §4.3). A Vm implements suspend.Driver
// so it can back any of the four suspension-capable call kinds, and
// suspend.Snapshotter so a suspended Future can be reified for storage and
// reflected back into a resumable Vm later.
//
// Operand encoding is this implementation's own choice — spec.md only
// specifies opcode groups' effects, not their literal layout (§4.3). Each
// Inst carries up to three int32 operands (A, B, C); per-opcode meaning is
// documented alongside the corresponding exec* method.
package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/budget"
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/selectx"
	"code.hybscloud.com/lumen/internal/lumen/stack"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Vm owns one execution's instruction pointer, value stack, and call-frame
// chain over a shared, immutable Unit + RuntimeContext (spec.md §3.6). A Vm
// is not safe to share across goroutines during execution (spec.md §5); a
// host that wants concurrent executions constructs one Vm per task, cheaply
// sharing the underlying Unit/RuntimeContext/protocol table/budget/heap.
type Vm struct {
	u         *unit.Unit
	rc        *runtime.RuntimeContext
	protocols *protocol.Table
	heap      *value.Heap
	budget    *budget.Counter

	stack *stack.Stack
	ip    int

	// resumePending is set whenever Resume returned on a YIELD or AWAIT
	// signal; the next Resume call's sent value becomes that suspended
	// expression's result and is pushed before execution continues.
	resumePending bool

	// pendingArms/pendingResult hold in-flight `select` state across the
	// EnterSelect / AwaitArm / DispatchArm opcode sequence (spec.md §4.6).
	pendingArms   []selectx.Arm
	pendingResult *selectx.Result
}

// New constructs a Vm primed to begin execution at entry with args already
// placed as its initial frame's locals (base 0).
func New(u *unit.Unit, rc *runtime.RuntimeContext, protocols *protocol.Table, bud *budget.Counter, heap *value.Heap, entry int, args []value.Value) *Vm {
	vm := &Vm{u: u, rc: rc, protocols: protocols, heap: heap, budget: bud, stack: stack.New(), ip: entry}
	for _, a := range args {
		vm.stack.Push(a)
	}
	return vm
}

// spawn constructs a fresh Vm sharing this Vm's immutable collaborators and
// budget, used by CALL when a callee's call-kind is generator/async/stream
// (spec.md §4.2's "constructs the corresponding future/generator/stream
// value containing a fresh Vm snapshot").
func (vm *Vm) spawn(entry int, args []value.Value) *Vm {
	return New(vm.u, vm.rc, vm.protocols, vm.budget, vm.heap, entry, args)
}

// Resume implements suspend.Driver: it runs the instruction loop forward
// from wherever it last suspended until the body yields, awaits, completes,
// or panics.
func (vm *Vm) Resume(sent value.Value) (suspend.Signal, error) {
	if vm.resumePending {
		vm.stack.Push(sent)
		vm.resumePending = false
	}

	for {
		if vm.ip >= len(vm.u.Instructions) {
			return suspend.Signal{Kind: suspend.SignalDone, Value: vm.fallOffValue()}, nil
		}
		if err := vm.budget.Tick(); err != nil {
			return suspend.Signal{}, vm.annotate(err)
		}

		inst := vm.u.Instructions[vm.ip]
		switch inst.Op {
		case unit.OpYield:
			v := vm.stack.Pop()
			vm.ip++
			vm.resumePending = true
			return suspend.Signal{Kind: suspend.SignalYield, Value: v}, nil

		case unit.OpAwait:
			futVal := vm.stack.Pop()
			f, err := vm.futureOf(futVal)
			if err != nil {
				return suspend.Signal{}, vm.annotate(err)
			}
			vm.ip++
			vm.resumePending = true
			return suspend.Signal{Kind: suspend.SignalAwait, Awaiting: f}, nil

		case unit.OpReturn, unit.OpReturnUnit:
			var v value.Value
			if inst.Op == unit.OpReturn {
				v = vm.stack.Pop()
			} else {
				v = value.Unit
			}
			if vm.stack.Depth() == 0 {
				return suspend.Signal{Kind: suspend.SignalDone, Value: v}, nil
			}
			f := vm.stack.PopFrame()
			vm.stack.Truncate(f.Base)
			vm.stack.Push(v)
			vm.ip = f.Origin

		default:
			if err := vm.step(inst); err != nil {
				return suspend.Signal{}, vm.annotate(err)
			}
		}
	}
}

// fallOffValue synthesizes a body's implicit return value when execution
// runs past the last instruction without an explicit RETURN — the unit
// value if the stack is empty, otherwise whatever is left on top.
func (vm *Vm) fallOffValue() value.Value {
	if vm.stack.Len() == 0 {
		return value.Unit
	}
	return vm.stack.Pop()
}

// annotate tags a *diag.Panic with the instruction pointer it originated at
// and, if the Unit carries debug info, the source span for that offset
// (spec.md §6.4).
func (vm *Vm) annotate(err error) error {
	p, ok := err.(*diag.Panic)
	if !ok {
		return err
	}
	p = p.WithIP(vm.ip)
	if span, ok := vm.u.Span(vm.ip); ok {
		p = p.WithSpan(diag.Span{File: span.File, Line: span.Line, Col: span.Col})
	}
	return p
}

// step dispatches every opcode not handled directly by Resume's loop (the
// three suspension/return opcodes above, which need access to Resume's
// signal-returning control flow). Each exec* method is responsible for
// advancing vm.ip itself, so that branch opcodes can set it to a jump
// target instead.
func (vm *Vm) step(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpPushConst, unit.OpCopy, unit.OpPop, unit.OpSwap, unit.OpCleanPreserveTop:
		return vm.execStack(inst)
	case unit.OpAdd, unit.OpSub, unit.OpMul, unit.OpDiv, unit.OpRem,
		unit.OpShl, unit.OpShr, unit.OpBitAnd, unit.OpBitOr, unit.OpBitXor:
		return vm.execArith(inst)
	case unit.OpEq, unit.OpNeq, unit.OpLt, unit.OpLe, unit.OpGt, unit.OpGe:
		return vm.execCompare(inst)
	case unit.OpNot:
		return vm.execNot()
	case unit.OpJump, unit.OpJumpIfTrue, unit.OpJumpIfFalse, unit.OpJumpIfNeLit:
		return vm.execBranch(inst)
	case unit.OpCallHash, unit.OpCallOffset, unit.OpCallValue, unit.OpTailCall:
		return vm.execCall(inst)
	case unit.OpConstructTuple, unit.OpConstructVector, unit.OpConstructObject,
		unit.OpConstructStruct, unit.OpConstructVariant:
		return vm.execAggregate(inst)
	case unit.OpGet, unit.OpSet, unit.OpIndexGet, unit.OpIndexSet:
		return vm.execField(inst)
	case unit.OpIntoIter, unit.OpNext:
		return vm.execIter(inst)
	case unit.OpMatchBind, unit.OpDestructureTuple, unit.OpDestructureObject,
		unit.OpDestructureStruct, unit.OpDestructureVariant:
		return vm.execPattern(inst)
	case unit.OpResume:
		return vm.execResume()
	case unit.OpEnterSelect, unit.OpAwaitArm, unit.OpDispatchArm:
		return vm.execSelect(inst)
	default:
		return diag.New(diag.KindMalformedUnit, "unhandled opcode %s at ip %d", inst.Op, vm.ip)
	}
}

// frameBase returns the stack index the current frame's locals begin at —
// 0 for the entry body itself, since the entry call isn't recorded as a
// Frame (spec.md §4.2's frame chain only grows on nested CALLs).
func (vm *Vm) frameBase() int {
	if vm.stack.Depth() == 0 {
		return 0
	}
	return vm.stack.CurrentFrame().Base
}

func (vm *Vm) constHash(idx int32) typeid.Hash {
	return typeid.Hash(uint64(vm.u.Constants[idx].Int))
}

// futurePayload wraps a *suspend.Future as a heap-resident Value of tag
// TagFuture/TagGenerator/TagStream, so script code can hold, pass, and
// (via select/await) observe it like any other reference value. Dropping
// the wrapper cancels the future, per spec.md §5's "Dropping a Future
// cancels it".
type futurePayload struct{ f *suspend.Future }

func (p *futurePayload) Drop() { p.f.Cancel() }

func (vm *Vm) wrapFuture(tag value.Tag, f *suspend.Future) (value.Value, error) {
	return vm.heap.NewTagged(tag, 0, &futurePayload{f: f}, 32)
}

// WrapHostFuture constructs a TagFuture Value over a host-provided
// suspend.NativeAwaiter, the path by which host Go code hands script code
// a future it can await/select over just like one produced by an async fn
// call (spec.md §4.5's "host future"). Exported since such a caller holds
// a *value.Heap (e.g. pkg/lumen.Vm.Heap()), not a live Vm, to mint values
// with. A registered runtime.NativeFunc receives no heap, so it cannot
// call this itself.
func WrapHostFuture(h *value.Heap, n suspend.NativeAwaiter) (value.Value, error) {
	return h.NewTagged(value.TagFuture, 0, &futurePayload{f: suspend.NewHost(n)}, 32)
}

// futureOf extracts the *suspend.Future a Value wraps. The cell itself is
// deliberately not dropped here: AWAIT/select/resume observe and drive the
// future without taking ownership away from whatever scope still holds the
// script-level handle.
func (vm *Vm) futureOf(v value.Value) (*suspend.Future, error) {
	return FutureOf(v)
}

// FutureOf extracts the *suspend.Future a Value wraps, for a host that
// received a future/generator/stream value back from a Run call (spec.md
// §6.1) and wants to drive or inspect it directly — e.g. wrapping it in
// suspend.AsGenerator to call Next/Resume. It needs no Vm, since a
// futurePayload is self-contained once constructed.
func FutureOf(v value.Value) (*suspend.Future, error) {
	p, ok := value.PayloadOf(v)
	if !ok {
		return nil, diag.New(diag.KindTypeMismatch, "value is not a future/generator/stream")
	}
	fp, ok := p.(*futurePayload)
	if !ok {
		return nil, diag.New(diag.KindTypeMismatch, "value does not wrap a suspension future")
	}
	return fp.f, nil
}

// genStatePayload backs a TagGeneratorState Value: the result of one
// resume() call on a generator or stream (spec.md §4.5).
type genStatePayload struct {
	done  bool
	value value.Value
}

func (p *genStatePayload) Drop() { value.Drop(p.value) }

// callScriptSync runs a plain script function to completion within this
// Vm's own stack, used as protocol.Table.Dispatch's callScript hook so a
// Unit's own `impl Protocol for Type` blocks can be invoked from GET/SET/
// comparison/arithmetic opcodes. Protocol implementations may not suspend:
// a Unit that tries to yield/await/select from inside one is malformed
// (protocols are not suspension points, spec.md §5).
func (vm *Vm) callScriptSync(hash typeid.Hash, args []value.Value) (value.Value, error) {
	fd, ok := vm.u.Function(hash)
	if !ok {
		return value.Value{}, diag.New(diag.KindUnknownFunction, "no script function for protocol hash %#x", hash)
	}
	if fd.CallKind != unit.CallPlain {
		return value.Value{}, diag.New(diag.KindWrongCallKind, "protocol implementation must be a plain function")
	}

	savedIP := vm.ip
	targetDepth := vm.stack.Depth()
	base := vm.stack.Len()
	for _, a := range args {
		vm.stack.Push(a)
	}
	vm.stack.PushFrame(stack.Frame{Base: base, Origin: -1, Destination: fd.Entry, Kind: stack.FrameCall, LocalCount: len(args)})
	vm.ip = fd.Entry

	for {
		if vm.ip >= len(vm.u.Instructions) {
			vm.ip = savedIP
			return value.Value{}, diag.New(diag.KindMalformedUnit, "protocol function fell off its end without returning")
		}
		if err := vm.budget.Tick(); err != nil {
			vm.ip = savedIP
			return value.Value{}, err
		}
		inst := vm.u.Instructions[vm.ip]
		switch inst.Op {
		case unit.OpYield, unit.OpAwait, unit.OpEnterSelect:
			vm.ip = savedIP
			return value.Value{}, diag.New(diag.KindWrongCallKind, "protocol implementations may not suspend")
		case unit.OpReturn, unit.OpReturnUnit:
			var v value.Value
			if inst.Op == unit.OpReturn {
				v = vm.stack.Pop()
			} else {
				v = value.Unit
			}
			f := vm.stack.PopFrame()
			vm.stack.Truncate(f.Base)
			if vm.stack.Depth() == targetDepth {
				vm.ip = savedIP
				return v, nil
			}
			vm.stack.Push(v)
			vm.ip = f.Origin
		default:
			if err := vm.step(inst); err != nil {
				vm.ip = savedIP
				return value.Value{}, err
			}
		}
	}
}

// VmSnapshot is the opaque state Reify produces and Reflect consumes — a
// Vm's entire resumable state, independent of the live Vm that produced it
// (spec.md §3.7's "a future that is script-backed contains an owned Vm
// snapshot").
type VmSnapshot struct {
	ip            int
	stackValues   []value.Value
	frames        []stack.Frame
	resumePending bool
	budget        budget.Snapshot

	u         *unit.Unit
	rc        *runtime.RuntimeContext
	protocols *protocol.Table
	heap      *value.Heap
}

// Reify captures vm's current state as a storable snapshot, cloning every
// live stack value so the snapshot owns independent handles.
func (vm *Vm) Reify() any {
	values := make([]value.Value, vm.stack.Len())
	for i := 0; i < vm.stack.Len(); i++ {
		values[i] = vm.stack.At(i).Clone()
	}
	return &VmSnapshot{
		ip:            vm.ip,
		stackValues:   values,
		frames:        vm.stack.Frames(),
		resumePending: vm.resumePending,
		budget:        vm.budget.Snapshot(),
		u:             vm.u,
		rc:            vm.rc,
		protocols:     vm.protocols,
		heap:          vm.heap,
	}
}

// Reflect restores a Driver from a snapshot previously produced by Reify.
func (vm *Vm) Reflect(snapshot any) (suspend.Driver, error) {
	s, ok := snapshot.(*VmSnapshot)
	if !ok {
		return nil, diag.New(diag.KindMalformedUnit, "not a lumen Vm snapshot")
	}
	return &Vm{
		u:             s.u,
		rc:            s.rc,
		protocols:     s.protocols,
		heap:          s.heap,
		budget:        budget.Restore(s.budget),
		stack:         stack.Restore(s.stackValues, s.frames),
		ip:            s.ip,
		resumePending: s.resumePending,
	}, nil
}
