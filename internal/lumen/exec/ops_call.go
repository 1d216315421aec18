package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/stack"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execCall handles the Call group (spec.md §4.2, §4.3):
//
//	CallHash(A=const index of a type-hash, B=argcount)
//	CallOffset(A=entry ip, B=argcount, C=unit.CallKind)   compile-time-known
//	CallValue(A=argcount)                                  function on top
//	TailCall(A=const index of a type-hash, B=argcount)
//
// TailCall is accepted but, in this implementation, executes exactly like
// CallHash rather than reusing the caller's stack slot — spec.md marks
// tail-call as optional, and the stack-space optimization isn't load-
// bearing for any of the spec's semantics, only its memory profile.
func (vm *Vm) execCall(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpCallHash, unit.OpTailCall:
		hash := vm.constHash(inst.A)
		argcount := int(inst.B)
		if fd, ok := vm.u.Function(hash); ok {
			return vm.invokeScript(fd, argcount)
		}
		if ne, ok := vm.rc.Function(hash); ok {
			return vm.invokeNative(ne, argcount)
		}
		return diag.New(diag.KindUnknownFunction, "no function registered for hash %#x", hash)

	case unit.OpCallOffset:
		fd := unit.FunctionDesc{Entry: int(inst.A), ArgCount: int(inst.B), CallKind: unit.CallKind(inst.C)}
		return vm.invokeScript(fd, int(inst.B))

	case unit.OpCallValue:
		return vm.execCallValue(int(inst.A))
	}
	return diag.New(diag.KindMalformedUnit, "unreachable call opcode %s", inst.Op)
}

// invokeScript runs a script function per its call kind (spec.md §4.2):
// a plain call pushes a new frame and jumps into this same Vm; a
// generator/async/stream call instead constructs a fresh Vm snapshot and
// leaves a future/generator/stream value on the stack without running the
// body.
func (vm *Vm) invokeScript(fd unit.FunctionDesc, argcount int) error {
	if vm.stack.Len() < argcount {
		return diag.New(diag.KindStackUnderflow, "call needs %d arguments, only %d on stack", argcount, vm.stack.Len())
	}

	switch fd.CallKind {
	case unit.CallPlain:
		base := vm.stack.Len() - argcount
		vm.stack.PushFrame(stack.Frame{Base: base, Origin: vm.ip + 1, Destination: fd.Entry, Kind: stack.FrameCall, LocalCount: argcount})
		vm.ip = fd.Entry
		return nil

	case unit.CallGenerator, unit.CallAsync, unit.CallStream:
		args := vm.stack.PopN(argcount)
		sub := vm.spawn(fd.Entry, args)

		var fut *suspend.Future
		var tag value.Tag
		switch fd.CallKind {
		case unit.CallGenerator:
			fut, tag = suspend.NewGenerator(sub), value.TagGenerator
		case unit.CallAsync:
			fut, tag = suspend.NewAsync(sub), value.TagFuture
		case unit.CallStream:
			fut, tag = suspend.NewStream(sub), value.TagStream
		}
		v, err := vm.wrapFuture(tag, fut)
		if err != nil {
			return err
		}
		vm.stack.Push(v)
		vm.ip++
		return nil

	default:
		return diag.New(diag.KindMalformedUnit, "unknown call kind %d", fd.CallKind)
	}
}

func (vm *Vm) invokeNative(ne runtime.NativeEntry, argcount int) error {
	args := vm.stack.PopN(argcount)
	result, err := ne.Func(args)
	for _, a := range args {
		value.Drop(a)
	}
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	vm.ip++
	return nil
}

// execCallValue calls the function value on top of the stack (above its
// argcount arguments), per spec.md's "call-by-value (function pointer)".
// A `move` closure's captures were already folded into its FunctionPayload
// at construction; a plain closure's captures are shared handles, cloned
// here so the call's frame can own independent locals for them.
func (vm *Vm) execCallValue(argcount int) error {
	fnVal := vm.stack.Pop()
	guard, payload, err := value.BorrowRef(fnVal)
	if err != nil {
		return err
	}
	fp, ok := payload.(*value.FunctionPayload)
	if !ok {
		guard.Release()
		return diag.New(diag.KindTypeMismatch, "call-by-value target is not a function")
	}

	if fp.Native != nil {
		native := fp.Native
		guard.Release()
		args := vm.stack.PopN(argcount)
		result, callErr := native(args)
		for _, a := range args {
			value.Drop(a)
		}
		value.Drop(fnVal)
		if callErr != nil {
			return callErr
		}
		vm.stack.Push(result)
		vm.ip++
		return nil
	}

	fd, ok := vm.u.Function(fp.Hash)
	if !ok {
		guard.Release()
		return diag.New(diag.KindUnknownFunction, "closure's function hash %#x is not in the Unit", fp.Hash)
	}
	captures := make([]value.Value, len(fp.Captures))
	for i, c := range fp.Captures {
		captures[i] = c.Clone()
	}
	guard.Release()
	value.Drop(fnVal)

	for _, c := range captures {
		vm.stack.Push(c)
	}
	return vm.invokeScript(fd, argcount+len(captures))
}
