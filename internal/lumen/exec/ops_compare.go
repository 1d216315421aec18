package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execCompare handles the Comparison group (spec.md §4.3): pop b then a,
// push a Bool. EQ/NEQ fall back to value.Equal's identity semantics when
// no EQ protocol implementation exists; ordering has no such builtin
// fallback for reference types — "cross-type inequality between
// incompatible types is a panic" per spec.md's table, generalized here to
// "no protocol, no ordering".
func (vm *Vm) execCompare(inst unit.Inst) error {
	b := vm.stack.Pop()
	a := vm.stack.Pop()

	var result bool
	var err error

	switch inst.Op {
	case unit.OpEq:
		result, err = vm.equal(a, b)
	case unit.OpNeq:
		result, err = vm.equal(a, b)
		result = !result
	case unit.OpLt, unit.OpLe, unit.OpGt, unit.OpGe:
		result, err = vm.order(a, b, inst.Op)
	}
	value.Drop(a)
	value.Drop(b)
	if err != nil {
		return err
	}
	vm.stack.Push(value.Bool(result))
	vm.ip++
	return nil
}

func (vm *Vm) equal(a, b value.Value) (bool, error) {
	if !a.Tag().IsImmediate() {
		r, err := vm.protocols.Dispatch(a.TypeHashOf(), protocol.Eq, []value.Value{a, b}, vm.callScriptSync)
		if err == nil {
			return r.AsBool(), nil
		}
		if !diag.Is(err, diag.KindProtocolMissing) {
			return false, err
		}
	}
	return value.Equal(a, b)
}

func (vm *Vm) order(a, b value.Value, op unit.Opcode) (bool, error) {
	if a.Tag() == value.TagInt && b.Tag() == value.TagInt {
		switch {
		case a.AsInt() < b.AsInt():
			return compareResult(-1, op), nil
		case a.AsInt() > b.AsInt():
			return compareResult(1, op), nil
		default:
			return compareResult(0, op), nil
		}
	}
	if a.Tag() == value.TagFloat && b.Tag() == value.TagFloat {
		switch {
		case a.AsFloat() < b.AsFloat():
			return compareResult(-1, op), nil
		case a.AsFloat() > b.AsFloat():
			return compareResult(1, op), nil
		default:
			return compareResult(0, op), nil
		}
	}
	r, err := vm.protocols.Dispatch(a.TypeHashOf(), protocol.Cmp, []value.Value{a, b}, vm.callScriptSync)
	if err != nil {
		return false, err
	}
	if r.Tag() != value.TagInt {
		return false, diag.New(diag.KindTypeMismatch, "CMP protocol must return an int, got %v", r.Tag())
	}
	return compareResult(int(r.AsInt()), op), nil
}

func compareResult(cmp int, op unit.Opcode) bool {
	switch op {
	case unit.OpLt:
		return cmp < 0
	case unit.OpLe:
		return cmp <= 0
	case unit.OpGt:
		return cmp > 0
	case unit.OpGe:
		return cmp >= 0
	default:
		return false
	}
}

// execNot handles the sole Logical opcode; `and`/`or` are realized by the
// compiler via branches, not opcodes (spec.md §4.3).
func (vm *Vm) execNot() error {
	v := vm.stack.Pop()
	if v.Tag() != value.TagBool {
		return diag.New(diag.KindTypeMismatch, "NOT expects a bool, got %v", v.Tag())
	}
	vm.stack.Push(value.Bool(!v.AsBool()))
	vm.ip++
	return nil
}
