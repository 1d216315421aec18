package exec

import (
	"math"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execArith handles the Arithmetic instruction group (spec.md §4.3): pop
// b then a (a pushed first), compute a OP b, push the result. Int/Int and
// Float/Float pairs take a fast built-in path; anything else — including a
// user type overloading `+`/`-`/`*`/`/` — routes through the matching
// ADD/SUB/MUL/DIV protocol (spec.md §4.4), since "every user-visible
// operator-like interaction routes through a protocol". Rem/shift/bitwise
// have no protocol equivalent in spec.md's non-exhaustive table and stay
// primitive-only.
func (vm *Vm) execArith(inst unit.Inst) error {
	b := vm.stack.Pop()
	a := vm.stack.Pop()

	var result value.Value
	var err error

	switch inst.Op {
	case unit.OpAdd:
		result, err = vm.dispatchOrNumeric(a, b, protocol.Add, addInt, addFloat)
	case unit.OpSub:
		result, err = vm.dispatchOrNumeric(a, b, protocol.Sub, subInt, subFloat)
	case unit.OpMul:
		result, err = vm.dispatchOrNumeric(a, b, protocol.Mul, mulInt, mulFloat)
	case unit.OpDiv:
		result, err = vm.dispatchOrNumeric(a, b, protocol.Div, divInt, divFloat)
	case unit.OpRem:
		result, err = numericOnly(a, b, remInt, remFloat)
	case unit.OpShl:
		result, err = intOnly(a, b, func(x, y int64) (int64, error) { return x << uint64(y), nil })
	case unit.OpShr:
		result, err = intOnly(a, b, func(x, y int64) (int64, error) { return x >> uint64(y), nil })
	case unit.OpBitAnd:
		result, err = intOnly(a, b, func(x, y int64) (int64, error) { return x & y, nil })
	case unit.OpBitOr:
		result, err = intOnly(a, b, func(x, y int64) (int64, error) { return x | y, nil })
	case unit.OpBitXor:
		result, err = intOnly(a, b, func(x, y int64) (int64, error) { return x ^ y, nil })
	}
	value.Drop(a)
	value.Drop(b)
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	vm.ip++
	return nil
}

// dispatchOrNumeric takes the Int/Float fast path when both operands are
// primitives of the same kind, otherwise dispatches the named protocol —
// a.TypeHashOf() is the receiver's type, matching spec.md §4.4's "given a
// receiver v and a protocol P".
func (vm *Vm) dispatchOrNumeric(a, b value.Value, proto typeid.Hash, intOp func(int64, int64) (int64, error), floatOp func(float64, float64) float64) (value.Value, error) {
	if a.Tag() == value.TagInt && b.Tag() == value.TagInt {
		r, err := intOp(a.AsInt(), b.AsInt())
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(r), nil
	}
	if a.Tag() == value.TagFloat && b.Tag() == value.TagFloat {
		return value.Float(floatOp(a.AsFloat(), b.AsFloat())), nil
	}
	return vm.protocols.Dispatch(a.TypeHashOf(), proto, []value.Value{a, b}, vm.callScriptSync)
}

func numericOnly(a, b value.Value, intOp func(int64, int64) (int64, error), floatOp func(float64, float64) (float64, error)) (value.Value, error) {
	if a.Tag() == value.TagInt && b.Tag() == value.TagInt {
		r, err := intOp(a.AsInt(), b.AsInt())
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(r), nil
	}
	if a.Tag() == value.TagFloat && b.Tag() == value.TagFloat {
		r, err := floatOp(a.AsFloat(), b.AsFloat())
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(r), nil
	}
	return value.Value{}, diag.New(diag.KindTypeMismatch, "cannot apply arithmetic to %v and %v", a.Tag(), b.Tag())
}

func intOnly(a, b value.Value, op func(int64, int64) (int64, error)) (value.Value, error) {
	if a.Tag() != value.TagInt || b.Tag() != value.TagInt {
		return value.Value{}, diag.New(diag.KindTypeMismatch, "expected int operands, got %v and %v", a.Tag(), b.Tag())
	}
	r, err := op(a.AsInt(), b.AsInt())
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(r), nil
}

func addInt(a, b int64) (int64, error) {
	r := a + b
	if ((a ^ r) & (b ^ r)) < 0 {
		return 0, diag.New(diag.KindIntegerOverflow, "integer overflow in %d + %d", a, b)
	}
	return r, nil
}

func subInt(a, b int64) (int64, error) {
	r := a - b
	if ((a ^ b) & (a ^ r)) < 0 {
		return 0, diag.New(diag.KindIntegerOverflow, "integer overflow in %d - %d", a, b)
	}
	return r, nil
}

func mulInt(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/a != b || (a == -1 && b == math.MinInt64) {
		return 0, diag.New(diag.KindIntegerOverflow, "integer overflow in %d * %d", a, b)
	}
	return r, nil
}

func divInt(a, b int64) (int64, error) {
	if b == 0 {
		return 0, diag.New(diag.KindDivisionByZero, "division by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, diag.New(diag.KindIntegerOverflow, "integer overflow in %d / %d", a, b)
	}
	return a / b, nil
}

func remInt(a, b int64) (int64, error) {
	if b == 0 {
		return 0, diag.New(diag.KindDivisionByZero, "division by zero")
	}
	return a % b, nil
}

func addFloat(a, b float64) float64          { return a + b }
func subFloat(a, b float64) float64          { return a - b }
func mulFloat(a, b float64) float64          { return a * b }
func divFloat(a, b float64) float64          { return a / b }
func remFloat(a, b float64) (float64, error) { return math.Mod(a, b), nil }
