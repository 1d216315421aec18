package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execBranch handles the Branch group (spec.md §4.3):
//
//	Jump(A=target)                      unconditional
//	JumpIfTrue(A=target)                pop a bool, jump if true
//	JumpIfFalse(A=target)                pop a bool, jump if false
//	JumpIfNeLit(A=target, B=const index) pop an int, jump if not equal to
//	                                      Constants[B].Int — the compiler's
//	                                      primitive for a `match`/`select`
//	                                      dispatch chain.
func (vm *Vm) execBranch(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpJump:
		vm.ip = int(inst.A)
		return nil

	case unit.OpJumpIfTrue:
		v := vm.stack.Pop()
		if v.Tag() != value.TagBool {
			return diag.New(diag.KindTypeMismatch, "branch condition must be bool, got %v", v.Tag())
		}
		if v.AsBool() {
			vm.ip = int(inst.A)
			return nil
		}

	case unit.OpJumpIfFalse:
		v := vm.stack.Pop()
		if v.Tag() != value.TagBool {
			return diag.New(diag.KindTypeMismatch, "branch condition must be bool, got %v", v.Tag())
		}
		if !v.AsBool() {
			vm.ip = int(inst.A)
			return nil
		}

	case unit.OpJumpIfNeLit:
		v := vm.stack.Pop()
		if v.Tag() != value.TagInt {
			return diag.New(diag.KindTypeMismatch, "JumpIfNeLit expects an int, got %v", v.Tag())
		}
		if v.AsInt() != vm.u.Constants[inst.B].Int {
			vm.ip = int(inst.A)
			return nil
		}
	}
	vm.ip++
	return nil
}
