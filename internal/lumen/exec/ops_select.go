package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/selectx"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execSelect implements the `select` opcode sequence a compiler emits for
// spec.md §4.6:
//
//	EnterSelect(A=n)  pop n future/generator/stream values (already pushed
//	                  in source order) and stage them as select arms
//	AwaitArm()        resolve the staged arms via selectx.Resolve, which
//	                  polls concurrently, picks the smallest-index ready
//	                  arm, and cancels the rest
//	DispatchArm()     push the winning arm's source-order index (Int),
//	                  then its resolved value, for the surrounding
//	                  compare-and-bind code to branch on
func (vm *Vm) execSelect(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpEnterSelect:
		n := int(inst.A)
		raw := vm.stack.PopN(n)
		arms := make([]selectx.Arm, n)
		for i, v := range raw {
			f, err := vm.futureOf(v)
			if err != nil {
				return err
			}
			arms[i] = selectx.Arm{Future: f, Index: i}
		}
		vm.pendingArms = arms

	case unit.OpAwaitArm:
		if vm.pendingArms == nil {
			return diag.New(diag.KindMalformedUnit, "AwaitArm with no arms staged by EnterSelect")
		}
		res, err := selectx.Resolve(vm.pendingArms)
		if err != nil {
			return err
		}
		vm.pendingArms = nil
		vm.pendingResult = &res

	case unit.OpDispatchArm:
		if vm.pendingResult == nil {
			return diag.New(diag.KindMalformedUnit, "DispatchArm with no select result from AwaitArm")
		}
		r := *vm.pendingResult
		vm.pendingResult = nil
		vm.stack.Push(value.Int(int64(r.Index)))
		vm.stack.Push(r.Value)
	}
	vm.ip++
	return nil
}
