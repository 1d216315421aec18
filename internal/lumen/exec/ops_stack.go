package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execStack handles the Stack instruction group (spec.md §4.3):
//
//	PushConst(A=const index)       push Constants[A] as a Value
//	Copy(A=frame-relative offset)  clone and push stack[frameBase+A]
//	Pop()                          drop the top value
//	Swap()                         swap the top two values
//	CleanPreserveTop(A=n)          drop n slots beneath the top
func (vm *Vm) execStack(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpPushConst:
		v, err := vm.pushConstant(inst.A)
		if err != nil {
			return err
		}
		vm.stack.Push(v)

	case unit.OpCopy:
		idx := vm.frameBase() + int(inst.A)
		vm.stack.Push(vm.stack.At(idx).Clone())

	case unit.OpPop:
		value.Drop(vm.stack.Pop())

	case unit.OpSwap:
		top := vm.stack.Pop()
		below := vm.stack.Pop()
		vm.stack.Push(top)
		vm.stack.Push(below)

	case unit.OpCleanPreserveTop:
		top := vm.stack.Pop()
		vm.stack.Truncate(vm.stack.Len() - int(inst.A))
		vm.stack.Push(top)
	}
	vm.ip++
	return nil
}

// pushConstant materializes Constants[idx] as a fresh Value, charging any
// heap allocation it requires against the budget (spec.md §4.7).
func (vm *Vm) pushConstant(idx int32) (value.Value, error) {
	c := vm.u.Constants[idx]
	switch c.Kind {
	case unit.ConstString:
		return vm.heap.NewString(c.Str)
	case unit.ConstBytes:
		return vm.heap.NewBytes(c.Bytes)
	case unit.ConstInt:
		return value.Int(c.Int), nil
	case unit.ConstFloat:
		return value.Float(c.Float), nil
	default:
		return value.Unit, nil
	}
}
