package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// vectorIterPayload is the fast-path iterator for a uniquely-owned vector
// (spec.md §4.3's "for over a vector needn't round-trip through a
// protocol"): IntoIter takes the vector's items outright rather than
// cloning them one at a time.
type vectorIterPayload struct {
	items []value.Value
	pos   int
}

func (p *vectorIterPayload) Drop() {
	for _, v := range p.items[p.pos:] {
		value.Drop(v)
	}
}

// execIter handles IntoIter/Next (spec.md §4.3). A vector iterator is a
// fast path taken only when the vector is the sole owner of its cell;
// everything else — including a shared vector — routes through
// protocol.IntoIter/Next.
func (vm *Vm) execIter(inst unit.Inst) error {
	switch inst.Op {
	case unit.OpIntoIter:
		if err := vm.execIntoIter(); err != nil {
			return err
		}
	case unit.OpNext:
		if err := vm.execNext(); err != nil {
			return err
		}
	}
	vm.ip++
	return nil
}

func (vm *Vm) execIntoIter() error {
	recv := vm.stack.Pop()

	if recv.Tag() == value.TagVector {
		if payload, err := value.Take(recv); err == nil {
			vp := payload.(*value.VectorPayload)
			v, err := vm.heap.NewTagged(value.TagIterator, 0, &vectorIterPayload{items: vp.Items}, 8)
			if err != nil {
				return err
			}
			vm.stack.Push(v)
			return nil
		}
	}

	result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.IntoIter, []value.Value{recv}, vm.callScriptSync)
	value.Drop(recv)
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	return nil
}

func (vm *Vm) execNext() error {
	recv := vm.stack.Pop()

	if recv.Tag() == value.TagIterator {
		guard, payload, err := value.BorrowMut(recv)
		if err != nil {
			return err
		}
		vip, ok := payload.(*vectorIterPayload)
		if !ok {
			guard.Release()
			return vm.dispatchNext(recv)
		}
		var out value.Value
		if vip.pos < len(vip.items) {
			out, err = vm.heap.NewSome(vip.items[vip.pos])
			vip.pos++
		} else {
			out, err = vm.heap.NewNone()
		}
		guard.Release()
		if err != nil {
			return err
		}
		value.Drop(recv)
		vm.stack.Push(out)
		return nil
	}

	return vm.dispatchNext(recv)
}

func (vm *Vm) dispatchNext(recv value.Value) error {
	result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.Next, []value.Value{recv}, vm.callScriptSync)
	value.Drop(recv)
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	return nil
}
