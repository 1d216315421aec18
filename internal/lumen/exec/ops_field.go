package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execField handles the Field/Index group (spec.md §4.3): GET/SET carry a
// field name as a constant-pool string; IndexGet/IndexSet take their index
// from the stack. Native struct/vector/object layouts take a fast path;
// everything else routes through the matching protocol (spec.md §4.4's
// "fast path for native struct layouts").
func (vm *Vm) execField(inst unit.Inst) error {
	var err error
	switch inst.Op {
	case unit.OpGet:
		err = vm.execGet(vm.u.Constants[inst.A].Str)
	case unit.OpSet:
		err = vm.execSet(vm.u.Constants[inst.A].Str)
	case unit.OpIndexGet:
		err = vm.execIndexGet()
	case unit.OpIndexSet:
		err = vm.execIndexSet()
	}
	if err != nil {
		return err
	}
	vm.ip++
	return nil
}

func (vm *Vm) execGet(name string) error {
	recv := vm.stack.Pop()

	if recv.Tag() == value.TagStruct {
		guard, payload, err := value.BorrowRef(recv)
		if err != nil {
			return err
		}
		sp := payload.(*value.StructPayload)
		v, ok := sp.Fields[name]
		if !ok {
			guard.Release()
			return diag.New(diag.KindUnknownField, "no field %q on struct", name)
		}
		result := v.Clone()
		guard.Release()
		value.Drop(recv)
		vm.stack.Push(result)
		return nil
	}

	nameVal, err := vm.heap.NewString(name)
	if err != nil {
		return err
	}
	result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.GET, []value.Value{recv, nameVal}, vm.callScriptSync)
	value.Drop(recv)
	value.Drop(nameVal)
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	return nil
}

func (vm *Vm) execSet(name string) error {
	newVal := vm.stack.Pop()
	recv := vm.stack.Pop()

	if recv.Tag() == value.TagStruct {
		guard, payload, err := value.BorrowMut(recv)
		if err != nil {
			return err
		}
		sp := payload.(*value.StructPayload)
		if old, ok := sp.Fields[name]; ok {
			value.Drop(old)
		} else {
			sp.Order = append(sp.Order, name)
		}
		sp.Fields[name] = newVal
		guard.Release()
		value.Drop(recv)
		vm.stack.Push(value.Unit)
		return nil
	}

	nameVal, err := vm.heap.NewString(name)
	if err != nil {
		return err
	}
	result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.SET, []value.Value{recv, nameVal, newVal}, vm.callScriptSync)
	value.Drop(recv)
	value.Drop(nameVal)
	if err != nil {
		return err
	}
	vm.stack.Push(result)
	return nil
}

func (vm *Vm) execIndexGet() error {
	idx := vm.stack.Pop()
	recv := vm.stack.Pop()

	switch {
	case recv.Tag() == value.TagVector && idx.Tag() == value.TagInt:
		guard, payload, err := value.BorrowRef(recv)
		if err != nil {
			return err
		}
		vp := payload.(*value.VectorPayload)
		i := idx.AsInt()
		if i < 0 || int(i) >= len(vp.Items) {
			guard.Release()
			return diag.New(diag.KindUnknownField, "index %d out of range (len %d)", i, len(vp.Items))
		}
		result := vp.Items[i].Clone()
		guard.Release()
		value.Drop(recv)
		vm.stack.Push(result)
		return nil

	case recv.Tag() == value.TagObject && idx.Tag() == value.TagString:
		guard, payload, err := value.BorrowRef(recv)
		if err != nil {
			return err
		}
		op := payload.(*value.ObjectPayload)
		kguard, kpayload, err := value.BorrowRef(idx)
		if err != nil {
			guard.Release()
			return err
		}
		key := kpayload.(*value.StringPayload).S
		v, ok := op.Get(key)
		kguard.Release()
		if !ok {
			guard.Release()
			return diag.New(diag.KindUnknownField, "no key %q in object", key)
		}
		result := v.Clone()
		guard.Release()
		value.Drop(recv)
		value.Drop(idx)
		vm.stack.Push(result)
		return nil

	default:
		result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.IndexGet, []value.Value{recv, idx}, vm.callScriptSync)
		value.Drop(recv)
		value.Drop(idx)
		if err != nil {
			return err
		}
		vm.stack.Push(result)
		return nil
	}
}

func (vm *Vm) execIndexSet() error {
	newVal := vm.stack.Pop()
	idx := vm.stack.Pop()
	recv := vm.stack.Pop()

	switch {
	case recv.Tag() == value.TagVector && idx.Tag() == value.TagInt:
		guard, payload, err := value.BorrowMut(recv)
		if err != nil {
			return err
		}
		vp := payload.(*value.VectorPayload)
		i := idx.AsInt()
		if i < 0 || int(i) >= len(vp.Items) {
			guard.Release()
			return diag.New(diag.KindUnknownField, "index %d out of range (len %d)", i, len(vp.Items))
		}
		value.Drop(vp.Items[i])
		vp.Items[i] = newVal
		guard.Release()
		value.Drop(recv)
		vm.stack.Push(value.Unit)
		return nil

	case recv.Tag() == value.TagObject && idx.Tag() == value.TagString:
		guard, payload, err := value.BorrowMut(recv)
		if err != nil {
			return err
		}
		op := payload.(*value.ObjectPayload)
		kguard, kpayload, err := value.BorrowRef(idx)
		if err != nil {
			guard.Release()
			return err
		}
		key := kpayload.(*value.StringPayload).S
		kguard.Release()
		if err := vm.heap.ObjectSet(op, key, newVal); err != nil {
			guard.Release()
			return err
		}
		guard.Release()
		value.Drop(recv)
		value.Drop(idx)
		vm.stack.Push(value.Unit)
		return nil

	default:
		result, err := vm.protocols.Dispatch(recv.TypeHashOf(), protocol.IndexSet, []value.Value{recv, idx, newVal}, vm.callScriptSync)
		value.Drop(recv)
		value.Drop(idx)
		if err != nil {
			return err
		}
		vm.stack.Push(result)
		return nil
	}
}
