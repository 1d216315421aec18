package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execPattern handles the Pattern group (spec.md §4.3):
//
//	MatchBind(A=const index of a type-hash, B=discriminant, C=1 if B is
//	          a variant discriminant to check, 0 otherwise)
//	  peeks the scrutinee (leaves it on the stack) and pushes a Bool
//	DestructureTuple(A=n)
//	DestructureObject(A=const index of ConstObjectKeys)
//	DestructureStruct(A=const index of a type-hash)
//	DestructureVariant(A=const index of a type-hash, B=discriminant)
//	  each pops the scrutinee and pushes its sub-bindings in field order
//
// A Destructure* opcode only ever runs after its matching MatchBind has
// already returned true, so a layout/discriminant mismatch here indicates
// a bytecode verification gap, not a script-level error.
func (vm *Vm) execPattern(inst unit.Inst) error {
	var err error
	switch inst.Op {
	case unit.OpMatchBind:
		err = vm.execMatchBind(inst)
	case unit.OpDestructureTuple:
		err = vm.execDestructureTuple(int(inst.A))
	case unit.OpDestructureObject:
		err = vm.execDestructureObject(vm.u.Constants[inst.A].Keys)
	case unit.OpDestructureStruct:
		err = vm.execDestructureStruct(vm.constHash(inst.A))
	case unit.OpDestructureVariant:
		err = vm.execDestructureVariant(vm.constHash(inst.A), int64(inst.B))
	}
	if err != nil {
		return err
	}
	vm.ip++
	return nil
}

func (vm *Vm) execMatchBind(inst unit.Inst) error {
	scrutinee := vm.stack.Peek(0)
	want := vm.constHash(inst.A)

	matched := scrutinee.TypeHashOf() == want
	if matched && inst.C != 0 {
		guard, payload, err := value.BorrowRef(scrutinee)
		if err != nil {
			return err
		}
		vp, ok := payload.(*value.VariantPayload)
		matched = ok && vp.Discriminant == int64(inst.B)
		guard.Release()
	}
	vm.stack.Push(value.Bool(matched))
	return nil
}

// takeOrClone returns v's payload by move when v is its cell's sole
// handle, otherwise by a borrowed clone — the `BorrowRef + clone + Drop`
// fallback for a scrutinee reached through a shared handle.
func takeOrClone(v value.Value) (value.Payload, func(), error) {
	if p, err := value.Take(v); err == nil {
		return p, func() {}, nil
	}
	guard, p, err := value.BorrowRef(v)
	if err != nil {
		return nil, nil, err
	}
	return p, guard.Release, nil
}

func (vm *Vm) execDestructureTuple(n int) error {
	scrutinee := vm.stack.Pop()
	payload, release, err := takeOrClone(scrutinee)
	if err != nil {
		return err
	}
	tp, ok := payload.(*value.TuplePayload)
	if !ok {
		release()
		return diag.New(diag.KindTypeMismatch, "DestructureTuple on a non-tuple value")
	}
	if len(tp.Items) != n {
		release()
		return diag.New(diag.KindMalformedUnit, "DestructureTuple arity %d does not match value's %d", n, len(tp.Items))
	}
	for _, item := range tp.Items {
		vm.stack.Push(item.Clone())
	}
	release()
	value.Drop(scrutinee)
	return nil
}

func (vm *Vm) execDestructureObject(keys []string) error {
	scrutinee := vm.stack.Pop()
	guard, payload, err := value.BorrowRef(scrutinee)
	if err != nil {
		return err
	}
	op := payload.(*value.ObjectPayload)
	for _, k := range keys {
		v, ok := op.Get(k)
		if !ok {
			guard.Release()
			return diag.New(diag.KindUnknownField, "DestructureObject: no key %q", k)
		}
		vm.stack.Push(v.Clone())
	}
	guard.Release()
	value.Drop(scrutinee)
	return nil
}

func (vm *Vm) execDestructureStruct(hash typeid.Hash) error {
	layout, ok := vm.u.Layout(hash)
	if !ok {
		return diag.New(diag.KindUnknownField, "no RTTI layout for struct type %#x", hash)
	}
	scrutinee := vm.stack.Pop()
	payload, release, err := takeOrClone(scrutinee)
	if err != nil {
		return err
	}
	sp, ok := payload.(*value.StructPayload)
	if !ok {
		release()
		return diag.New(diag.KindTypeMismatch, "DestructureStruct on a non-struct value")
	}
	for _, f := range layout.Fields {
		v, ok := sp.Fields[f.Name]
		if !ok {
			release()
			return diag.New(diag.KindUnknownField, "struct value missing field %q", f.Name)
		}
		vm.stack.Push(v.Clone())
	}
	release()
	value.Drop(scrutinee)
	return nil
}

func (vm *Vm) execDestructureVariant(hash typeid.Hash, discriminant int64) error {
	layout, ok := vm.u.Layout(hash)
	if !ok {
		return diag.New(diag.KindUnknownVariant, "no RTTI layout for enum type %#x", hash)
	}
	var vl *unit.VariantLayout
	for i := range layout.Variants {
		if layout.Variants[i].Discriminant == discriminant {
			vl = &layout.Variants[i]
			break
		}
	}
	if vl == nil {
		return diag.New(diag.KindUnknownVariant, "no variant with discriminant %d on type %#x", discriminant, hash)
	}

	scrutinee := vm.stack.Pop()
	if len(vl.Fields) == 0 {
		value.Drop(scrutinee)
		return nil
	}

	payload, release, err := takeOrClone(scrutinee)
	if err != nil {
		return err
	}
	vp, ok := payload.(*value.VariantPayload)
	if !ok {
		release()
		return diag.New(diag.KindTypeMismatch, "DestructureVariant on a non-variant value")
	}

	if vl.Fields[0].Name == "" {
		for _, item := range vp.Items {
			vm.stack.Push(item.Clone())
		}
	} else {
		for _, f := range vl.Fields {
			v, ok := vp.Fields[f.Name]
			if !ok {
				release()
				return diag.New(diag.KindUnknownField, "variant missing field %q", f.Name)
			}
			vm.stack.Push(v.Clone())
		}
	}
	release()
	value.Drop(scrutinee)
	return nil
}
