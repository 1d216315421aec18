package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execAggregate handles the Aggregate group (spec.md §4.3):
//
//	ConstructTuple(A=n)                popN(n) in order
//	ConstructVector(A=n)                popN(n) in order
//	ConstructObject(A=const index of ConstObjectKeys) popN(len(keys))
//	ConstructStruct(A=const index of a type-hash)     popN(len(layout.Fields))
//	ConstructVariant(A=const index of a type-hash, B=discriminant)
func (vm *Vm) execAggregate(inst unit.Inst) error {
	var v value.Value
	var err error

	switch inst.Op {
	case unit.OpConstructTuple:
		v, err = vm.heap.NewTuple(vm.stack.PopN(int(inst.A)))

	case unit.OpConstructVector:
		v, err = vm.heap.NewVector(vm.stack.PopN(int(inst.A)))

	case unit.OpConstructObject:
		v, err = vm.constructObject(vm.u.Constants[inst.A].Keys)

	case unit.OpConstructStruct:
		v, err = vm.constructStruct(vm.constHash(inst.A))

	case unit.OpConstructVariant:
		v, err = vm.constructVariant(vm.constHash(inst.A), int64(inst.B))
	}
	if err != nil {
		return err
	}
	vm.stack.Push(v)
	vm.ip++
	return nil
}

func (vm *Vm) constructObject(keys []string) (value.Value, error) {
	items := vm.stack.PopN(len(keys))
	obj, err := vm.heap.NewObject()
	if err != nil {
		return value.Value{}, err
	}
	payload, _ := value.PayloadOf(obj)
	op := payload.(*value.ObjectPayload)
	for i, k := range keys {
		if err := vm.heap.ObjectSet(op, k, items[i]); err != nil {
			return value.Value{}, err
		}
	}
	return obj, nil
}

func (vm *Vm) constructStruct(hash typeid.Hash) (value.Value, error) {
	layout, ok := vm.u.Layout(hash)
	if !ok {
		return value.Value{}, diag.New(diag.KindUnknownField, "no RTTI layout for struct type %#x", hash)
	}
	items := vm.stack.PopN(len(layout.Fields))
	fields := make(map[string]value.Value, len(layout.Fields))
	order := make([]string, len(layout.Fields))
	for i, f := range layout.Fields {
		fields[f.Name] = items[i]
		order[i] = f.Name
	}
	return vm.heap.NewStruct(hash, order, fields)
}

func (vm *Vm) constructVariant(hash typeid.Hash, discriminant int64) (value.Value, error) {
	layout, ok := vm.u.Layout(hash)
	if !ok {
		return value.Value{}, diag.New(diag.KindUnknownVariant, "no RTTI layout for enum type %#x", hash)
	}
	var vl *unit.VariantLayout
	for i := range layout.Variants {
		if layout.Variants[i].Discriminant == discriminant {
			vl = &layout.Variants[i]
			break
		}
	}
	if vl == nil {
		return value.Value{}, diag.New(diag.KindUnknownVariant, "no variant with discriminant %d on type %#x", discriminant, hash)
	}

	switch {
	case len(vl.Fields) == 0:
		return vm.heap.NewVariant(hash, value.VariantPayload{Discriminant: discriminant, Form: value.VariantUnit})
	case vl.Fields[0].Name == "":
		items := vm.stack.PopN(len(vl.Fields))
		return vm.heap.NewVariant(hash, value.VariantPayload{Discriminant: discriminant, Form: value.VariantTuple, Items: items})
	default:
		items := vm.stack.PopN(len(vl.Fields))
		fields := make(map[string]value.Value, len(vl.Fields))
		order := make([]string, len(vl.Fields))
		for i, f := range vl.Fields {
			fields[f.Name] = items[i]
			order[i] = f.Name
		}
		return vm.heap.NewVariant(hash, value.VariantPayload{Discriminant: discriminant, Form: value.VariantStruct, Fields: fields, Order: order})
	}
}
