package value

import (
	"code.hybscloud.com/lumen/internal/lumen/typeid"
)

// Allocator charges a byte count against a per-execution memory limit
// (spec.md §4.7). Every allocating Heap method threads its allocation
// through Charge so that the VM's own collections are fallible and
// budgeted, as the spec requires. budget.Counter implements this
// interface; tests may supply an unlimited no-op allocator.
type Allocator interface {
	Charge(bytes int) error
}

// unlimited is the default Allocator when a Heap is constructed with a nil
// one: every charge succeeds. Matches spec.md's "default: unlimited".
type unlimited struct{}

func (unlimited) Charge(int) error { return nil }

// Heap constructs reference-variant Values, charging every allocation
// against an Allocator.
type Heap struct {
	alloc Allocator
}

func NewHeap(alloc Allocator) *Heap {
	if alloc == nil {
		alloc = unlimited{}
	}
	return &Heap{alloc: alloc}
}

func (h *Heap) charge(bytes int) error {
	if err := h.alloc.Charge(bytes); err != nil {
		return err
	}
	return nil
}

func wrap(tag Tag, c *cell) Value { return Value{tag: tag, ref: c} }

// --- String ---

type StringPayload struct{ S string }

func (p *StringPayload) Drop() {}

func (h *Heap) NewString(s string) (Value, error) {
	if err := h.charge(len(s) + 16); err != nil {
		return Value{}, err
	}
	return wrap(TagString, newCell(0, &StringPayload{S: s})), nil
}

// --- Bytes ---

type BytesPayload struct{ B []byte }

func (p *BytesPayload) Drop() {}

func (h *Heap) NewBytes(b []byte) (Value, error) {
	if err := h.charge(len(b) + 16); err != nil {
		return Value{}, err
	}
	return wrap(TagBytes, newCell(0, &BytesPayload{B: b})), nil
}

// --- Vector ---

type VectorPayload struct{ Items []Value }

func (p *VectorPayload) Drop() {
	for _, v := range p.Items {
		Drop(v)
	}
}

func (h *Heap) NewVector(items []Value) (Value, error) {
	if err := h.charge(len(items)*24 + 24); err != nil {
		return Value{}, err
	}
	return wrap(TagVector, newCell(0, &VectorPayload{Items: items})), nil
}

// --- Tuple ---

type TuplePayload struct{ Items []Value }

func (p *TuplePayload) Drop() {
	for _, v := range p.Items {
		Drop(v)
	}
}

func (h *Heap) NewTuple(items []Value) (Value, error) {
	if err := h.charge(len(items)*24 + 16); err != nil {
		return Value{}, err
	}
	return wrap(TagTuple, newCell(0, &TuplePayload{Items: items})), nil
}

// --- Object (insertion-order-preserving string->Value map) ---

type ObjectPayload struct {
	Keys   []string
	Values map[string]Value
}

func (p *ObjectPayload) Drop() {
	for _, v := range p.Values {
		Drop(v)
	}
}

func (h *Heap) NewObject() (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagObject, newCell(0, &ObjectPayload{Values: make(map[string]Value)})), nil
}

func (p *ObjectPayload) Get(key string) (Value, bool) {
	v, ok := p.Values[key]
	return v, ok
}

func (h *Heap) ObjectSet(p *ObjectPayload, key string, v Value) error {
	if _, exists := p.Values[key]; !exists {
		if err := h.charge(len(key) + 24); err != nil {
			return err
		}
		p.Keys = append(p.Keys, key)
	}
	p.Values[key] = v
	return nil
}

// --- Option / Result ---

type OptionPayload struct {
	Some  bool
	Inner Value
}

func (p *OptionPayload) Drop() {
	if p.Some {
		Drop(p.Inner)
	}
}

func (h *Heap) NewSome(v Value) (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagOption, newCell(0, &OptionPayload{Some: true, Inner: v})), nil
}

func (h *Heap) NewNone() (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagOption, newCell(0, &OptionPayload{Some: false})), nil
}

type ResultPayload struct {
	Ok    bool
	Inner Value
}

func (p *ResultPayload) Drop() { Drop(p.Inner) }

func (h *Heap) NewOk(v Value) (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagResult, newCell(0, &ResultPayload{Ok: true, Inner: v})), nil
}

func (h *Heap) NewErr(v Value) (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagResult, newCell(0, &ResultPayload{Ok: false, Inner: v})), nil
}

// --- Range ---

type RangePayload struct {
	Start, End Value
	Inclusive  bool
}

func (p *RangePayload) Drop() { Drop(p.Start); Drop(p.End) }

func (h *Heap) NewRange(start, end Value, inclusive bool) (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagRange, newCell(0, &RangePayload{Start: start, End: end, Inclusive: inclusive})), nil
}

// --- user struct / tuple-struct / unit-struct / enum variant ---

type StructPayload struct {
	Fields map[string]Value
	Order  []string
}

func (p *StructPayload) Drop() {
	for _, v := range p.Fields {
		Drop(v)
	}
}

func (h *Heap) NewStruct(typeHash typeid.Hash, order []string, fields map[string]Value) (Value, error) {
	if err := h.charge(len(order)*24 + 32); err != nil {
		return Value{}, err
	}
	return wrap(TagStruct, newCell(typeHash, &StructPayload{Fields: fields, Order: order})), nil
}

type TupleStructPayload struct{ Items []Value }

func (p *TupleStructPayload) Drop() {
	for _, v := range p.Items {
		Drop(v)
	}
}

func (h *Heap) NewTupleStruct(typeHash typeid.Hash, items []Value) (Value, error) {
	if err := h.charge(len(items)*24 + 16); err != nil {
		return Value{}, err
	}
	return wrap(TagTupleStruct, newCell(typeHash, &TupleStructPayload{Items: items})), nil
}

type UnitStructPayload struct{}

func (UnitStructPayload) Drop() {}

func (h *Heap) NewUnitStruct(typeHash typeid.Hash) (Value, error) {
	if err := h.charge(8); err != nil {
		return Value{}, err
	}
	return wrap(TagUnitStruct, newCell(typeHash, UnitStructPayload{})), nil
}

// VariantForm distinguishes how an enum variant carries data.
type VariantForm uint8

const (
	VariantUnit VariantForm = iota
	VariantTuple
	VariantStruct
)

type VariantPayload struct {
	Discriminant int64
	Form         VariantForm
	Items        []Value          // VariantTuple
	Fields       map[string]Value // VariantStruct
	Order        []string
}

func (p *VariantPayload) Drop() {
	for _, v := range p.Items {
		Drop(v)
	}
	for _, v := range p.Fields {
		Drop(v)
	}
}

func (h *Heap) NewVariant(typeHash typeid.Hash, p VariantPayload) (Value, error) {
	if err := h.charge(len(p.Items)*24 + len(p.Order)*24 + 32); err != nil {
		return Value{}, err
	}
	return wrap(TagVariant, newCell(typeHash, &p)), nil
}

// --- function pointer (script or native, with optional captures) ---

// CallKind mirrors the Unit function table's call-kind classification
// (spec.md §3.4).
type CallKind uint8

const (
	CallPlain CallKind = iota
	CallGenerator
	CallAsync
	CallStream
)

type FunctionPayload struct {
	Hash     typeid.Hash // 0 for dynamically-constructed closures
	Native   func(args []Value) (Value, error)
	Kind     CallKind
	Captures []Value // shared-handle captures; moved closures own these
	Moved    bool
}

func (p *FunctionPayload) Drop() {
	for _, v := range p.Captures {
		Drop(v)
	}
}

func (h *Heap) NewFunction(p FunctionPayload) (Value, error) {
	if err := h.charge(len(p.Captures)*24 + 32); err != nil {
		return Value{}, err
	}
	return wrap(TagFunction, newCell(0, &p)), nil
}

// --- opaque host "any" ---

type AnyPayload struct {
	TypeHash typeid.Hash
	Data     any
	DropFn   func(any)
}

func (p *AnyPayload) Drop() {
	if p.DropFn != nil {
		p.DropFn(p.Data)
	}
}

func (h *Heap) NewAny(typeHash typeid.Hash, data any, dropFn func(any)) (Value, error) {
	if err := h.charge(32); err != nil {
		return Value{}, err
	}
	return wrap(TagAny, newCell(typeHash, &AnyPayload{TypeHash: typeHash, Data: data, DropFn: dropFn})), nil
}

// --- format spec ---

type FormatSpecPayload struct {
	Fill      rune
	Width     int
	Precision int
	Alternate bool
}

func (FormatSpecPayload) Drop() {}

func (h *Heap) NewFormatSpec(spec FormatSpecPayload) (Value, error) {
	if err := h.charge(24); err != nil {
		return Value{}, err
	}
	return wrap(TagFormatSpec, newCell(0, spec)), nil
}

// NewTagged constructs a reference Value of an arbitrary tag carrying an
// arbitrary Payload, charging chargeBytes against the heap's allocator.
// Used by packages outside value (notably suspend, for Future/Generator/
// Stream/Iterator/GeneratorState payloads) that need to mint Values
// without value growing a dependency on them.
func (h *Heap) NewTagged(tag Tag, typeHash typeid.Hash, payload Payload, chargeBytes int) (Value, error) {
	if err := h.charge(chargeBytes); err != nil {
		return Value{}, err
	}
	return wrap(tag, newCell(typeHash, payload)), nil
}

// PayloadOf returns the payload of a reference Value without acquiring a
// borrow guard. Intended for packages (exec, protocol) that have already
// established, by construction, that they hold the sole or a read-safe
// view — e.g. immediately after NewTagged, or inside a native function
// that received the value under the VM's own call-argument discipline.
// Prefer BorrowRef/BorrowMut for any access reachable from script code.
func PayloadOf(v Value) (Payload, bool) {
	if v.ref == nil {
		return nil, false
	}
	return v.ref.payload, true
}
