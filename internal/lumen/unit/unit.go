// Package unit implements lumen's compiled artifact: the immutable,
// shareable-by-reference bundle of instructions, constants, function and
// type metadata, and optional debug information that a Vm executes
// (spec.md §3.4).
package unit

import "code.hybscloud.com/lumen/internal/lumen/typeid"

// CallKind classifies how CALL should activate a function entry
// (spec.md §4.2's "Call" rule).
type CallKind uint8

const (
	CallPlain CallKind = iota
	CallGenerator
	CallAsync
	CallStream
)

func (k CallKind) String() string {
	switch k {
	case CallPlain:
		return "plain"
	case CallGenerator:
		return "generator"
	case CallAsync:
		return "async"
	case CallStream:
		return "stream"
	default:
		return "unknown"
	}
}

// FunctionDesc is one function-table entry: type-hash -> (entry offset,
// arg count, call kind).
type FunctionDesc struct {
	Hash     typeid.Hash
	Entry    int
	ArgCount int
	CallKind CallKind
}

// FieldLayout describes one field of a struct, or one tuple slot's
// position, for RTTI purposes.
type FieldLayout struct {
	Name  string // empty for tuple-struct positional fields
	Index int
}

// VariantLayout describes one enum variant's shape.
type VariantLayout struct {
	Name         string
	Discriminant int64
	Fields       []FieldLayout // empty for a unit variant
}

// TypeLayout is one RTTI table entry: the field/variant shape a struct or
// enum type was compiled with. Used by the VM's aggregate-construction and
// pattern-destructure opcodes, and by native code introspecting a value.
type TypeLayout struct {
	Hash     typeid.Hash
	Name     string
	Fields   []FieldLayout   // struct / tuple-struct
	Variants []VariantLayout // enum; empty for non-enum types
}

// SourceSpan locates one instruction in the original source, for
// diagnostics. Mirrors diag.Span but lives in unit to avoid a dependency
// from diag (a leaf package) onto unit.
type SourceSpan struct {
	File string
	Line int
	Col  int
}

// Constant is one constant-pool entry. Only one field is meaningful per
// Kind; sub-units back constant-folded closures compiled as nested bodies.
type ConstKind uint8

const (
	ConstString ConstKind = iota
	ConstBytes
	ConstInt
	ConstFloat
	ConstObjectKeys // pre-interned identifier set for object literals
	ConstSubUnit
)

type Constant struct {
	Kind    ConstKind
	Str     string
	Bytes   []byte
	Int     int64
	Float   float64
	Keys    []string
	SubUnit *Unit
}

// Unit is the immutable, shareable compiled artifact a Vm executes
// (spec.md §3.4). Once built it is never mutated; multiple Vms may hold a
// pointer to the same Unit concurrently.
type Unit struct {
	Instructions []Inst
	Constants    []Constant

	// Functions indexes by hash for CALL_HASH; FunctionsBy is the ordered
	// function table that Encode/Decode serialize. CALL_OFFSET consults
	// neither: it takes the callee's entry offset from its own operand.
	Functions   map[typeid.Hash]FunctionDesc
	FunctionsBy []FunctionDesc

	// RTTI indexes struct/enum layouts by type hash.
	RTTI map[typeid.Hash]TypeLayout

	// DebugMap maps an instruction offset to its originating source span.
	// Absent (nil) for units built without debug info.
	DebugMap map[int]SourceSpan

	// EntryPoints lets the host look up a callable function's offset by
	// name-derived hash without scanning Functions.
	EntryPoints map[typeid.Hash]int
}

// New returns an empty, buildable Unit. Compilers (outside this
// implementation's scope, per spec.md's Non-goals) populate it directly;
// Decode reconstructs one from its persisted form.
func New() *Unit {
	return &Unit{
		Functions:   make(map[typeid.Hash]FunctionDesc),
		RTTI:        make(map[typeid.Hash]TypeLayout),
		EntryPoints: make(map[typeid.Hash]int),
	}
}

// Function looks up a function descriptor by its type hash, used by
// CALL_HASH.
func (u *Unit) Function(h typeid.Hash) (FunctionDesc, bool) {
	fd, ok := u.Functions[h]
	return fd, ok
}

// Layout looks up a struct/enum's field or variant layout by type hash,
// used by CONSTRUCT_STRUCT/CONSTRUCT_VARIANT and the destructure opcodes.
func (u *Unit) Layout(h typeid.Hash) (TypeLayout, bool) {
	t, ok := u.RTTI[h]
	return t, ok
}

// Span returns the best-effort source span for instruction offset ip.
func (u *Unit) Span(ip int) (SourceSpan, bool) {
	if u.DebugMap == nil {
		return SourceSpan{}, false
	}
	s, ok := u.DebugMap[ip]
	return s, ok
}
