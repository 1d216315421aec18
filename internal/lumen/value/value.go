// Package value implements lumen's tagged Value representation and its
// reference-counted, runtime-borrow-checked heap cells (spec.md §3.1, §3.2,
// §4.1).
package value

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
)

// Tag discriminates a Value's variant.
type Tag uint8

const (
	TagUnit Tag = iota
	TagBool
	TagByte
	TagChar
	TagInt
	TagFloat
	TagTypeHash

	// Reference variants — everything below holds a *cell.
	TagString
	TagBytes
	TagVector
	TagTuple
	TagObject
	TagRange
	TagOption
	TagResult
	TagStruct
	TagTupleStruct
	TagUnitStruct
	TagVariant
	TagFunction
	TagFormatSpec
	TagIterator
	TagFuture
	TagGenerator
	TagStream
	TagGeneratorState
	TagAny
)

func (t Tag) IsImmediate() bool { return t < TagString }

// Value is lumen's small tagged union. Immediate variants are held
// by-copy in data; reference variants hold a *cell.
type Value struct {
	tag  Tag
	data uint64 // bool/byte/char/int/float(bits)/type-hash
	ref  *cell
}

// Unit, True, False are the canonical immediate singletons.
var (
	Unit  = Value{tag: TagUnit}
	True  = Value{tag: TagBool, data: 1}
	False = Value{tag: TagBool, data: 0}
)

func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func Int(v int64) Value    { return Value{tag: TagInt, data: uint64(v)} }
func Byte(v uint8) Value   { return Value{tag: TagByte, data: uint64(v)} }
func Char(v rune) Value    { return Value{tag: TagChar, data: uint64(v)} }
func TypeHash(h typeid.Hash) Value {
	return Value{tag: TagTypeHash, data: uint64(h)}
}
func Float(v float64) Value {
	return Value{tag: TagFloat, data: floatBits(v)}
}

func (v Value) Tag() Tag { return v.tag }

func (v Value) AsBool() bool      { return v.data != 0 }
func (v Value) AsInt() int64      { return int64(v.data) }
func (v Value) AsByte() uint8     { return uint8(v.data) }
func (v Value) AsChar() rune      { return rune(v.data) }
func (v Value) AsFloat() float64  { return floatFromBits(v.data) }
func (v Value) AsTypeHash() typeid.Hash { return typeid.Hash(v.data) }

// TypeHashOf returns the dynamic type hash of v, used as the dispatch key
// for protocol lookup (spec.md §3.3, §4.4). Immediates have a fixed,
// well-known hash derived from their primitive name; reference variants
// carry their RTTI hash in the cell (set at construction by the caller —
// structs/enums/user types) or fall back to the variant's builtin hash.
func (v Value) TypeHashOf() typeid.Hash {
	if v.ref != nil {
		if v.ref.typeHash != 0 {
			return v.ref.typeHash
		}
		return builtinHash[v.tag]
	}
	return builtinHash[v.tag]
}

var builtinHash [TagAny + 1]typeid.Hash

func init() {
	names := map[Tag]string{
		TagUnit: "unit", TagBool: "bool", TagByte: "byte", TagChar: "char",
		TagInt: "int", TagFloat: "float", TagTypeHash: "type",
		TagString: "String", TagBytes: "Bytes", TagVector: "Vec",
		TagTuple: "Tuple", TagObject: "Object", TagRange: "Range",
		TagOption: "Option", TagResult: "Result", TagStruct: "Struct",
		TagTupleStruct: "TupleStruct", TagUnitStruct: "UnitStruct",
		TagVariant: "Variant", TagFunction: "Function",
		TagFormatSpec: "FormatSpec", TagIterator: "Iterator",
		TagFuture: "Future", TagGenerator: "Generator", TagStream: "Stream",
		TagGeneratorState: "GeneratorState", TagAny: "Any",
	}
	for tag, name := range names {
		builtinHash[tag] = typeid.Of("lumen::builtin::" + name)
	}
}

// Clone increments the strong count of v's underlying cell (if any) and
// returns a new Value sharing the same cell. Distinct from BorrowRef: it
// duplicates the handle rather than merely observing the payload.
func (v Value) Clone() Value {
	if v.ref != nil {
		v.ref.retain()
	}
	return v
}

// Drop releases v's handle. If it was the last handle, the cell's payload
// is freed. Mirrors spec.md §4.1's drop-order contract; callers (notably
// the instruction loop's CLEAN opcode and scope-exit unwinding) are
// responsible for calling Drop in reverse declaration order.
func Drop(v Value) {
	if v.ref != nil {
		v.ref.release()
	}
}

// Equal implements value-level equality used by the EQ protocol's default
// dispatch for builtin types. Cross-type equality is a type error, not a
// false result, per spec.md §8.3.
func Equal(a, b Value) (bool, error) {
	if a.tag != b.tag {
		if a.tag.IsImmediate() && b.tag.IsImmediate() {
			return false, diag.New(diag.KindTypeMismatch,
				"cannot compare %v and %v", a.tag, b.tag)
		}
		return false, diag.New(diag.KindTypeMismatch,
			"cannot compare %v and %v", a.tag, b.tag)
	}
	switch a.tag {
	case TagUnit:
		return true, nil
	case TagBool, TagByte, TagChar, TagInt, TagTypeHash:
		return a.data == b.data, nil
	case TagFloat:
		return a.AsFloat() == b.AsFloat(), nil
	default:
		return a.ref == b.ref, nil // identity fallback; protocols override
	}
}

func (t Tag) String() string {
	switch t {
	case TagUnit:
		return "unit"
	case TagBool:
		return "bool"
	case TagByte:
		return "byte"
	case TagChar:
		return "char"
	case TagInt:
		return "int"
	case TagFloat:
		return "float"
	case TagTypeHash:
		return "type"
	case TagString:
		return "String"
	case TagBytes:
		return "Bytes"
	case TagVector:
		return "Vec"
	case TagTuple:
		return "Tuple"
	case TagObject:
		return "Object"
	case TagRange:
		return "Range"
	case TagOption:
		return "Option"
	case TagResult:
		return "Result"
	case TagStruct:
		return "Struct"
	case TagTupleStruct:
		return "TupleStruct"
	case TagUnitStruct:
		return "UnitStruct"
	case TagVariant:
		return "Variant"
	case TagFunction:
		return "Function"
	case TagFormatSpec:
		return "FormatSpec"
	case TagIterator:
		return "Iterator"
	case TagFuture:
		return "Future"
	case TagGenerator:
		return "Generator"
	case TagStream:
		return "Stream"
	case TagGeneratorState:
		return "GeneratorState"
	case TagAny:
		return "Any"
	default:
		return "unknown"
	}
}
