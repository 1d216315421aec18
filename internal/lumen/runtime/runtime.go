// Package runtime implements lumen's RuntimeContext: the immutable,
// shareable registry of native functions, registered type descriptors, and
// protocol implementations a host builds before constructing a Vm
// (spec.md §3.5).
package runtime

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// NativeFunc is a host-provided function callable from script by type hash.
// args is borrowed for the duration of the call; the returned Value (or
// error) replaces them on the Vm's stack.
type NativeFunc func(args []value.Value) (value.Value, error)

// NativeEntry pairs a native function with the argument count the VM
// should expect when dispatching to it via CALL_HASH.
type NativeEntry struct {
	ArgCount int
	Func     NativeFunc
}

// TypeDescriptor is a host-registered type's descriptor: its display name
// and an optional drop hook invoked when the last handle to an instance is
// released (spec.md §3.5's "name, layout, drop function").
type TypeDescriptor struct {
	Hash typeid.Hash
	Name string
	Drop func(any)
}

// Builder accumulates native functions, type descriptors, and protocol
// implementations before Build freezes them into an immutable
// RuntimeContext. Registering the same type hash twice is a link-time
// error (spec.md §6.1's "module conflicts" resolution), so Builder tracks
// seen hashes in a set rather than silently overwriting a map key.
type Builder struct {
	functions map[typeid.Hash]NativeEntry
	types     map[typeid.Hash]TypeDescriptor
	protocols map[protocolKey]NativeFunc

	seenFunctionHashes mapset.Set[typeid.Hash]
	seenTypeHashes     mapset.Set[typeid.Hash]
}

type protocolKey struct {
	typeHash typeid.Hash
	protocol typeid.Hash
}

func NewBuilder() *Builder {
	return &Builder{
		functions:          make(map[typeid.Hash]NativeEntry),
		types:              make(map[typeid.Hash]TypeDescriptor),
		protocols:          make(map[protocolKey]NativeFunc),
		seenFunctionHashes: mapset.NewSet[typeid.Hash](),
		seenTypeHashes:     mapset.NewSet[typeid.Hash](),
	}
}

// RegisterFunction adds a toplevel function, associated function, or
// instance method reachable by hash.
func (b *Builder) RegisterFunction(hash typeid.Hash, argCount int, fn NativeFunc) error {
	if b.seenFunctionHashes.Contains(hash) {
		return diag.New(diag.KindDuplicateTypeHash, "native function hash %#x registered twice", hash)
	}
	b.seenFunctionHashes.Add(hash)
	b.functions[hash] = NativeEntry{ArgCount: argCount, Func: fn}
	return nil
}

// RegisterType adds a host type descriptor.
func (b *Builder) RegisterType(desc TypeDescriptor) error {
	if b.seenTypeHashes.Contains(desc.Hash) {
		return diag.New(diag.KindDuplicateTypeHash, "type hash %#x (%s) registered twice", desc.Hash, desc.Name)
	}
	b.seenTypeHashes.Add(desc.Hash)
	b.types[desc.Hash] = desc
	return nil
}

// RegisterProtocol implements protocol (e.g. EQ, GET, INDEX_GET — see
// spec.md §4.4) for the given type hash. Unlike functions and types,
// re-registering the same (type, protocol) pair is allowed: a later
// registration overrides an earlier one, matching how a host commonly
// layers a default module implementation with an application override.
func (b *Builder) RegisterProtocol(typeHash, protocol typeid.Hash, fn NativeFunc) {
	b.protocols[protocolKey{typeHash, protocol}] = fn
}

// Build freezes the accumulated registrations into an immutable
// RuntimeContext. The Builder must not be reused afterward.
func (b *Builder) Build() *RuntimeContext {
	return &RuntimeContext{
		functions: b.functions,
		types:     b.types,
		protocols: b.protocols,
	}
}

// RuntimeContext is the immutable, reference-shareable registry a Vm
// consults for native calls, type introspection, and protocol dispatch
// fallback (when a Unit's own RTTI/protocol table has no entry).
type RuntimeContext struct {
	functions map[typeid.Hash]NativeEntry
	types     map[typeid.Hash]TypeDescriptor
	protocols map[protocolKey]NativeFunc
}

func (rc *RuntimeContext) Function(hash typeid.Hash) (NativeEntry, bool) {
	e, ok := rc.functions[hash]
	return e, ok
}

func (rc *RuntimeContext) Type(hash typeid.Hash) (TypeDescriptor, bool) {
	t, ok := rc.types[hash]
	return t, ok
}

// Protocol looks up the native implementation of protocol for typeHash.
func (rc *RuntimeContext) Protocol(typeHash, protocol typeid.Hash) (NativeFunc, bool) {
	fn, ok := rc.protocols[protocolKey{typeHash, protocol}]
	return fn, ok
}

func (rc *RuntimeContext) String() string {
	return fmt.Sprintf("RuntimeContext{functions=%d types=%d protocols=%d}",
		len(rc.functions), len(rc.types), len(rc.protocols))
}
