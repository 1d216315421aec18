// Package lumen is the host embedding boundary for the lumen execution
// substrate (spec.md §6.1): a host process links this package, builds a
// Context of native functions/types/protocols, loads a compiled Unit, and
// drives it to completion through a Vm or a pooled set of them.
package lumen

import (
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
)

// FunctionDef is one native function a Module contributes, reachable from
// script by its type hash (spec.md §3.5).
type FunctionDef struct {
	Hash     typeid.Hash
	ArgCount int
	Func     runtime.NativeFunc
}

// ProtocolDef is one native protocol implementation a Module contributes:
// Protocol implemented for TypeHash (spec.md §4.4).
type ProtocolDef struct {
	TypeHash typeid.Hash
	Protocol typeid.Hash
	Func     runtime.NativeFunc
}

// Module is a host-provided bundle of native functions, registered types,
// and protocol implementations installed into a Context together, so a
// conflict between two modules is caught at the bundle boundary rather
// than scattered across many individual registration calls.
type Module struct {
	// Name identifies the module in conflict diagnostics; it plays no
	// role in dispatch.
	Name string

	Functions []FunctionDef
	Types     []runtime.TypeDescriptor
	Protocols []ProtocolDef
}
