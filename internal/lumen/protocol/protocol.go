// Package protocol implements lumen's operator-like dispatch: given a
// receiver's type hash and a protocol hash, find the handler that
// implements it, checking the compiled Unit's own implementations before
// falling back to the host's RuntimeContext (spec.md §4.4).
package protocol

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Well-known protocol hashes (spec.md §4.4's non-exhaustive table). Derived
// the same way any other item path is, under a reserved "lumen::protocol"
// namespace so a script-level type can never accidentally collide with one.
var (
	GET      = typeid.Of("lumen::protocol::GET")
	SET      = typeid.Of("lumen::protocol::SET")
	IndexGet = typeid.Of("lumen::protocol::INDEX_GET")
	IndexSet = typeid.Of("lumen::protocol::INDEX_SET")
	IntoIter = typeid.Of("lumen::protocol::INTO_ITER")
	Next     = typeid.Of("lumen::protocol::NEXT")
	Eq       = typeid.Of("lumen::protocol::EQ")
	Cmp      = typeid.Of("lumen::protocol::CMP")
	Add      = typeid.Of("lumen::protocol::ADD")
	Sub      = typeid.Of("lumen::protocol::SUB")
	Mul      = typeid.Of("lumen::protocol::MUL")
	Div      = typeid.Of("lumen::protocol::DIV")
	Display  = typeid.Of("lumen::protocol::DISPLAY")
	Debug    = typeid.Of("lumen::protocol::DEBUG")
)

// Handler is the callable shape every protocol implementation has,
// regardless of whether it originates in script (a Unit function entry,
// invoked by the exec package through its own call machinery) or natively
// (a runtime.NativeFunc).
type Handler = runtime.NativeFunc

// UnitProtocols is the subset of a Unit's function table registered as
// protocol implementations: (type hash, protocol hash) -> function hash.
// Callers fill it with Register before passing it to NewTable; neither
// unit.Unit nor the exec package populates it. It is kept here rather than
// on unit.Unit so that unit stays agnostic of the protocol vocabulary.
type UnitProtocols map[key]typeid.Hash

type key struct {
	typeHash typeid.Hash
	protocol typeid.Hash
}

func NewUnitProtocols() UnitProtocols { return make(UnitProtocols) }

func (p UnitProtocols) Register(typeHash, protocol, functionHash typeid.Hash) {
	p[key{typeHash, protocol}] = functionHash
}

// Table merges a Unit's script-level protocol implementations with a
// RuntimeContext's native ones behind an LRU front-cache, since dispatch
// happens on every GET/SET/operator evaluation in the hot instruction
// loop.
type Table struct {
	u   *unit.Unit
	up  UnitProtocols
	rc  *runtime.RuntimeContext
	lru *lru.Cache[key, resolved]
}

// resolved is a cached dispatch outcome: either a script function hash
// (Script true) or a native handler, never both.
type resolved struct {
	Script   bool
	FuncHash typeid.Hash
	Native   Handler
}

// NewTable builds a dispatch table over u's script-level protocol
// implementations and rc's native ones. cacheSize bounds the LRU
// front-cache; spec.md doesn't mandate a size, so callers size it to their
// expected distinct (type, protocol) pair count.
func NewTable(u *unit.Unit, up UnitProtocols, rc *runtime.RuntimeContext, cacheSize int) (*Table, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := lru.New[key, resolved](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Table{u: u, up: up, rc: rc, lru: c}, nil
}

// Dispatch resolves and invokes the handler for (typeHash, protocol) with
// the given borrowed argument slice. callScript invokes a script-level
// function entry by hash (threaded in from exec, which owns the Vm needed
// to actually run script code) — protocol itself never runs bytecode.
func (t *Table) Dispatch(typeHash, protocol typeid.Hash, args []value.Value, callScript func(typeid.Hash, []value.Value) (value.Value, error)) (value.Value, error) {
	k := key{typeHash, protocol}
	if r, ok := t.lru.Get(k); ok {
		return t.invoke(r, args, callScript)
	}

	if fh, ok := t.up[k]; ok {
		r := resolved{Script: true, FuncHash: fh}
		t.lru.Add(k, r)
		return t.invoke(r, args, callScript)
	}
	// A Unit's own implementations take priority; the host's
	// RuntimeContext is the fallback, matching spec.md §4.4's "merged
	// view of Unit+RuntimeContext".
	if fn, ok := t.rc.Protocol(typeHash, protocol); ok {
		r := resolved{Native: fn}
		t.lru.Add(k, r)
		return t.invoke(r, args, callScript)
	}

	return value.Value{}, diag.New(diag.KindProtocolMissing,
		"no implementation of protocol %#x for type %#x", protocol, typeHash)
}

func (t *Table) invoke(r resolved, args []value.Value, callScript func(typeid.Hash, []value.Value) (value.Value, error)) (value.Value, error) {
	if r.Script {
		return callScript(r.FuncHash, args)
	}
	return r.Native(args)
}
