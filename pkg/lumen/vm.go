package lumen

import (
	"time"

	"code.hybscloud.com/lumen/internal/lumen/budget"
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/exec"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Option configures a Vm at construction time.
type Option func(*vmOptions)

type vmOptions struct {
	instructionBudget int
	memoryLimit       int
	protocolCacheSize int
}

// WithBudget bounds the Vm's execution: instructions <= 0 means unlimited
// instructions, memoryBytes <= 0 means unlimited memory (spec.md §4.7).
func WithBudget(instructions, memoryBytes int) Option {
	return func(o *vmOptions) {
		o.instructionBudget = instructions
		o.memoryLimit = memoryBytes
	}
}

// WithProtocolCacheSize overrides the dispatch table's LRU front-cache
// size. Zero keeps protocol.NewTable's own default.
func WithProtocolCacheSize(n int) Option {
	return func(o *vmOptions) { o.protocolCacheSize = n }
}

// Vm is the host-facing handle over one execution: a Unit bound to a
// RuntimeContext, with its own heap and instruction budget, ready to run an
// entrypoint to completion (spec.md §6.1). Unlike internal/lumen/exec.Vm
// (one function-body activation), a host Vm owns the long-lived
// collaborators an execution needs and constructs a fresh exec.Vm per Run
// call.
type Vm struct {
	u         *unit.Unit
	rc        *runtime.RuntimeContext
	protocols *protocol.Table
	heap      *value.Heap
	budget    *budget.Counter

	entry    int
	entrySet bool
}

// New builds a Vm over u and rc. Its protocol table is built with an empty
// protocol.UnitProtocols, so protocol dispatch reaches only rc's native
// implementations; u's own `impl Protocol for Type` functions are not
// registered with it.
func New(u *unit.Unit, rc *runtime.RuntimeContext, opts ...Option) (*Vm, error) {
	var o vmOptions
	for _, opt := range opts {
		opt(&o)
	}
	bud := budget.New(o.instructionBudget, o.memoryLimit)
	heap := value.NewHeap(bud)
	pt, err := protocol.NewTable(u, protocol.NewUnitProtocols(), rc, o.protocolCacheSize)
	if err != nil {
		return nil, err
	}
	return &Vm{u: u, rc: rc, protocols: pt, heap: heap, budget: bud}, nil
}

// Heap exposes the Vm's heap so a host can mint argument Values with
// ToScript before calling Run.
func (vm *Vm) Heap() *value.Heap { return vm.heap }

// SetEntrypoint resolves name (its fully-qualified item path, hashed the
// same way any other item is — spec.md §3.3) against u's function table
// and records it as the instruction offset Run starts at.
func (vm *Vm) SetEntrypoint(name string) error {
	hash := typeid.Of(name)
	entry, ok := vm.u.EntryPoints[hash]
	if !ok {
		fd, ok := vm.u.Function(hash)
		if !ok {
			return diag.New(diag.KindUnknownFunction, "no entrypoint named %q", name)
		}
		entry = fd.Entry
	}
	vm.entry = entry
	vm.entrySet = true
	return nil
}

// pollBackoff is how long Run waits between unready polls of an
// entrypoint's future when it blocks on a host future that is not yet
// ready. A real host embedding typically replaces this busy-poll with its
// own event loop driving the Future directly; Run's loop is the
// convenience path for a host that just wants run-to-completion.
const pollBackoff = 100 * time.Microsecond

// Run drives the entrypoint forward from args to completion, regardless of
// whether its body ever suspends: an await on a host future that isn't
// immediately ready is retried until it is, rather than Run returning a
// partial result (spec.md §4.5/§6.1's "Run" contract). SetEntrypoint must
// be called first.
func (vm *Vm) Run(args ...value.Value) (value.Value, error) {
	if !vm.entrySet {
		return value.Value{}, diag.New(diag.KindUnknownFunction, "Run called before SetEntrypoint")
	}
	ev := exec.New(vm.u, vm.rc, vm.protocols, vm.budget, vm.heap, vm.entry, args)
	fut := suspend.NewAsync(ev)
	for {
		r, err := fut.Poll()
		if err != nil {
			return value.Value{}, err
		}
		if r.Ready {
			return r.Value, nil
		}
		time.Sleep(pollBackoff)
	}
}
