package lumen

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Call is one entrypoint invocation submitted to a Pool: which function to
// run, its sandbox limits, and its arguments.
type Call struct {
	Entry             string
	InstructionBudget int
	MemoryLimit       int
	Args              []value.Value
}

// Pool is a bounded pool of Vms sharing one Unit + RuntimeContext, admitted
// by a semaphore and fanned out/in with an errgroup (spec.md §5's "the host
// typically pools Vms, cheaply cloning the Unit + RuntimeContext
// references"). Each Call still gets its own Vm — a Vm is not itself safe
// for concurrent use — the pool only bounds how many run at once.
type Pool struct {
	u   *unit.Unit
	rc  *runtime.RuntimeContext
	sem *semaphore.Weighted
}

// NewPool returns a Pool over u/rc admitting at most maxConcurrent
// simultaneous executions.
func NewPool(u *unit.Unit, rc *runtime.RuntimeContext, maxConcurrent int64) *Pool {
	return &Pool{u: u, rc: rc, sem: semaphore.NewWeighted(maxConcurrent)}
}

// Run admits one Call, blocking until the pool has capacity or ctx is
// cancelled, then executes it on a fresh Vm.
func (p *Pool) Run(ctx context.Context, c Call) (value.Value, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return value.Value{}, err
	}
	defer p.sem.Release(1)

	vm, err := New(p.u, p.rc, WithBudget(c.InstructionBudget, c.MemoryLimit))
	if err != nil {
		return value.Value{}, err
	}
	if err := vm.SetEntrypoint(c.Entry); err != nil {
		return value.Value{}, err
	}
	return vm.Run(c.Args...)
}

// RunAll fans calls out over the pool concurrently (each still gated by the
// same admission semaphore) and fans their results back in, in calls'
// original order. The first Call to fail cancels ctx for the rest via
// errgroup's shared context, matching errgroup.Group's standard
// fail-fast semantics.
func (p *Pool) RunAll(ctx context.Context, calls []Call) ([]value.Value, error) {
	results := make([]value.Value, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range calls {
		i, c := i, c
		g.Go(func() error {
			v, err := p.Run(gctx, c)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
