// Package budget implements lumen's per-execution sandbox limits: an
// instruction counter and a memory-allocation counter, each independently
// optional (spec.md §4.7). Counter implements value.Allocator directly so
// a Vm's Heap can charge allocations against it without value importing
// this package.
package budget

import (
	"sync/atomic"

	"github.com/google/uuid"

	"code.hybscloud.com/lumen/internal/lumen/diag"
)

// unlimited is the sentinel stored in a limit field to mean "no cap".
const unlimited = -1

// Counter tracks one execution's instruction budget and memory limit.
// Crossing an `await` suspends a script-backed Future with its own Vm
// snapshot (spec.md §3.7); the Counter travels with that snapshot so the
// remaining budget is preserved across the suspension, per spec.md §4.7's
// "crossing await suspends the budget counter".
type Counter struct {
	// ID identifies this execution for diagnostics and for correlating
	// budget-exceeded panics back to a specific host-visible run.
	ID uuid.UUID

	instructionsLeft int64 // unlimited if negative
	bytesLeft        int64 // unlimited if negative
}

// New creates a Counter. instructionBudget <= 0 means unlimited
// instructions; memoryLimit <= 0 means unlimited memory.
func New(instructionBudget, memoryLimit int) *Counter {
	c := &Counter{ID: uuid.New()}
	if instructionBudget > 0 {
		c.instructionsLeft = int64(instructionBudget)
	} else {
		c.instructionsLeft = unlimited
	}
	if memoryLimit > 0 {
		c.bytesLeft = int64(memoryLimit)
	} else {
		c.bytesLeft = unlimited
	}
	return c
}

// Tick decrements the instruction counter by one, called once per
// executed instruction by the instruction loop. Returns a BudgetExceeded
// panic when the budget is exhausted; the VM is expected to stop
// executing immediately on a non-nil return, per spec.md's "on zero the
// VM returns a panic BudgetExceeded".
func (c *Counter) Tick() error {
	if c.instructionsLeft < 0 {
		return nil // unlimited
	}
	if atomic.AddInt64(&c.instructionsLeft, -1) < 0 {
		return diag.New(diag.KindBudgetExceeded, "instruction budget exhausted")
	}
	return nil
}

// Charge implements value.Allocator: it increments the memory counter by
// n bytes, failing if doing so would exceed the limit. Unlike Tick's
// one-at-a-time decrement, Charge can fail the specific allocation that
// would overflow the limit without having already committed to it.
func (c *Counter) Charge(n int) error {
	if c.bytesLeft < 0 {
		return nil // unlimited
	}
	for {
		cur := atomic.LoadInt64(&c.bytesLeft)
		if int64(n) > cur {
			return diag.New(diag.KindAllocationError,
				"allocation of %d bytes exceeds remaining memory limit of %d", n, cur)
		}
		if atomic.CompareAndSwapInt64(&c.bytesLeft, cur, cur-int64(n)) {
			return nil
		}
	}
}

// InstructionsRemaining reports the instruction counter's current value,
// or -1 if unlimited. Exposed for diagnostics and for the §8.4 budget
// scenario's "exactly N instructions having been executed" assertion.
func (c *Counter) InstructionsRemaining() int64 {
	return atomic.LoadInt64(&c.instructionsLeft)
}

// BytesRemaining reports the memory counter's current value, or -1 if
// unlimited.
func (c *Counter) BytesRemaining() int64 {
	return atomic.LoadInt64(&c.bytesLeft)
}

// Snapshot captures the counter's current remaining budget for embedding
// in a suspended Future's Vm snapshot (spec.md §3.7). Restore reinstates
// it onto a freshly-resumed Counter — the same ID is kept so diagnostics
// can still correlate the resumed execution with the one that suspended.
type Snapshot struct {
	ID               uuid.UUID
	InstructionsLeft int64
	BytesLeft        int64
}

func (c *Counter) Snapshot() Snapshot {
	return Snapshot{
		ID:               c.ID,
		InstructionsLeft: atomic.LoadInt64(&c.instructionsLeft),
		BytesLeft:        atomic.LoadInt64(&c.bytesLeft),
	}
}

// Restore rebuilds a Counter from a previously taken Snapshot.
func Restore(s Snapshot) *Counter {
	c := &Counter{ID: s.ID}
	atomic.StoreInt64(&c.instructionsLeft, s.InstructionsLeft)
	atomic.StoreInt64(&c.bytesLeft, s.BytesLeft)
	return c
}
