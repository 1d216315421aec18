package lumen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/exec"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
	"code.hybscloud.com/lumen/pkg/lumen"
)

// newSeedUnit returns an empty Unit with a "main" entrypoint registered at
// offset 0, the shape every seed scenario below builds its own body on top
// of (spec.md §8.4).
func newSeedUnit() (*unit.Unit, typeid.Hash) {
	u := unit.New()
	hash := typeid.Of("main")
	u.EntryPoints[hash] = 0
	return u, hash
}

func mustNewVm(t *testing.T, u *unit.Unit) *lumen.Vm {
	t.Helper()
	rc := runtime.NewBuilder().Build()
	vm, err := lumen.New(u, rc)
	require.NoError(t, err)
	return vm
}

// TestSeedStackArithmetic covers spec.md §8.4 scenario 1: PushConst(1)
// PushConst(3) Add Return evaluates to 4.
func TestSeedStackArithmetic(t *testing.T) {
	u, mainHash := newSeedUnit()
	u.Constants = []unit.Constant{
		{Kind: unit.ConstInt, Int: 1},
		{Kind: unit.ConstInt, Int: 3},
	}
	u.Instructions = []unit.Inst{
		{Op: unit.OpPushConst, A: 0}, // 0: push 1
		{Op: unit.OpPushConst, A: 1}, // 1: push 3
		{Op: unit.OpAdd},             // 2
		{Op: unit.OpReturn},          // 3
	}
	u.Functions[mainHash] = unit.FunctionDesc{Hash: mainHash, Entry: 0, ArgCount: 0, CallKind: unit.CallPlain}

	vm := mustNewVm(t, u)
	require.NoError(t, vm.SetEntrypoint("main"))

	result, err := vm.Run()
	require.NoError(t, err)
	assert.EqualValues(t, 4, result.AsInt())
}

// TestSeedGeneratorFibonacci covers spec.md §8.4 scenario 2: a Fibonacci
// generator yielding 0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144.
//
// The instruction set has no opcode that overwrites a local slot in
// place, so the loop-carried (a, b) state can't be a literal back-edge
// Jump loop. Instead the generator body tail-calls itself with (b, a+b)
// as its new argument pair — CallOffset gives each recursion its own
// frame, so Copy(0)/Copy(1) always read the current recursion's a, b
// regardless of depth:
//
//	a=Copy(0); yield a; pop sent
//	b=Copy(1); a=Copy(0); push a+b
//	tail-call self with (b, a+b)
func TestSeedGeneratorFibonacci(t *testing.T) {
	const genEntry = 4
	u, mainHash := newSeedUnit()
	u.Constants = []unit.Constant{
		{Kind: unit.ConstInt, Int: 0},
		{Kind: unit.ConstInt, Int: 1},
	}
	u.Instructions = []unit.Inst{
		{Op: unit.OpPushConst, A: 0},                                            // 0: push 0
		{Op: unit.OpPushConst, A: 1},                                            // 1: push 1
		{Op: unit.OpCallOffset, A: genEntry, B: 2, C: int32(unit.CallGenerator)}, // 2: spawn generator(0, 1)
		{Op: unit.OpReturn},                                                     // 3: entry's own return

		{Op: unit.OpCopy, A: 0},                                           // 4: gen: push a
		{Op: unit.OpYield},                                                // 5
		{Op: unit.OpPop},                                                  // 6: discard resumed value
		{Op: unit.OpCopy, A: 1},                                           // 7: push b
		{Op: unit.OpCopy, A: 0},                                           // 8: push a
		{Op: unit.OpAdd},                                                 // 9: a+b
		{Op: unit.OpCallOffset, A: genEntry, B: 2, C: int32(unit.CallPlain)}, // 10: recurse(b, a+b)
		{Op: unit.OpReturn},                                               // 11: gen's return
	}
	u.Functions[mainHash] = unit.FunctionDesc{Hash: mainHash, Entry: 0, ArgCount: 0, CallKind: unit.CallPlain}

	vm := mustNewVm(t, u)
	require.NoError(t, vm.SetEntrypoint("main"))

	result, err := vm.Run()
	require.NoError(t, err)

	f, err := exec.FutureOf(result)
	require.NoError(t, err)
	gen := suspend.AsGenerator(f)

	want := []int64{0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144}
	for i, w := range want {
		s, err := gen.Next()
		require.NoErrorf(t, err, "iteration %d", i)
		assert.Falsef(t, s.Done, "iteration %d: expected a yield, not completion", i)
		assert.EqualValuesf(t, w, s.Value.AsInt(), "iteration %d", i)
	}
}

// TestSeedSelectTimeout covers spec.md §8.4 scenario 3: a select between a
// fast host future and a slow one that never resolves picks the fast arm,
// and the slow arm's resources are released (its Close called) before the
// arm body runs.
func TestSeedSelectTimeout(t *testing.T) {
	u, mainHash := newSeedUnit()
	u.Constants = []unit.Constant{
		{Kind: unit.ConstInt, Int: 7},
	}
	u.Instructions = []unit.Inst{
		{Op: unit.OpEnterSelect, A: 2}, // 0: consumes the two futures passed as args
		{Op: unit.OpAwaitArm},          // 1
		{Op: unit.OpDispatchArm},       // 2: pushes [Index, Value]
		{Op: unit.OpReturn},            // 3: returns Value (top of stack)

		{Op: unit.OpPushConst, A: 0}, // unreachable body kept only so the
		{Op: unit.OpReturn},          // constant pool index above is legal
	}
	u.Functions[mainHash] = unit.FunctionDesc{Hash: mainHash, Entry: 0, ArgCount: 2, CallKind: unit.CallPlain}

	vm := mustNewVm(t, u)
	require.NoError(t, vm.SetEntrypoint("main"))

	fast, err := exec.WrapHostFuture(vm.Heap(), &fixedAwaiter{v: value.Int(42)})
	require.NoError(t, err)
	slowClosed := false
	slow, err := exec.WrapHostFuture(vm.Heap(), &neverAwaiter{closed: &slowClosed})
	require.NoError(t, err)

	result, err := vm.Run(fast, slow)
	require.NoError(t, err)
	assert.EqualValues(t, 42, result.AsInt())
	assert.True(t, slowClosed, "expected the losing arm's resources to be released")
}

// fixedAwaiter is always immediately ready.
type fixedAwaiter struct{ v value.Value }

func (a *fixedAwaiter) Poll() (value.Value, bool, error) { return a.v, true, nil }

// neverAwaiter never resolves on its own; Close (called by Future.Cancel
// when it loses a select) flips *closed so a test can observe the release.
type neverAwaiter struct{ closed *bool }

func (a *neverAwaiter) Poll() (value.Value, bool, error) { return value.Value{}, false, nil }
func (a *neverAwaiter) Close() error {
	*a.closed = true
	return nil
}

// TestSeedMoveAndReadPanic covers spec.md §8.4 scenario 4: reading a field
// off a value after its sole handle has been moved out panics NotReadable,
// with a span pointing at the read.
func TestSeedMoveAndReadPanic(t *testing.T) {
	heap := value.NewHeap(nil)
	pointHash := typeid.Of("test::Point")
	point, err := heap.NewStruct(pointHash, []string{"field"}, map[string]value.Value{
		"field": value.Int(42),
	})
	require.NoError(t, err)

	// Simulate `drop(a)`/a move-out of a's sole handle: the compiled
	// lowering of a real `move` isn't this implementation's concern
	// (compilation is out of scope), but the cell-level effect is exactly
	// value.Take — the same boundary value_test.go's
	// TestIsReadableAfterDrop documents.
	_, err = value.Take(point)
	require.NoError(t, err)

	u, mainHash := newSeedUnit()
	u.Constants = []unit.Constant{
		{Kind: unit.ConstString, Str: "field"},
	}
	u.Instructions = []unit.Inst{
		{Op: unit.OpGet, A: 0},
		{Op: unit.OpReturn},
	}
	u.DebugMap = map[int]unit.SourceSpan{
		0: {File: "move_and_read.lum", Line: 3, Col: 9},
	}
	u.Functions[mainHash] = unit.FunctionDesc{Hash: mainHash, Entry: 0, ArgCount: 1, CallKind: unit.CallPlain}

	rc := runtime.NewBuilder().Build()
	vm, err := lumen.New(u, rc)
	require.NoError(t, err)
	require.NoError(t, vm.SetEntrypoint("main"))

	_, err = vm.Run(point)
	require.Error(t, err)
	p, ok := err.(*diag.Panic)
	require.True(t, ok, "expected a *diag.Panic, got %T", err)
	assert.Equal(t, diag.KindNotReadable, p.Kind)
	require.NotEmpty(t, p.Spans)
	assert.Equal(t, "move_and_read.lum", p.Spans[0].File)
}

// TestSeedClosureMoveSemantics covers spec.md §8.4 scenario 5: a `move`
// closure takes ownership of its capture, so the original binding is no
// longer readable afterward, while the closure itself still works off its
// own taken copy.
func TestSeedClosureMoveSemantics(t *testing.T) {
	heap := value.NewHeap(nil)
	n, err := heap.NewTuple([]value.Value{value.Int(1)})
	require.NoError(t, err)
	require.True(t, value.IsReadable(n))

	// `move |x| n + x` takes n's sole handle at closure-construction time;
	// value.Take is that cell-level effect (the compiled lowering itself
	// is out of scope, same boundary as scenario 4).
	taken, err := value.Take(n)
	require.NoError(t, err)
	captured := taken.(*value.TuplePayload).Items[0]

	assert.False(t, value.IsReadable(n), "expected n to no longer be readable through its original binding after the move")

	closure, err := heap.NewFunction(value.FunctionPayload{
		Native: func(args []value.Value) (value.Value, error) {
			return value.Int(captured.AsInt() + args[0].AsInt()), nil
		},
		Kind:  value.CallPlain,
		Moved: true,
	})
	require.NoError(t, err)

	payload, ok := value.PayloadOf(closure)
	require.True(t, ok)
	fp, ok := payload.(*value.FunctionPayload)
	require.True(t, ok)
	result, err := fp.Native([]value.Value{value.Int(2)})
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.AsInt())
}

// TestSeedBudgetExhaustion covers spec.md §8.4 scenario 6: an instruction
// budget smaller than a loop's iteration count surfaces as a
// KindBudgetExceeded panic with the instruction pointer left inside the
// loop body.
func TestSeedBudgetExhaustion(t *testing.T) {
	u, mainHash := newSeedUnit()
	u.Instructions = []unit.Inst{
		{Op: unit.OpJump, A: 0}, // a 10,000-iteration loop's body stands in
	}
	u.Functions[mainHash] = unit.FunctionDesc{Hash: mainHash, Entry: 0, ArgCount: 0, CallKind: unit.CallPlain}

	rc := runtime.NewBuilder().Build()
	vm, err := lumen.New(u, rc, lumen.WithBudget(100, 0))
	require.NoError(t, err)
	require.NoError(t, vm.SetEntrypoint("main"))

	_, err = vm.Run()
	require.Error(t, err)
	p, ok := err.(*diag.Panic)
	require.True(t, ok, "expected a *diag.Panic, got %T", err)
	assert.Equal(t, diag.KindBudgetExceeded, p.Kind)
	assert.Zero(t, p.IP)
}
