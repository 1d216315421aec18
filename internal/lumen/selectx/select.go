// Package selectx implements lumen's `select` arm resolver (spec.md
// §4.6): evaluate each arm's future expression in source order, poll them
// concurrently, and run the first arm to become ready, cancelling the
// rest.
package selectx

import (
	"runtime"
	"sync"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Arm is one `select` branch: a future to await and the source-order
// index used to break ties when more than one arm is ready on the same
// poll (spec.md §4.6 step 5).
type Arm struct {
	Future *suspend.Future
	Index  int
}

// Result identifies the winning arm and the value its future resolved
// to — the value a `select` statement binds its arm's pattern against.
type Result struct {
	Index int
	Value value.Value
}

// Resolve polls arms concurrently until one becomes ready, returning the
// smallest-index ready arm on each poll round (the stable tie-break), and
// cancels every other arm's future before returning. A future that was
// already ready before the first poll still counts as a winner — Resolve
// does not special-case it, since suspend.Future.Poll on an already-ready
// future simply returns Ready immediately (spec.md §4.6's "the resolver
// does not forcibly suspend").
func Resolve(arms []Arm) (Result, error) {
	if len(arms) == 0 {
		return Result{}, diag.New(diag.KindMalformedUnit, "select with no arms")
	}

	type outcome struct {
		idx   int
		ready bool
		val   value.Value
		err   error
	}

	for {
		results := make([]outcome, len(arms))
		var wg sync.WaitGroup
		wg.Add(len(arms))
		for i, arm := range arms {
			go func(i int, arm Arm) {
				defer wg.Done()
				r, err := arm.Future.Poll()
				results[i] = outcome{idx: arm.Index, ready: r.Ready, val: r.Value, err: err}
			}(i, arm)
		}
		wg.Wait()

		winner := -1
		for i, r := range results {
			if r.err != nil {
				cancelAllExcept(arms, -1)
				return Result{}, r.err
			}
			if r.ready && (winner == -1 || arms[i].Index < arms[winner].Index) {
				winner = i
			}
		}

		if winner >= 0 {
			cancelAllExcept(arms, winner)
			return Result{Index: arms[winner].Index, Value: results[winner].val}, nil
		}
		// No arm ready yet: yield briefly and re-poll. A real host
		// embedding typically drives this loop from its own async
		// runtime (e.g. parked on a channel/epoll wakeup) rather than
		// spin-polling; this package's contract is the resolution
		// semantics, not the wakeup mechanism the host supplies.
		runtime.Gosched()
	}
}

func cancelAllExcept(arms []Arm, keep int) {
	for i, arm := range arms {
		if i != keep {
			arm.Future.Cancel()
		}
	}
}
