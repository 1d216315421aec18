package suspend

import (
	"sync"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// Kind distinguishes which script construct produced a Future, matching
// spec.md §4.5's four suspension-capable call kinds.
type Kind uint8

const (
	KindAsync Kind = iota
	KindGenerator
	KindStream
	KindHost // a foreign future value opaque to the script
)

func (k Kind) String() string {
	switch k {
	case KindAsync:
		return "async"
	case KindGenerator:
		return "generator"
	case KindStream:
		return "stream"
	case KindHost:
		return "host"
	default:
		return "unknown"
	}
}

// SignalKind classifies what a Driver did on one Resume call.
type SignalKind uint8

const (
	// SignalDone means the script body returned or fell off its end;
	// Signal.Value carries the final value.
	SignalDone SignalKind = iota
	// SignalYield means a generator/stream body hit `yield e`;
	// Signal.Value carries e. The body is not finished.
	SignalYield
	// SignalAwait means the body is blocked on another Future produced
	// by an `await` expression; Signal.Awaiting is that Future. The
	// driver must be resumed again, this time with the awaited future's
	// resolved value, once it becomes ready.
	SignalAwait
)

// Signal is what a Driver.Resume call reports.
type Signal struct {
	Kind     SignalKind
	Value    value.Value
	Awaiting *Future // the Future this driver is now blocked awaiting
}

// Driver is anything capable of running a suspended script body forward
// to its next suspension point — concretely, a Vm snapshot primed to
// resume at a specific instruction pointer with a specific stack. Defined
// here as an interface (rather than depending on exec.Vm directly) so
// suspend stays a leaf package that exec depends on, not the reverse.
type Driver interface {
	// Resume runs the driven body forward, delivering sent as the value
	// of the `yield`/`await` expression that last suspended it (ignored
	// on the very first call — generators require an initial
	// resume(unit) "prime", per spec.md §4.5).
	Resume(sent value.Value) (Signal, error)
}

// NativeAwaiter is a host-provided future opaque to script, polled
// directly rather than driven through bytecode.
type NativeAwaiter interface {
	// Poll reports whether the awaiter has a result yet. A non-nil error
	// completes the Future with that error instead of a value.
	Poll() (value.Value, bool, error)
}

// PollResult is the outcome of one Future.Resume/Poll call.
type PollResult struct {
	Ready   bool
	Yielded bool // true: a generator/stream `Yielded(e)`; false with Ready: completion
	Value   value.Value
}

// Future is lumen's single polymorphic suspension cell (spec.md §3.7):
// async fn, generator, stream, and host-future values all share this
// state machine. Its one-shot-per-pending-state resumption discipline is
// adapted from kont's Suspension (step.go): each call to Resume consumes
// the current pending state and, if the body suspends again, installs a
// fresh one — never letting the same pending state be driven twice.
type Future struct {
	mu sync.Mutex

	kind Kind

	done    bool
	outcome Outcome

	driver    Driver
	blockedOn *Future // set while the driver reported SignalAwait

	native NativeAwaiter

	cancel onceToken // guards Cancel against a racing Resume/Poll completion
}

func NewAsync(d Driver) *Future     { return &Future{kind: KindAsync, driver: d} }
func NewGenerator(d Driver) *Future { return &Future{kind: KindGenerator, driver: d} }
func NewStream(d Driver) *Future    { return &Future{kind: KindStream, driver: d} }
func NewHost(n NativeAwaiter) *Future {
	return &Future{kind: KindHost, native: n}
}

func (f *Future) Kind() Kind { return f.kind }

// Cancel marks f as done without running it further, used to drop a
// select statement's losing arms (spec.md §4.6 step 3: "Discard the
// remaining futures … if they hold resources those are released"). Safe
// to call at most meaningfully once; a Cancel racing a Resume/Poll that
// has already completed f is a no-op.
func (f *Future) Cancel() {
	if !f.cancel.claim() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.outcome = Err(diag.New(diag.KindResumeAfterCompletion, "%s cancelled", f.kind))
	if closer, ok := f.driver.(interface{ Close() error }); ok {
		closer.Close()
	}
	if closer, ok := f.native.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// Resume advances a generator or stream, sending sent as the value of the
// `yield` expression it's currently suspended at. Fails with
// ResumeAfterCompletion if the future has already completed, per
// spec.md §4.5's completion invariant.
func (f *Future) Resume(sent value.Value) (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return PollResult{}, diag.New(diag.KindResumeAfterCompletion,
			"resumed a completed %s", f.kind)
	}
	return f.driveLocked(sent)
}

// Poll advances an async fn or host future toward readiness, without a
// caller-supplied send value (the "value" threaded through an internal
// resume, if any, always comes from an awaited inner future). Polling an
// already-completed future simply returns its cached result, per
// spec.md §4.5's "polling again yields the cached value".
func (f *Future) Poll() (PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		if err := f.outcome.Err(); err != nil {
			return PollResult{}, err
		}
		v, _ := f.outcome.Value()
		return PollResult{Ready: true, Value: v}, nil
	}
	if f.kind == KindHost {
		v, ready, err := f.native.Poll()
		if err != nil {
			f.done = true
			f.outcome = Err(err)
			return PollResult{}, err
		}
		if ready {
			f.done = true
			f.outcome = Ok(v)
			return PollResult{Ready: true, Value: v}, nil
		}
		return PollResult{}, nil
	}
	return f.driveLocked(value.Unit)
}

// driveLocked runs the driver forward, resolving any inner await chain
// eagerly as far as it can make progress without blocking, and must be
// called with f.mu held.
func (f *Future) driveLocked(sent value.Value) (PollResult, error) {
	if f.blockedOn != nil {
		inner := f.blockedOn
		res, err := inner.Poll()
		if err != nil {
			f.done = true
			f.outcome = Err(err)
			return PollResult{}, err
		}
		if !res.Ready {
			return PollResult{}, nil
		}
		f.blockedOn = nil
		sent = res.Value
	}

	sig, err := f.driver.Resume(sent)
	if err != nil {
		f.done = true
		f.outcome = Err(err)
		return PollResult{}, err
	}
	switch sig.Kind {
	case SignalDone:
		f.done = true
		f.outcome = Ok(sig.Value)
		return PollResult{Ready: true, Value: sig.Value}, nil
	case SignalYield:
		return PollResult{Ready: true, Yielded: true, Value: sig.Value}, nil
	case SignalAwait:
		f.blockedOn = sig.Awaiting
		return f.driveLocked(value.Unit)
	default:
		return PollResult{}, diag.New(diag.KindMalformedUnit, "unknown suspension signal kind %d", sig.Kind)
	}
}
