package suspend_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// fibDriver yields successive Fibonacci numbers, completing after count
// yields with the final value — a minimal stand-in for a compiled
// generator body.
type fibDriver struct {
	a, b int64
	left int
}

func (d *fibDriver) Resume(sent value.Value) (suspend.Signal, error) {
	if d.left == 0 {
		return suspend.Signal{Kind: suspend.SignalDone, Value: value.Int(d.a)}, nil
	}
	d.left--
	out := d.a
	d.a, d.b = d.b, d.a+d.b
	return suspend.Signal{Kind: suspend.SignalYield, Value: value.Int(out)}, nil
}

func TestGeneratorYieldsThenCompletes(t *testing.T) {
	g := suspend.AsGenerator(suspend.NewGenerator(&fibDriver{a: 0, b: 1, left: 3}))

	var yielded []int64
	for {
		st, err := g.Next()
		if err != nil {
			t.Fatal(err)
		}
		if st.Done {
			break
		}
		yielded = append(yielded, st.Value.AsInt())
	}
	if len(yielded) != 3 || yielded[0] != 0 || yielded[1] != 1 || yielded[2] != 1 {
		t.Fatalf("got %v, want [0 1 1]", yielded)
	}
}

func TestResumeAfterCompletionFails(t *testing.T) {
	g := suspend.AsGenerator(suspend.NewGenerator(&fibDriver{a: 1, b: 1, left: 0}))
	if _, err := g.Next(); err != nil {
		t.Fatal(err)
	}
	_, err := g.Next()
	if !diag.Is(err, diag.KindResumeAfterCompletion) {
		t.Fatalf("got %v, want ResumeAfterCompletion", err)
	}
}

// doneDriver completes immediately with a fixed value, standing in for a
// plain async fn body with no internal awaits.
type doneDriver struct{ v value.Value }

func (d doneDriver) Resume(value.Value) (suspend.Signal, error) {
	return suspend.Signal{Kind: suspend.SignalDone, Value: d.v}, nil
}

func TestAsyncPollCachesResult(t *testing.T) {
	f := suspend.NewAsync(doneDriver{v: value.Int(7)})
	r1, err := f.Poll()
	if err != nil || !r1.Ready || r1.Value.AsInt() != 7 {
		t.Fatalf("got (%+v, %v)", r1, err)
	}
	r2, err := f.Poll()
	if err != nil || !r2.Ready || r2.Value.AsInt() != 7 {
		t.Fatalf("polling a completed future should keep returning the cached value, got (%+v, %v)", r2, err)
	}
}

// chainDriver awaits inner once, then completes with inner's value plus
// one, standing in for `async fn outer() { return inner().await + 1 }`.
type chainDriver struct {
	inner  *suspend.Future
	waited bool
}

func (d *chainDriver) Resume(sent value.Value) (suspend.Signal, error) {
	if !d.waited {
		d.waited = true
		return suspend.Signal{Kind: suspend.SignalAwait, Awaiting: d.inner}, nil
	}
	return suspend.Signal{Kind: suspend.SignalDone, Value: value.Int(sent.AsInt() + 1)}, nil
}

type manualAwaiter struct {
	ready bool
	v     value.Value
}

func (m *manualAwaiter) Poll() (value.Value, bool, error) { return m.v, m.ready, nil }

func TestNestedAwaitBlocksThenResolves(t *testing.T) {
	awaiter := &manualAwaiter{}
	inner := suspend.NewHost(awaiter)
	outer := suspend.NewAsync(&chainDriver{inner: inner})

	r, err := outer.Poll()
	if err != nil {
		t.Fatal(err)
	}
	if r.Ready {
		t.Fatal("expected outer to still be pending while inner is not ready")
	}

	awaiter.ready = true
	awaiter.v = value.Int(41)

	r, err = outer.Poll()
	if err != nil || !r.Ready || r.Value.AsInt() != 42 {
		t.Fatalf("got (%+v, %v), want (42, nil)", r, err)
	}
}

func TestCancelMarksFutureDone(t *testing.T) {
	f := suspend.NewGenerator(&fibDriver{a: 0, b: 1, left: 100})
	f.Cancel()
	if _, err := f.Resume(value.Unit); !diag.Is(err, diag.KindResumeAfterCompletion) {
		t.Fatalf("got %v, want ResumeAfterCompletion after cancel", err)
	}
}

func TestBracketAlwaysReleases(t *testing.T) {
	released := false
	_, err := suspend.Bracket(
		func() (int, error) { return 1, nil },
		func(int) error { released = true; return nil },
		func(int) (value.Value, error) { return value.Value{}, diag.New(diag.KindUserPanic, "boom") },
	)
	if err == nil {
		t.Fatal("expected the use error to propagate")
	}
	if !released {
		t.Fatal("expected release to run even though use failed")
	}
}
