package protocol_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/protocol"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

func noScriptCall(typeid.Hash, []value.Value) (value.Value, error) {
	panic("script call not expected in this test")
}

func TestDispatchFallsBackToRuntimeContext(t *testing.T) {
	pointHash := typeid.Of("myapp::Point")
	b := runtime.NewBuilder()
	b.RegisterProtocol(pointHash, protocol.Eq, func(args []value.Value) (value.Value, error) {
		return value.True, nil
	})
	rc := b.Build()

	tbl, err := protocol.NewTable(unit.New(), protocol.NewUnitProtocols(), rc, 0)
	if err != nil {
		t.Fatal(err)
	}
	v, err := tbl.Dispatch(pointHash, protocol.Eq, nil, noScriptCall)
	if err != nil || !v.AsBool() {
		t.Fatalf("got (%v, %v), want (true, nil)", v, err)
	}
}

func TestDispatchPrefersUnitImplementation(t *testing.T) {
	pointHash := typeid.Of("myapp::Point")
	fnHash := typeid.Of("myapp::Point::eq")

	up := protocol.NewUnitProtocols()
	up.Register(pointHash, protocol.Eq, fnHash)

	b := runtime.NewBuilder()
	b.RegisterProtocol(pointHash, protocol.Eq, func(args []value.Value) (value.Value, error) {
		t.Fatal("runtime protocol should not be consulted when the Unit has its own impl")
		return value.Value{}, nil
	})
	rc := b.Build()

	tbl, err := protocol.NewTable(unit.New(), up, rc, 0)
	if err != nil {
		t.Fatal(err)
	}
	called := false
	_, err = tbl.Dispatch(pointHash, protocol.Eq, nil, func(h typeid.Hash, args []value.Value) (value.Value, error) {
		called = true
		if h != fnHash {
			t.Fatalf("got %v, want %v", h, fnHash)
		}
		return value.True, nil
	})
	if err != nil || !called {
		t.Fatalf("got (called=%v, err=%v)", called, err)
	}
}

func TestDispatchMissingProtocolPanics(t *testing.T) {
	rc := runtime.NewBuilder().Build()
	tbl, err := protocol.NewTable(unit.New(), protocol.NewUnitProtocols(), rc, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tbl.Dispatch(typeid.Of("myapp::Widget"), protocol.Eq, nil, noScriptCall)
	if !diag.Is(err, diag.KindProtocolMissing) {
		t.Fatalf("got %v, want ProtocolMissing", err)
	}
}

func TestDispatchCachesResolution(t *testing.T) {
	pointHash := typeid.Of("myapp::Point")
	calls := 0
	b := runtime.NewBuilder()
	b.RegisterProtocol(pointHash, protocol.Eq, func(args []value.Value) (value.Value, error) {
		calls++
		return value.True, nil
	})
	rc := b.Build()
	tbl, err := protocol.NewTable(unit.New(), protocol.NewUnitProtocols(), rc, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := tbl.Dispatch(pointHash, protocol.Eq, nil, noScriptCall); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 3 {
		t.Fatalf("got %d handler invocations, want 3 (caching the resolution, not the result)", calls)
	}
}
