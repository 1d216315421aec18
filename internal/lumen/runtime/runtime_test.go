package runtime_test

import (
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/runtime"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

func TestRegisterAndLookupFunction(t *testing.T) {
	b := runtime.NewBuilder()
	hash := typeid.Of("std::io::print")
	err := b.RegisterFunction(hash, 1, func(args []value.Value) (value.Value, error) {
		return value.Unit, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	rc := b.Build()
	e, ok := rc.Function(hash)
	if !ok || e.ArgCount != 1 {
		t.Fatalf("got (%+v, %v)", e, ok)
	}
}

func TestDuplicateFunctionHashRejected(t *testing.T) {
	b := runtime.NewBuilder()
	hash := typeid.Of("std::io::print")
	noop := func(args []value.Value) (value.Value, error) { return value.Unit, nil }
	if err := b.RegisterFunction(hash, 1, noop); err != nil {
		t.Fatal(err)
	}
	err := b.RegisterFunction(hash, 1, noop)
	if !diag.Is(err, diag.KindDuplicateTypeHash) {
		t.Fatalf("got %v, want DuplicateTypeHash", err)
	}
}

func TestDuplicateTypeHashRejected(t *testing.T) {
	b := runtime.NewBuilder()
	hash := typeid.Of("std::collections::Vec")
	if err := b.RegisterType(runtime.TypeDescriptor{Hash: hash, Name: "Vec"}); err != nil {
		t.Fatal(err)
	}
	err := b.RegisterType(runtime.TypeDescriptor{Hash: hash, Name: "Vec"})
	if !diag.Is(err, diag.KindDuplicateTypeHash) {
		t.Fatalf("got %v, want DuplicateTypeHash", err)
	}
}

func TestProtocolRegistrationLastWriterWins(t *testing.T) {
	b := runtime.NewBuilder()
	typeHash := typeid.Of("myapp::Point")
	eqProtocol := typeid.Of("lumen::protocol::EQ")

	first := func(args []value.Value) (value.Value, error) { return value.False, nil }
	second := func(args []value.Value) (value.Value, error) { return value.True, nil }
	b.RegisterProtocol(typeHash, eqProtocol, first)
	b.RegisterProtocol(typeHash, eqProtocol, second)

	rc := b.Build()
	fn, ok := rc.Protocol(typeHash, eqProtocol)
	if !ok {
		t.Fatal("expected protocol to be registered")
	}
	v, err := fn(nil)
	if err != nil || v.AsBool() != true {
		t.Fatalf("got (%v, %v), want (true, nil) — later registration should win", v, err)
	}
}

func TestUnknownFunctionLookupFails(t *testing.T) {
	rc := runtime.NewBuilder().Build()
	if _, ok := rc.Function(typeid.Of("nope")); ok {
		t.Fatal("expected lookup of unregistered hash to fail")
	}
}
