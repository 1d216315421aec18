package unit_test

import (
	"bytes"
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/typeid"
	"code.hybscloud.com/lumen/internal/lumen/unit"
)

func buildSample() *unit.Unit {
	u := unit.New()
	u.Instructions = []unit.Inst{
		{Op: unit.OpPushConst, A: 0},
		{Op: unit.OpReturn},
	}
	u.Constants = []unit.Constant{
		{Kind: unit.ConstInt, Int: 42},
		{Kind: unit.ConstString, Str: "hello"},
	}
	hash := typeid.Of("myapp::main")
	fd := unit.FunctionDesc{Hash: hash, Entry: 0, ArgCount: 0, CallKind: unit.CallPlain}
	u.FunctionsBy = []unit.FunctionDesc{fd}
	u.Functions[hash] = fd
	u.EntryPoints[hash] = 0

	th := typeid.Of("myapp::Point")
	u.RTTI[th] = unit.TypeLayout{
		Hash: th, Name: "Point",
		Fields: []unit.FieldLayout{{Name: "x", Index: 0}, {Name: "y", Index: 1}},
	}
	return u
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	u := buildSample()
	var buf bytes.Buffer
	if err := unit.Encode(&buf, u); err != nil {
		t.Fatal(err)
	}
	got, err := unit.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Instructions) != 2 || got.Instructions[0].Op != unit.OpPushConst {
		t.Fatalf("got %+v", got.Instructions)
	}
	if len(got.Constants) != 2 || got.Constants[0].Int != 42 || got.Constants[1].Str != "hello" {
		t.Fatalf("got %+v", got.Constants)
	}
	hash := typeid.Of("myapp::main")
	fd, ok := got.Function(hash)
	if !ok || fd.Entry != 0 {
		t.Fatalf("got (%+v, %v)", fd, ok)
	}
	th := typeid.Of("myapp::Point")
	layout, ok := got.Layout(th)
	if !ok || layout.Name != "Point" || len(layout.Fields) != 2 {
		t.Fatalf("got (%+v, %v)", layout, ok)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, 1, 0})
	if _, err := unit.Decode(buf); err == nil {
		t.Fatal("expected bad magic to fail loudly")
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	u := buildSample()
	var buf bytes.Buffer
	if err := unit.Encode(&buf, u); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	// Corrupt the version field (bytes 4-5, little-endian uint16) to an
	// unsupported value.
	raw[4] = 0xff
	raw[5] = 0xff
	if _, err := unit.Decode(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected version mismatch to fail loudly")
	}
}

func TestSubUnitConstantRoundTrip(t *testing.T) {
	inner := buildSample()
	outer := unit.New()
	outer.Constants = []unit.Constant{{Kind: unit.ConstSubUnit, SubUnit: inner}}

	var buf bytes.Buffer
	if err := unit.Encode(&buf, outer); err != nil {
		t.Fatal(err)
	}
	got, err := unit.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Constants[0].SubUnit == nil || len(got.Constants[0].SubUnit.Instructions) != 2 {
		t.Fatalf("got %+v", got.Constants[0].SubUnit)
	}
}

func TestDebugMapSidecarRoundTrip(t *testing.T) {
	u := buildSample()
	u.DebugMap = map[int]unit.SourceSpan{
		0: {File: "main.lm", Line: 1, Col: 1},
		1: {File: "main.lm", Line: 2, Col: 5},
	}
	var buf bytes.Buffer
	if err := unit.EncodeDebugMap(&buf, u); err != nil {
		t.Fatal(err)
	}

	got := unit.New()
	if err := unit.DecodeDebugMap(&buf, got); err != nil {
		t.Fatal(err)
	}
	span, ok := got.Span(1)
	if !ok || span.Line != 2 || span.Col != 5 {
		t.Fatalf("got (%+v, %v)", span, ok)
	}
}
