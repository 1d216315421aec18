package diag_test

import (
	"strings"
	"testing"

	"code.hybscloud.com/lumen/internal/lumen/diag"
)

func TestNewFormatsMessage(t *testing.T) {
	p := diag.New(diag.KindTypeMismatch, "cannot compare %s and %s", "int", "bool")
	if p.Message != "cannot compare int and bool" {
		t.Fatalf("got %q", p.Message)
	}
	if p.Kind != diag.KindTypeMismatch {
		t.Fatalf("got %v, want TypeMismatch", p.Kind)
	}
}

func TestIsMatchesKind(t *testing.T) {
	var err error = diag.New(diag.KindBudgetExceeded, "out of steps")
	if !diag.Is(err, diag.KindBudgetExceeded) {
		t.Fatal("expected Is to match")
	}
	if diag.Is(err, diag.KindAllocationError) {
		t.Fatal("expected Is to reject a mismatched kind")
	}
}

func TestIsRejectsPlainErrors(t *testing.T) {
	if diag.Is(errString("boom"), diag.KindUserPanic) {
		t.Fatal("expected a non-*Panic error to never match")
	}
}

func TestWithSpanPrependsInnermostFirst(t *testing.T) {
	p := diag.New(diag.KindUserPanic, "boom")
	p = p.WithSpan(diag.Span{File: "outer.lm", Line: 10})
	p = p.WithSpan(diag.Span{File: "inner.lm", Line: 2})
	if p.Spans[0].File != "inner.lm" || p.Spans[1].File != "outer.lm" {
		t.Fatalf("got %+v, want inner first", p.Spans)
	}
}

func TestErrorIncludesInnermostSpan(t *testing.T) {
	p := diag.New(diag.KindUserPanic, "boom").WithSpan(diag.Span{File: "a.lm", Line: 3, Col: 1})
	if !strings.Contains(p.Error(), "a.lm:3:1") {
		t.Fatalf("got %q, want span rendered", p.Error())
	}
}

func TestKindStringUnknown(t *testing.T) {
	if diag.Kind(9999).String() != "Unknown" {
		t.Fatalf("got %q, want Unknown", diag.Kind(9999).String())
	}
}

type errString string

func (e errString) Error() string { return string(e) }
