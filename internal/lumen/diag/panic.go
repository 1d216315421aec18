// Package diag provides the typed panic surface and structured logging
// used throughout lumen's execution substrate.
package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a runtime panic without binding it to a specific Go type
// name, matching the taxonomy spec'd as "kinds, not type names".
type Kind int

const (
	// Type errors.
	KindTypeMismatch Kind = iota
	KindProtocolMissing
	KindCoercionFailed

	// Access errors.
	KindNotReadable
	KindNotWritable
	KindNotOwned

	// Arithmetic errors.
	KindIntegerOverflow
	KindDivisionByZero

	// Control-flow errors.
	KindResumeAfterCompletion
	KindAwaitCompletedFuture
	KindWrongCallKind

	// Lookup errors.
	KindUnknownFunction
	KindUnknownVariant
	KindUnknownField

	// Resource errors.
	KindBudgetExceeded
	KindAllocationError

	// Format/IO errors.
	KindFormatError

	// User errors.
	KindUserPanic

	// Internal consistency errors — malformed Unit, not reachable from
	// well-formed scripts.
	KindMalformedUnit
	KindDuplicateTypeHash
	KindStackUnderflow
)

var kindNames = [...]string{
	"TypeMismatch", "ProtocolMissing", "CoercionFailed",
	"NotReadable", "NotWritable", "NotOwned",
	"IntegerOverflow", "DivisionByZero",
	"ResumeAfterCompletion", "AwaitCompletedFuture", "WrongCallKind",
	"UnknownFunction", "UnknownVariant", "UnknownField",
	"BudgetExceeded", "AllocationError",
	"FormatError",
	"UserPanic",
	"MalformedUnit", "DuplicateTypeHash", "StackUnderflow",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Span is a single frame of a source-span chain, best-effort: available
// only when the originating Unit carries a debug map.
type Span struct {
	File string
	Line int
	Col  int
}

func (s Span) String() string {
	if s.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// Panic is the structured runtime error surfaced to the host. It is never
// recovered from inside script code — Result/Option/`?` are value-level
// mechanisms that never interact with Panic.
type Panic struct {
	Kind    Kind
	Message string
	IP      int
	Spans   []Span // innermost frame first
}

func New(kind Kind, format string, args ...any) *Panic {
	return &Panic{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithIP returns a copy of p tagged with the instruction pointer at which it
// originated.
func (p *Panic) WithIP(ip int) *Panic {
	q := *p
	q.IP = ip
	return &q
}

// WithSpan prepends a span to the chain (innermost frame first).
func (p *Panic) WithSpan(s Span) *Panic {
	q := *p
	q.Spans = append([]Span{s}, p.Spans...)
	return &q
}

func (p *Panic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", p.Kind, p.Message)
	if len(p.Spans) > 0 {
		fmt.Fprintf(&b, " (at %s)", p.Spans[0])
	}
	return b.String()
}

// Is reports whether err is a *Panic of the given kind, for host-side
// error-kind switches. err must itself be the *Panic: a Panic wrapped in
// another error is not unwrapped.
func Is(err error, kind Kind) bool {
	p, ok := err.(*Panic)
	return ok && p.Kind == kind
}
