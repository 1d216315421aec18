// Package suspend implements lumen's single polymorphic Future (spec.md
// §3.7, §4.5): async fn, generator, stream, and host-future values all
// share one state machine here, driven by a one-shot Resume discipline
// adapted from kont's Affine/Suspension one-shot continuation guard.
package suspend

import "code.hybscloud.com/lumen/internal/lumen/value"

// Outcome is a Result-shaped either: Ok carries a completed Value, Err
// carries a *diag.Panic surfaced through the normal panic mechanism.
// Adapted from kont's Either[E, A] (error.go), specialized to lumen's
// Value/error vocabulary instead of a generic type parameter pair.
type Outcome struct {
	ok  bool
	val value.Value
	err error
}

func Ok(v value.Value) Outcome { return Outcome{ok: true, val: v} }
func Err(err error) Outcome    { return Outcome{ok: false, err: err} }

func (o Outcome) IsOk() bool { return o.ok }

func (o Outcome) Value() (value.Value, bool) {
	if !o.ok {
		return value.Value{}, false
	}
	return o.val, true
}

func (o Outcome) Err() error { return o.err }
