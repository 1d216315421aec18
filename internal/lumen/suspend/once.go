package suspend

import "sync/atomic"

// onceToken enforces at-most-once claiming, adapted directly from kont's
// Affine (affine.go): an atomic counter that only the first caller to
// increment past zero may proceed past. Future uses one to let Cancel take
// effect at most once; the ResumeAfterCompletion panic for resuming a
// completed generator/stream is raised by Future.Resume's own completion
// check, not by this token.
type onceToken struct {
	used atomic.Uint32
}

// claim reports whether this call is the first to claim the token.
func (t *onceToken) claim() bool {
	return t.used.Add(1) == 1
}

// claimed reports whether the token has already been claimed, without
// claiming it.
func (t *onceToken) claimed() bool {
	return t.used.Load() != 0
}

// discard claims the token without performing the associated action,
// mirroring Affine.Discard.
func (t *onceToken) discard() {
	t.used.Store(1)
}
