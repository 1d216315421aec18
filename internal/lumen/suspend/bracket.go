package suspend

import "code.hybscloud.com/lumen/internal/lumen/value"

// Bracket runs use(resource) and guarantees release(resource) runs
// afterward regardless of whether use panics or returns an error,
// adapted from kont's Bracket (resource.go) to lumen's plain
// value/error vocabulary instead of a generic Cont/Either pair: lumen has
// no user-level exception handler effect to dispatch through, so Bracket
// here is an ordinary Go defer rather than a continuation transform.
func Bracket[R any](acquire func() (R, error), release func(R) error, use func(R) (value.Value, error)) (result value.Value, err error) {
	r, err := acquire()
	if err != nil {
		return value.Value{}, err
	}

	defer func() {
		if releaseErr := release(r); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()

	return use(r)
}

// OnCancel runs cleanup if and only if body returns a non-nil error —
// a cancellation, a budget-exceeded abort, or any other failure alike —
// the asymmetric counterpart to Bracket's always-run release, adapted
// from kont's OnError (resource.go).
func OnCancel(body func() (Signal, error), cleanup func()) (Signal, error) {
	sig, err := body()
	if err != nil {
		cleanup()
		return sig, err
	}
	return sig, nil
}
