package suspend

// Snapshotter is implemented by a Driver that can capture and restore its
// own resumable state as an opaque value — concretely, exec.Vm capturing
// its stack, frame chain, instruction pointer, and budget counter. Named
// after kont's Reify/Reflect bridge (bridge.go), which converts between a
// closure-based continuation and a defunctionalized, inspectable frame
// chain; here the two representations being bridged are "a live, in-
// memory Vm" and "a snapshot that can outlive the call that produced it,
// be stored inside a Future, and be resumed later, possibly after the
// triggering await has long since returned control to the host".
type Snapshotter interface {
	Driver

	// Reify captures the current resumable state as an opaque snapshot
	// suitable for storing inside a Future across suspensions.
	Reify() any

	// Reflect restores a Driver from a snapshot previously produced by
	// Reify, ready to Resume from where it left off.
	Reflect(snapshot any) (Driver, error)
}
