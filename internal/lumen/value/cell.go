package value

import (
	"sync/atomic"

	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/typeid"
)

// access is the runtime-tracked access state of a heap cell (spec.md §3.1,
// §3.2). It is independent of the strong count: a cell can be at strong
// count 3 and still be exclusively borrowed by one of its three holders.
type access int32

const (
	accessFree access = iota
	accessShared
	accessExclusive
	accessMoved
)

// Payload is the heap-resident content of a reference-variant Value. The
// instruction loop and native functions type-switch on the concrete
// payload type (e.g. *StringPayload, *VectorPayload) after obtaining a
// borrow guard.
type Payload interface {
	// Drop releases any resources the payload itself owns (e.g. a native
	// handle). Most payloads are no-ops here; their Go garbage collection
	// is sufficient once strong count reaches zero.
	Drop()
}

// cell is the reference-counted, access-tracked heap allocation backing
// every reference Value variant.
type cell struct {
	strong   int64 // accessed atomically
	access   int32 // access, accessed atomically
	readers  int32 // concurrent shared-read count

	typeHash typeid.Hash // 0 unless this cell is a user/host struct instance
	payload  Payload
}

func newCell(typeHash typeid.Hash, payload Payload) *cell {
	return &cell{strong: 1, access: int32(accessFree), typeHash: typeHash, payload: payload}
}

func (c *cell) retain() {
	atomic.AddInt64(&c.strong, 1)
}

// release decrements the strong count; the last release frees the payload.
// Dropping while exclusively borrowed or moved is a caller bug (the
// compiler is assumed well-formed) but is defensively tolerated: the drop
// still proceeds, matching "dropping the last handle frees the payload"
// unconditionally.
func (c *cell) release() {
	if atomic.AddInt64(&c.strong, -1) == 0 {
		c.payload.Drop()
	}
}

func (c *cell) strongCount() int64 {
	return atomic.LoadInt64(&c.strong)
}

// ReadGuard is returned by BorrowRef; dropping it (via Release) restores
// the cell to free if no other readers remain.
type ReadGuard struct{ c *cell }

func (g ReadGuard) Release() {
	if g.c == nil {
		return
	}
	if atomic.AddInt32(&g.c.readers, -1) == 0 {
		atomic.CompareAndSwapInt32(&g.c.access, int32(accessShared), int32(accessFree))
	}
}

// WriteGuard is returned by BorrowMut; dropping it (via Release) restores
// the cell to free.
type WriteGuard struct{ c *cell }

func (g WriteGuard) Release() {
	if g.c == nil {
		return
	}
	atomic.StoreInt32(&g.c.access, int32(accessFree))
}

// BorrowRef acquires a shared-read borrow on v. Succeeds iff v's cell is
// free or already shared-read (spec.md §4.1).
func BorrowRef(v Value) (ReadGuard, Payload, error) {
	c := v.ref
	if c == nil {
		return ReadGuard{}, nil, diag.New(diag.KindNotReadable, "value is not a reference type")
	}
	for {
		cur := access(atomic.LoadInt32(&c.access))
		switch cur {
		case accessFree:
			if atomic.CompareAndSwapInt32(&c.access, int32(accessFree), int32(accessShared)) {
				atomic.AddInt32(&c.readers, 1)
				return ReadGuard{c: c}, c.payload, nil
			}
		case accessShared:
			atomic.AddInt32(&c.readers, 1)
			// Re-check: another goroutine may have transitioned away.
			if access(atomic.LoadInt32(&c.access)) == accessShared {
				return ReadGuard{c: c}, c.payload, nil
			}
			atomic.AddInt32(&c.readers, -1)
		default:
			return ReadGuard{}, nil, diag.New(diag.KindNotReadable, "value is not readable (exclusively borrowed or moved)")
		}
	}
}

// BorrowMut acquires an exclusive-write borrow on v. Succeeds iff v's cell
// is free (spec.md §4.1).
func BorrowMut(v Value) (WriteGuard, Payload, error) {
	c := v.ref
	if c == nil {
		return WriteGuard{}, nil, diag.New(diag.KindNotWritable, "value is not a reference type")
	}
	if !atomic.CompareAndSwapInt32(&c.access, int32(accessFree), int32(accessExclusive)) {
		return WriteGuard{}, nil, diag.New(diag.KindNotWritable, "value is not writable")
	}
	return WriteGuard{c: c}, c.payload, nil
}

// Take succeeds iff v's cell is free and its strong count is 1; it marks
// the cell moved and returns the payload by value. Any further access
// (other than Drop) must then fail with NotReadable/NotWritable.
func Take(v Value) (Payload, error) {
	c := v.ref
	if c == nil {
		return nil, diag.New(diag.KindNotOwned, "value is not a reference type")
	}
	if c.strongCount() != 1 {
		return nil, diag.New(diag.KindNotOwned, "value has more than one live handle")
	}
	if !atomic.CompareAndSwapInt32(&c.access, int32(accessFree), int32(accessMoved)) {
		return nil, diag.New(diag.KindNotOwned, "value is not owned (not free to move)")
	}
	return c.payload, nil
}

// IsReadable reports whether v's cell currently permits a read borrow,
// without acquiring one. Backs the `is_readable` intrinsic used in
// spec.md §8.4 scenario 5 (closure move semantics).
func IsReadable(v Value) bool {
	c := v.ref
	if c == nil {
		return true // immediates are always "readable"
	}
	a := access(atomic.LoadInt32(&c.access))
	return a == accessFree || a == accessShared
}

// StrongCount exposes the live handle count, for invariant tests
// (spec.md §8.1).
func StrongCount(v Value) int64 {
	if v.ref == nil {
		return 0
	}
	return v.ref.strongCount()
}
