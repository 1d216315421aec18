// Package typeid derives the 64-bit type hashes that are the universal
// dispatch key across lumen's VM (spec.md §3.3): every primitive,
// user-defined, or host-registered type, every function item, method, and
// protocol is identified by one of these hashes, and the VM never falls
// back to string lookups on the hot path.
package typeid

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Hash is a 64-bit deterministic type or function identifier.
type Hash uint64

// Of derives the type hash of a fully-qualified item path
// (e.g. "std::vec::Vec", "myapp::model::User::new"). The derivation is
// BLAKE2b-256 of the UTF-8 path, truncated to the first 8 bytes
// little-endian — see SPEC_FULL.md §3.3 for why BLAKE2b was chosen over
// FNV/SipHash.
func Of(path string) Hash {
	sum := blake2b.Sum256([]byte(path))
	return Hash(binary.LittleEndian.Uint64(sum[:8]))
}

// Interner caches path -> Hash derivations and, symmetrically, lets callers
// recover the original path for a previously-interned hash (used by
// diagnostics rendering unknown-field/unknown-function panics with a
// human-readable name instead of a bare integer).
type Interner struct {
	mu     sync.RWMutex
	byPath map[string]Hash
	byHash map[Hash]string
}

func NewInterner() *Interner {
	return &Interner{
		byPath: make(map[string]Hash),
		byHash: make(map[Hash]string),
	}
}

// Intern derives (or recalls) the hash for path, recording the reverse
// mapping for diagnostics.
func (in *Interner) Intern(path string) Hash {
	in.mu.RLock()
	if h, ok := in.byPath[path]; ok {
		in.mu.RUnlock()
		return h
	}
	in.mu.RUnlock()

	h := Of(path)
	in.mu.Lock()
	in.byPath[path] = h
	in.byHash[h] = path
	in.mu.Unlock()
	return h
}

// Lookup returns the path previously interned for h, if any.
func (in *Interner) Lookup(h Hash) (string, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	p, ok := in.byHash[h]
	return p, ok
}
