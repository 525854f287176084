package sidetable

import (
	"encoding/binary"
	"fmt"
	"hash/maphash"
	"reflect"
	"runtime"
	"weak"

	"github.com/cespare/xxhash/v2"
)

var seed = maphash.MakeSeed()

// identity is the non-owning view of an owner that a key carries.
// Implementations must be comparable and compare equal only for the same
// owner object.
type identity interface {
	alive() bool
	watch(fn func(reclaim), r reclaim) (runtime.Cleanup, bool)
}

type ownerRef[O any] struct {
	p weak.Pointer[O]
}

func (r ownerRef[O]) alive() bool {
	return r.p.Value() != nil
}

// watch arranges for fn(rc) to be called once the owner is collected. It
// reports false if the owner is already gone.
func (r ownerRef[O]) watch(fn func(reclaim), rc reclaim) (runtime.Cleanup, bool) {
	p := r.p.Value()
	if p == nil {
		return runtime.Cleanup{}, false
	}
	return runtime.AddCleanup(p, fn, rc), true
}

// IdentityKey addresses one attribute of one owner.
//
// Two keys are equal iff they were made from the same owner object and equal
// attribute values. The key never keeps its owner alive.
type IdentityKey struct {
	owner     identity
	attr      any
	ownerHash uint64
	hash      uint64
}

// MakeKey builds the key for attr on owner. It panics if owner is nil or O
// has zero size: distinct zero-size values may share an address, so they
// have no identity to key on.
func MakeKey[O any, K comparable](owner *O, attr K) IdentityKey {
	if owner == nil {
		panic("sidetable: nil owner")
	}
	if reflect.TypeFor[O]().Size() == 0 {
		panic("sidetable: zero-size owner")
	}
	ref := ownerRef[O]{p: weak.Make(owner)}
	oh := maphash.Comparable(seed, ref.p)
	return IdentityKey{
		owner:     ref,
		attr:      attr,
		ownerHash: oh,
		hash:      mix(oh, maphash.Comparable(seed, attr)),
	}
}

// Hash returns a hash consistent with key equality.
func (k IdentityKey) Hash() uint64 {
	return k.hash
}

// Attr returns the attribute identifier the key was made with.
func (k IdentityKey) Attr() any {
	return k.attr
}

// Alive reports whether the owner is still reachable. The zero key is never
// alive.
func (k IdentityKey) Alive() bool {
	return k.owner != nil && k.owner.alive()
}

// Equal reports whether k and other address the same attribute of the same
// owner. It is equivalent to k == other.
func (k IdentityKey) Equal(other IdentityKey) bool {
	return k == other
}

func (k IdentityKey) String() string {
	return fmt.Sprintf("%T(%v)#%016x", k.attr, k.attr, k.hash)
}

func (k IdentityKey) isZero() bool {
	return k.owner == nil
}

func mix(owner, attr uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], owner)
	binary.LittleEndian.PutUint64(buf[8:], attr)
	return xxhash.Sum64(buf[:])
}
