package sidetable

import (
	"reflect"
	"runtime"
	"weak"
)

// WeakSlot holds a non-owning reference to a value.
//
// Once the target has been collected the slot reports absence forever; it
// never resurrects and never causes the target's collection itself.
type WeakSlot[V any] struct {
	p weak.Pointer[V]
}

// Weak wraps target in a WeakSlot. A nil target yields a slot that is
// always absent. It panics if V has zero size.
func Weak[V any](target *V) WeakSlot[V] {
	mustWeakable[V]()
	return WeakSlot[V]{p: weak.Make(target)}
}

// Value returns the target while it is alive.
func (s WeakSlot[V]) Value() (*V, bool) {
	v := s.p.Value()
	return v, v != nil
}

// Alive reports whether the target is still reachable.
func (s WeakSlot[V]) Alive() bool {
	return s.p.Value() != nil
}

func (s WeakSlot[V]) load() (any, bool) {
	v := s.p.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

func (s WeakSlot[V]) watch(fn func(reclaim), r reclaim) (runtime.Cleanup, bool) {
	v := s.p.Value()
	if v == nil {
		return runtime.Cleanup{}, false
	}
	return runtime.AddCleanup(v, fn, r), true
}

// slot is the type-erased WeakSlot stored in an entry.
type slot interface {
	load() (any, bool)
	Alive() bool
	watch(fn func(reclaim), r reclaim) (runtime.Cleanup, bool)
}

func mustWeakable[V any]() {
	if reflect.TypeFor[V]().Size() == 0 {
		panic("sidetable: zero-size weak target")
	}
}
