package sidetable

import (
	"errors"
	"fmt"
	"reflect"
)

// Accessor reads and writes one attribute of type V on owners of type O.
//
// An accessor is created once per attribute with NewValue, NewCopy or
// NewWeak, which fix the storage policy at construction. It is safe for
// concurrent use.
type Accessor[O, V any] struct {
	table  *Table
	attr   any
	policy Policy
	key    func(*O) IdentityKey
	wrap   func(V) any
}

// NewValue declares a plain attribute. Reference types (pointers, maps,
// slices, channels, funcs, interfaces) are stored as-is under Atomic or
// NonAtomic; any other V is copied by assignment under CopyAtomic or
// CopyNonAtomic.
func NewValue[O, V any, K comparable](t *Table, attr K, mode Mode) *Accessor[O, V] {
	p := resolve(mode, isReference(reflect.TypeFor[V]()), false)
	return newAccessor[O](t, attr, p, func(v V) any { return v })
}

// NewCopy declares an attribute whose values are snapshotted with CopyValue
// on every write, under CopyAtomic or CopyNonAtomic.
func NewCopy[O any, V Copier, K comparable](t *Table, attr K, mode Mode) *Accessor[O, V] {
	p := resolve(mode, true, true)
	return newAccessor[O](t, attr, p, func(v V) any { return v })
}

// NewWeak declares an attribute holding a non-owning reference to a V under
// Assign. Reads report absence once the referenced V has been collected.
// It panics if V has zero size.
func NewWeak[O, V any, K comparable](t *Table, attr K) *Accessor[O, *V] {
	mustWeakable[V]()
	return newAccessor[O](t, attr, Assign, func(v *V) any { return Weak(v) })
}

func newAccessor[O, V any, K comparable](t *Table, attr K, p Policy, wrap func(V) any) *Accessor[O, V] {
	if t == nil {
		panic("sidetable: nil table")
	}
	if reflect.TypeFor[O]().Size() == 0 {
		panic("sidetable: zero-size owner")
	}
	return &Accessor[O, V]{
		table:  t,
		attr:   attr,
		policy: p,
		key:    func(owner *O) IdentityKey { return MakeKey(owner, attr) },
		wrap:   wrap,
	}
}

// Policy returns the resolved storage policy.
func (a *Accessor[O, V]) Policy() Policy {
	return a.policy
}

// Key returns the table key for owner.
func (a *Accessor[O, V]) Key(owner *O) IdentityKey {
	return a.key(owner)
}

// Get returns the value stored for owner. It reports false if nothing was
// written, if an assign target has been collected, or if the stored value is
// not a V (logged as a warning; use Lookup to get the error).
func (a *Accessor[O, V]) Get(owner *O) (V, bool) {
	v, err := a.lookup(a.key(owner))
	if err != nil {
		var mismatch *TypeMismatchError
		if errors.As(err, &mismatch) {
			a.table.logger.Warn("attribute type mismatch", "attr", a.attr, "want", mismatch.Want, "got", mismatch.Got)
		}
		return v, false
	}
	return v, true
}

// GetOr returns the value stored for owner, or def if there is none.
func (a *Accessor[O, V]) GetOr(owner *O, def V) V {
	if v, ok := a.Get(owner); ok {
		return v
	}
	return def
}

// Lookup is the strict form of Get. It returns an error wrapping
// ErrNotInitialized when there is no value and ErrTypeMismatch when the
// stored value is not a V.
func (a *Accessor[O, V]) Lookup(owner *O) (V, error) {
	return a.lookup(a.key(owner))
}

// Set stores v for owner.
func (a *Accessor[O, V]) Set(owner *O, v V) {
	a.set(a.key(owner), v)
}

// Exists reports whether an entry exists for owner.
func (a *Accessor[O, V]) Exists(owner *O) bool {
	return a.table.Contains(a.key(owner))
}

// Delete removes the entry for owner and reports whether one existed.
func (a *Accessor[O, V]) Delete(owner *O) bool {
	return a.table.Delete(a.key(owner))
}

// Bind returns a handle on owner's attribute, first storing init if the
// attribute has never been written. Later binds leave the stored value alone.
func (a *Accessor[O, V]) Bind(owner *O, init V) *Handle[O, V] {
	key := a.key(owner)
	if _, err := a.table.SetIfAbsent(key, a.wrap(init), a.policy); err != nil {
		panic(err)
	}
	return &Handle[O, V]{accessor: a, key: key}
}

// GetOrInit returns owner's value, storing init first if the attribute has
// never been written.
func (a *Accessor[O, V]) GetOrInit(owner *O, init V) V {
	v, _ := a.Bind(owner, init).Get()
	return v
}

func (a *Accessor[O, V]) lookup(key IdentityKey) (V, error) {
	var zero V
	raw, ok := a.table.Get(key)
	if !ok {
		return zero, fmt.Errorf("%w: %v", ErrNotInitialized, a.attr)
	}
	if raw == nil {
		return zero, nil
	}
	v, ok := raw.(V)
	if !ok {
		return zero, &TypeMismatchError{
			Want: reflect.TypeFor[V]().String(),
			Got:  fmt.Sprintf("%T", raw),
		}
	}
	return v, nil
}

// set panics on a policy violation. The constructors make one impossible
// for well-formed V, so reaching it means the accessor was misdeclared.
func (a *Accessor[O, V]) set(key IdentityKey, v V) {
	if err := a.table.Set(key, a.wrap(v), a.policy); err != nil {
		panic(err)
	}
}
