package sidetable

import "reflect"

// Copier is implemented by reference values that can be stored under a copy
// policy. CopyValue must return an independent value of the same type.
//
// Plain values (structs, arrays, scalars, strings) do not need it: they are
// copied by assignment. That copy is shallow. A nil pointer, map, slice,
// channel or func holds no state to share and is stored as-is.
type Copier interface {
	CopyValue() any
}

// isReference reports whether values of t share state when assigned.
func isReference(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// snapshot returns the value to store under a copy policy.
func snapshot(p Policy, value any) (any, error) {
	if rv := reflect.ValueOf(value); rv.IsValid() && isReference(rv.Type()) && rv.IsNil() {
		return value, nil
	}
	if c, ok := value.(Copier); ok {
		return c.CopyValue(), nil
	}
	if isReference(reflect.TypeOf(value)) {
		return nil, policyError(p, "%T is a reference type and does not implement Copier", value)
	}
	return value, nil
}
