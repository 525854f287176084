package sidetable

// Handle is an attribute bound to one owner, as returned by Accessor.Bind.
// It does not keep the owner alive.
type Handle[O, V any] struct {
	accessor *Accessor[O, V]
	key      IdentityKey
}

// Get returns the current value.
func (h *Handle[O, V]) Get() (V, bool) {
	v, err := h.accessor.lookup(h.key)
	return v, err == nil
}

// Set replaces the current value.
func (h *Handle[O, V]) Set(v V) {
	h.accessor.set(h.key, v)
}

// Exists reports whether the attribute still has an entry.
func (h *Handle[O, V]) Exists() bool {
	return h.accessor.table.Contains(h.key)
}

// Key returns the bound table key.
func (h *Handle[O, V]) Key() IdentityKey {
	return h.key
}
