package sidetable

import (
	"runtime"
	"sync/atomic"
)

// record is one immutable write: the payload and the policy it was stored
// under. Exactly one of value and slot is meaningful.
type record struct {
	policy Policy
	value  any
	slot   slot
}

// entry is the table-owned cell for one key. The current record is swapped
// atomically so non-atomic writers can publish without the exclusive lock.
type entry struct {
	key  IdentityKey
	cell atomic.Pointer[record]

	// target is the cleanup watching an assign target. Guarded by the shard's
	// exclusive lock.
	target  runtime.Cleanup
	watched bool
}

func newEntry(key IdentityKey, r *record) *entry {
	e := &entry{key: key}
	e.cell.Store(r)
	return e
}

func (e *entry) load() *record {
	return e.cell.Load()
}

// value returns the payload, unwrapping assign slots.
func (e *entry) value() (any, bool) {
	r := e.load()
	if r.slot != nil {
		return r.slot.load()
	}
	return r.value, true
}

func (e *entry) policy() Policy {
	return e.load().policy
}

// stale reports whether the entry can no longer produce a value: its owner
// is gone, or it is an assign entry whose target is gone.
func (e *entry) stale() bool {
	if !e.key.Alive() {
		return true
	}
	r := e.load()
	return r.slot != nil && !r.slot.Alive()
}

// unwatch stops the assign-target cleanup, if any.
func (e *entry) unwatch() {
	if e.watched {
		e.target.Stop()
		e.watched = false
	}
}
