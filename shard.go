package sidetable

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// owner tracks the keys one owner has in a shard and the cleanup that
// reports its collection.
type owner struct {
	keys    map[IdentityKey]struct{}
	cleanup runtime.Cleanup
}

type shard struct {
	sync.RWMutex
	store  map[IdentityKey]*entry
	owners map[identity]*owner

	// collected is posted to when an owner or assign target is collected.
	collected func(reclaim)

	// size is the table-wide entry count. It changes only under the
	// exclusive lock, before any cleanup for the entry is registered.
	size *atomic.Int64
}

func newShard(collected func(reclaim), size *atomic.Int64) *shard {
	return &shard{
		store:     make(map[IdentityKey]*entry),
		owners:    make(map[identity]*owner),
		collected: collected,
		size:      size,
	}
}

func (s *shard) get(key IdentityKey) *entry {
	s.RLock()
	defer s.RUnlock()
	return s.store[key]
}

// swap publishes r on an existing entry holding the shared lock only. It
// fails when there is no entry or the entry holds an assign slot, whose
// cleanup can only be changed exclusively.
func (s *shard) swap(key IdentityKey, r *record) bool {
	s.RLock()
	defer s.RUnlock()
	e := s.store[key]
	if e == nil || e.load().slot != nil {
		return false
	}
	e.cell.Store(r)
	return true
}

// set stores r under the exclusive lock. It reports whether a new entry was
// created and whether the owner was still alive to receive it.
func (s *shard) set(key IdentityKey, r *record) (created, ok bool) {
	s.Lock()
	defer s.Unlock()
	if e := s.store[key]; e != nil {
		e.unwatch()
		e.cell.Store(r)
		s.watchTarget(e, r)
		return false, true
	}
	return s.insertLocked(key, r)
}

// setIfAbsent stores r only if key has no entry.
func (s *shard) setIfAbsent(key IdentityKey, r *record) (created, ok bool) {
	s.Lock()
	defer s.Unlock()
	if s.store[key] != nil {
		return false, true
	}
	return s.insertLocked(key, r)
}

func (s *shard) insertLocked(key IdentityKey, r *record) (bool, bool) {
	s.size.Add(1)
	o := s.owners[key.owner]
	if o == nil {
		c, alive := key.owner.watch(s.collected, reclaim{key: key})
		if !alive {
			s.size.Add(-1)
			return false, false
		}
		o = &owner{keys: make(map[IdentityKey]struct{}), cleanup: c}
		s.owners[key.owner] = o
	}
	e := newEntry(key, r)
	s.store[key] = e
	o.keys[key] = struct{}{}
	s.watchTarget(e, r)
	return true, true
}

func (s *shard) watchTarget(e *entry, r *record) {
	if r.slot == nil {
		return
	}
	e.target, e.watched = r.slot.watch(s.collected, reclaim{key: e.key, rec: r})
}

func (s *shard) delete(key IdentityKey) bool {
	s.Lock()
	defer s.Unlock()
	return s.removeLocked(key)
}

// deleteIfSame removes key only while rec is still its current record.
func (s *shard) deleteIfSame(key IdentityKey, rec *record) bool {
	s.Lock()
	defer s.Unlock()
	e := s.store[key]
	if e == nil || e.load() != rec {
		return false
	}
	return s.removeLocked(key)
}

// dropOwner removes every entry of id and returns how many were removed.
func (s *shard) dropOwner(id identity) int {
	s.Lock()
	defer s.Unlock()
	o := s.owners[id]
	if o == nil {
		return 0
	}
	n := 0
	for key := range o.keys {
		if s.removeLocked(key) {
			n++
		}
	}
	return n
}

func (s *shard) removeLocked(key IdentityKey) bool {
	e := s.store[key]
	if e == nil {
		return false
	}
	e.unwatch()
	delete(s.store, key)
	s.size.Add(-1)
	if o := s.owners[key.owner]; o != nil {
		delete(o.keys, key)
		if len(o.keys) == 0 {
			o.cleanup.Stop()
			delete(s.owners, key.owner)
		}
	}
	return true
}

// compact removes every stale entry and returns how many were removed.
func (s *shard) compact() int {
	s.Lock()
	defer s.Unlock()
	n := 0
	for key, e := range s.store {
		if e.stale() && s.removeLocked(key) {
			n++
		}
	}
	return n
}

func (s *shard) forEach(fn func(key IdentityKey, value any) bool) bool {
	s.RLock()
	defer s.RUnlock()
	for key, e := range s.store {
		v, ok := e.value()
		if !ok {
			continue
		}
		if !fn(key, v) {
			return false
		}
	}
	return true
}

func (s *shard) clear() int {
	s.Lock()
	defer s.Unlock()
	n := len(s.store)
	for _, e := range s.store {
		e.unwatch()
	}
	for _, o := range s.owners {
		o.cleanup.Stop()
	}
	s.store = make(map[IdentityKey]*entry)
	s.owners = make(map[identity]*owner)
	s.size.Add(-int64(n))
	return n
}
