package sidetable

import (
	"sync"
	"sync/atomic"
)

// reclaim names work for the next sweep. A nil rec means every entry of
// key's owner; otherwise only key, and only while rec is still its current
// record.
type reclaim struct {
	key IdentityKey
	rec *record
}

// backlog collects reclaim notices posted by runtime cleanups until a sweep
// drains them.
type backlog struct {
	sync.Mutex
	items []reclaim
	n     atomic.Int64
}

func newBacklog(size int) *backlog {
	return &backlog{
		items: make([]reclaim, 0, size),
	}
}

func (b *backlog) put(r reclaim) {
	b.Lock()
	defer b.Unlock()

	b.items = append(b.items, r)
	b.n.Add(1)
}

// drain removes up to limit notices in posting order. limit <= 0 drains all.
func (b *backlog) drain(limit int) []reclaim {
	b.Lock()
	defer b.Unlock()

	if len(b.items) == 0 {
		return nil
	}
	n := len(b.items)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]reclaim, n)
	copy(out, b.items[:n])
	rest := copy(b.items, b.items[n:])
	clear(b.items[rest:])
	b.items = b.items[:rest]
	b.n.Add(-int64(n))
	return out
}

// len is safe to call without the lock.
func (b *backlog) len() int {
	return int(b.n.Load())
}
