package sidetable

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *shard) itemCount() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.store)
}

func TestShardSetTracksOwner(t *testing.T) {
	var posted []reclaim
	s := newShard(func(r reclaim) { posted = append(posted, r) }, new(atomic.Int64))
	w := newWidget("owner")

	created, ok := s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 1})
	require.True(t, ok)
	assert.True(t, created)

	created, ok = s.set(MakeKey(w, "b"), &record{policy: Atomic, value: 2})
	require.True(t, ok)
	assert.True(t, created)

	created, _ = s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 3})
	assert.False(t, created, "overwrite must not create an entry")

	assert.Equal(t, 2, s.itemCount())
	require.Len(t, s.owners, 1)
	for _, o := range s.owners {
		assert.Len(t, o.keys, 2)
	}
	assert.Empty(t, posted)
	runtime.KeepAlive(w)
}

func TestShardSetIfAbsent(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	k := MakeKey(w, "a")

	created, _ := s.setIfAbsent(k, &record{policy: Atomic, value: 1})
	assert.True(t, created)
	created, _ = s.setIfAbsent(k, &record{policy: Atomic, value: 2})
	assert.False(t, created)

	v, _ := s.get(k).value()
	assert.Equal(t, 1, v)
}

func TestShardSwapOnlyExisting(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	k := MakeKey(w, "a")

	assert.False(t, s.swap(k, &record{policy: NonAtomic, value: 1}))

	s.set(k, &record{policy: NonAtomic, value: 1})
	assert.True(t, s.swap(k, &record{policy: NonAtomic, value: 2}))

	v, _ := s.get(k).value()
	assert.Equal(t, 2, v)
}

func TestShardSwapRefusesAssignEntry(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	p := &payload{label: "target"}
	k := MakeKey(w, "ref")

	s.set(k, &record{policy: Assign, slot: Weak(p)})

	assert.False(t, s.swap(k, &record{policy: NonAtomic, value: 1}))
	assert.True(t, s.get(k).watched)
}

func TestShardDeleteReleasesOwner(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	ka, kb := MakeKey(w, "a"), MakeKey(w, "b")
	s.set(ka, &record{policy: Atomic, value: 1})
	s.set(kb, &record{policy: Atomic, value: 2})

	assert.True(t, s.delete(ka))
	assert.False(t, s.delete(ka))
	assert.Len(t, s.owners, 1)

	assert.True(t, s.delete(kb))
	assert.Empty(t, s.owners)
	assert.Equal(t, 0, s.itemCount())
}

func TestShardDeleteIfSame(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	k := MakeKey(w, "a")
	first := &record{policy: Atomic, value: 1}
	s.set(k, first)
	s.set(k, &record{policy: Atomic, value: 2})

	assert.False(t, s.deleteIfSame(k, first), "a replaced record must not delete the entry")
	assert.Equal(t, 1, s.itemCount())
}

func TestShardDropOwner(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	a, b := newWidget("a"), newWidget("b")
	s.set(MakeKey(a, "x"), &record{policy: Atomic, value: 1})
	s.set(MakeKey(a, "y"), &record{policy: Atomic, value: 2})
	s.set(MakeKey(b, "x"), &record{policy: Atomic, value: 3})

	assert.Equal(t, 2, s.dropOwner(MakeKey(a, "x").owner))
	assert.Equal(t, 1, s.itemCount())
	assert.Equal(t, 0, s.dropOwner(MakeKey(a, "x").owner))
}

func TestShardOwnerCleanupPosts(t *testing.T) {
	posted := make(chan reclaim, 1)
	s := newShard(func(r reclaim) { posted <- r }, new(atomic.Int64))

	func() {
		w := newWidget("doomed")
		s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 1})
	}()

	eventuallyCollected(t, func() bool { return len(posted) == 1 })
	r := <-posted
	assert.Nil(t, r.rec)
	assert.Equal(t, 1, s.dropOwner(r.key.owner))
}

func TestShardCompact(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	live := &payload{label: "live"}
	s.set(MakeKey(w, "live"), &record{policy: Assign, slot: Weak(live)})
	s.set(MakeKey(w, "dead"), &record{policy: Assign, slot: Weak[payload](nil)})
	s.set(MakeKey(w, "plain"), &record{policy: Atomic, value: 1})

	assert.Equal(t, 1, s.compact())
	assert.Equal(t, 2, s.itemCount())
	runtime.KeepAlive(live)
	runtime.KeepAlive(w)
}

func TestShardClear(t *testing.T) {
	s := newShard(func(reclaim) {}, new(atomic.Int64))
	w := newWidget("owner")
	s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 1})
	s.set(MakeKey(w, "b"), &record{policy: Atomic, value: 2})

	assert.Equal(t, 2, s.clear())
	assert.Equal(t, 0, s.itemCount())
	assert.Empty(t, s.owners)
}

func TestShardSizeChangesUnderLock(t *testing.T) {
	size := new(atomic.Int64)
	var seen []int64
	s := newShard(func(reclaim) {}, size)
	w := newWidget("owner")

	s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 1})
	s.setIfAbsent(MakeKey(w, "b"), &record{policy: Atomic, value: 2})
	s.set(MakeKey(w, "a"), &record{policy: Atomic, value: 3})
	seen = append(seen, size.Load())

	s.delete(MakeKey(w, "a"))
	seen = append(seen, size.Load())

	s.set(MakeKey(w, "c"), &record{policy: Atomic, value: 4})
	s.dropOwner(MakeKey(w, "c").owner)
	seen = append(seen, size.Load())

	s.set(MakeKey(w, "d"), &record{policy: Assign, slot: Weak[payload](nil)})
	s.compact()
	seen = append(seen, size.Load())

	s.set(MakeKey(w, "e"), &record{policy: Atomic, value: 5})
	s.clear()
	seen = append(seen, size.Load())

	assert.Equal(t, []int64{2, 1, 0, 0, 0}, seen)
	runtime.KeepAlive(w)
}
