package sidetable

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Table is a concurrent side table mapping IdentityKey to a stored value.
//
// Entries live in shards chosen by owner, so all attributes of one owner share
// a shard lock. Each owner with at least one entry has a runtime cleanup that
// posts a reclaim notice when it is collected; assign entries do the same for
// their target. Sweep drains those notices.
//
// Concurrency:
//
// Table methods are safe for concurrent use. Reads share the shard lock.
// Writes under Atomic, CopyAtomic and Assign take it exclusively, so any read
// starting after such a write returns observes it. NonAtomic and
// CopyNonAtomic writes to an existing key hold the lock shared and publish
// atomically; they are not ordered with concurrent access to the same key.
//
// Lifetime:
//
// Stored values are held strongly (except under Assign). A value that refers
// back to its owner keeps the owner reachable and its entries are never
// reclaimed.
type Table struct {
	cfg       Config
	id        string
	shards    []*shard
	shardMask uint64
	backlog   *backlog
	logger    *slog.Logger

	size atomic.Int64
}

// New constructs a table from the provided config.
//
// New calls config.Build() internally.
func New(config Config) *Table {
	cfg := config.Build()

	t := &Table{
		cfg: cfg,
		id:  uuid.NewString(),
		//nolint:gosec // shards is bounded by maxShards.
		shardMask: uint64(cfg.Shards - 1),
		shards:    make([]*shard, cfg.Shards),
		backlog:   newBacklog(cfg.BacklogSize),
	}
	t.logger = cfg.Logger.With("table", t.id)
	for i := range t.shards {
		t.shards[i] = newShard(t.backlog.put, &t.size)
	}
	return t
}

// ID returns the table's instance identifier, as used in log records.
func (t *Table) ID() string {
	return t.id
}

// Len returns the number of entries, including ones awaiting a sweep.
func (t *Table) Len() int {
	return int(t.size.Load())
}

// IsEmpty reports whether the table holds no entries.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Contains reports whether an entry exists for key.
func (t *Table) Contains(key IdentityKey) bool {
	if key.isZero() {
		return false
	}
	t.maybeSweep()
	return t.getShard(key).get(key) != nil
}

// Get returns the value stored for key. Under Assign it returns the target
// while it lives and reports absence once it has been collected.
func (t *Table) Get(key IdentityKey) (any, bool) {
	if key.isZero() {
		return nil, false
	}
	t.maybeSweep()
	e := t.getShard(key).get(key)
	if e == nil {
		return nil, false
	}
	return e.value()
}

// PolicyOf returns the policy the current entry for key was written under.
func (t *Table) PolicyOf(key IdentityKey) (Policy, bool) {
	if key.isZero() {
		return 0, false
	}
	e := t.getShard(key).get(key)
	if e == nil {
		return 0, false
	}
	return e.policy(), true
}

// Set stores value for key under policy.
//
// Under CopyAtomic and CopyNonAtomic the value is snapshotted first: Copier
// values through CopyValue, plain values by assignment. Other reference values
// are rejected. Under Assign the value must be a WeakSlot (see Weak and
// SetWeak). A rejected write returns an error wrapping ErrPolicyViolation and
// leaves the table unchanged.
//
// Writes for an owner that has already been collected are dropped.
func (t *Table) Set(key IdentityKey, value any, policy Policy) error {
	r, err := t.prepare(key, value, policy)
	if err != nil {
		return err
	}
	t.maybeSweep()
	t.store(key, r)
	return nil
}

// SetIfAbsent stores value for key unless an entry already exists. It
// reports whether value was stored. The check and the insert happen under
// one exclusive lock regardless of policy.
func (t *Table) SetIfAbsent(key IdentityKey, value any, policy Policy) (bool, error) {
	r, err := t.prepare(key, value, policy)
	if err != nil {
		return false, err
	}
	t.maybeSweep()
	created, _ := t.getShard(key).setIfAbsent(key, r)
	return created, nil
}

// SetAsync performs Set on another goroutine. The value is validated and
// snapshotted before SetAsync returns; the channel receives the result once
// the write is visible and is then closed.
func (t *Table) SetAsync(key IdentityKey, value any, policy Policy) <-chan error {
	done := make(chan error, 1)
	r, err := t.prepare(key, value, policy)
	if err != nil {
		done <- err
		close(done)
		return done
	}
	go func() {
		defer close(done)
		t.maybeSweep()
		t.store(key, r)
		done <- nil
	}()
	return done
}

// Delete removes the entry for key and reports whether one existed.
func (t *Table) Delete(key IdentityKey) bool {
	if key.isZero() {
		return false
	}
	return t.getShard(key).delete(key)
}

// Clear removes every entry.
func (t *Table) Clear() {
	n := 0
	for _, s := range t.shards {
		n += s.clear()
	}
	t.backlog.drain(0)
	t.logger.Debug("cleared table", "removed", n)
}

// Range calls fn for each live key/value. If fn returns false, iteration
// stops.
//
// The callback runs under shard read locks; it must not write to the table.
func (t *Table) Range(fn func(key IdentityKey, value any) bool) {
	for _, s := range t.shards {
		if !s.forEach(fn) {
			return
		}
	}
}

// Sweep reclaims entries whose owner, or whose assign target, has been
// collected and reported by its runtime cleanup. It returns the number of
// entries removed. It costs O(1) when nothing is pending.
func (t *Table) Sweep() int {
	if t.backlog.len() == 0 {
		return 0
	}
	if t.IsEmpty() {
		t.backlog.drain(0)
		return 0
	}

	removed := 0
	for _, r := range t.backlog.drain(t.cfg.SweepBatch) {
		s := t.getShard(r.key)
		if r.rec == nil {
			removed += s.dropOwner(r.key.owner)
		} else if s.deleteIfSame(r.key, r.rec) {
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("swept entries", "removed", removed, "pending", t.backlog.len())
	}
	return removed
}

// Compact scans every shard and removes entries whose owner or assign target
// is no longer reachable, without waiting for runtime cleanups. It visits
// shards concurrently and stops early if ctx is done.
func (t *Table) Compact(ctx context.Context) (int, error) {
	var removed atomic.Int64

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for _, s := range t.shards {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			removed.Add(int64(s.compact()))
			return nil
		})
	}
	err := eg.Wait()

	n := removed.Load()
	t.logger.Debug("compacted table", "removed", n, "entries", t.Len())
	return int(n), err
}

func (t *Table) prepare(key IdentityKey, value any, policy Policy) (*record, error) {
	r, err := newRecord(key, value, policy)
	if err != nil {
		t.logger.Debug("rejected write", "key", key, "policy", policy, "error", err)
		return nil, err
	}
	return r, nil
}

func newRecord(key IdentityKey, value any, policy Policy) (*record, error) {
	if !policy.valid() {
		return nil, policyError(policy, "unknown policy")
	}
	if key.isZero() {
		return nil, policyError(policy, "key has no owner")
	}

	s, isSlot := value.(slot)
	switch {
	case policy == Assign:
		if !isSlot {
			return nil, policyError(policy, "%T is not a WeakSlot", value)
		}
		return &record{policy: policy, slot: s}, nil
	case isSlot:
		return nil, policyError(policy, "a WeakSlot can only be stored under assign")
	case policy.IsCopy():
		v, err := snapshot(policy, value)
		if err != nil {
			return nil, err
		}
		return &record{policy: policy, value: v}, nil
	default:
		return &record{policy: policy, value: value}, nil
	}
}

func (t *Table) store(key IdentityKey, r *record) {
	s := t.getShard(key)
	if !r.policy.IsAtomic() && s.swap(key, r) {
		return
	}
	s.set(key, r)
}

func (t *Table) maybeSweep() {
	if !t.cfg.ManualSweep {
		t.Sweep()
	}
}

func (t *Table) getShard(key IdentityKey) *shard {
	return t.shards[key.ownerHash&t.shardMask]
}

// SetWeak stores a non-owning reference to target for key under Assign.
func SetWeak[V any](t *Table, key IdentityKey, target *V) error {
	return t.Set(key, Weak(target), Assign)
}
