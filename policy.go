package sidetable

import "fmt"

// Policy selects how a stored value is owned and how its write is
// synchronized with other table operations.
type Policy uint8

const (
	// Assign stores a non-owning reference. Reads report absence once the
	// referenced object has been collected.
	Assign Policy = iota + 1

	// Atomic stores the value as-is under exclusive access.
	Atomic

	// NonAtomic stores the value as-is with best-effort concurrent access.
	NonAtomic

	// CopyAtomic stores a copy of the value under exclusive access.
	CopyAtomic

	// CopyNonAtomic stores a copy of the value with best-effort concurrent access.
	CopyNonAtomic
)

// IsAtomic reports whether writes under p take the exclusive lock.
func (p Policy) IsAtomic() bool {
	return p == Atomic || p == CopyAtomic || p == Assign
}

// IsCopy reports whether values are snapshotted at write time.
func (p Policy) IsCopy() bool {
	return p == CopyAtomic || p == CopyNonAtomic
}

func (p Policy) valid() bool {
	return p >= Assign && p <= CopyNonAtomic
}

func (p Policy) String() string {
	switch p {
	case Assign:
		return "assign"
	case Atomic:
		return "atomic"
	case NonAtomic:
		return "non_atomic"
	case CopyAtomic:
		return "copy_atomic"
	case CopyNonAtomic:
		return "copy_non_atomic"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// Mode is the synchronization a caller asks for when declaring an accessor.
// The accessor constructors turn it into a concrete Policy.
type Mode uint8

const (
	// Atomically requests exclusive, read-after-write visible writes.
	Atomically Mode = iota

	// Nonatomically requests concurrent writes with eventual visibility.
	Nonatomically
)

func (m Mode) String() string {
	if m == Nonatomically {
		return "nonatomic"
	}
	return "atomic"
}

// resolve maps a requested mode onto a storage policy.
//
// Copying attachments always use a copy policy. Plain attachments keep the
// strong policy for reference types and fall back to the copy variant for
// value types, whose copy primitive is ordinary assignment.
func resolve(mode Mode, reference, copying bool) Policy {
	atomic := mode != Nonatomically
	if copying || !reference {
		if atomic {
			return CopyAtomic
		}
		return CopyNonAtomic
	}
	if atomic {
		return Atomic
	}
	return NonAtomic
}
