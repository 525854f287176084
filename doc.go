// Package sidetable attaches typed values to existing objects without
// changing their definition, keyed by object identity plus an attribute key.
//
// Key properties:
//
//   - Identity keys compare the owner object itself, never only a hash, and
//     never keep the owner alive.
//   - Per-write ownership policies: Assign (non-owning), Atomic and NonAtomic
//     (stored as-is), CopyAtomic and CopyNonAtomic (snapshotted on write).
//   - Entries of collected owners are reclaimed by Sweep, which runs before
//     each access by default and costs nothing when there is nothing to do.
//     Compact performs a full scan on demand.
//   - Accessor fixes the policy per attribute at construction and performs
//     lazy first-access initialization through Bind.
//
// # Configuration
//
// Config is a plain struct. Set the fields you care about and pass it to
// New, which calls Config.Build to normalize them. ConfigFromViper reads the
// same fields from a viper instance.
//
// # Concurrency
//
// Table operations are safe for concurrent use. Atomic-family writes are
// exclusive and visible to every later read. Non-atomic writes to an existing
// entry run concurrently with readers and with each other and only promise
// eventual visibility.
//
// # Reclamation
//
// Owners and Assign targets are watched with runtime.AddCleanup, so their
// entries become reclaimable after the garbage collector has freed them.
// Values stored strongly that point back at their owner keep it reachable.
package sidetable
