// Package maplet implements a space-efficient approximate key-value store
// built on a quotient filter. Where a filter answers "is this key
// present?", a maplet answers "what value is associated with this key?"
// under a one-sided error guarantee: the returned value is the true value,
// possibly merged (through a pluggable operator) with the values of a
// small number of fingerprint-colliding keys - never missing the true
// contribution.
//
// The package focuses on:
//   - Compact storage: keys are reduced to fingerprints split into a
//     quotient (the canonical slot index) and a stored remainder, packed
//     together with three metadata bits per slot
//   - Pluggable value semantics through merge operators (counter, set
//     union, max/min, last-write-wins, user-supplied)
//   - Safe deletion via a multiset counter tracking arrival multiplicity
//   - Many-reader/serialized-writer concurrency under two reader-writer
//     locks, with linearizable per-engine ordering
//   - Growth by re-splitting the fixed fingerprint width, so every entry
//     survives a resize exactly
//
// Key Components:
//
//   - Maplet: the engine. Composes the quotient filter (lib/maplet/internal)
//     with a slot-aligned value table and the merge operator, enforces the
//     load bound, tracks collision statistics, and emits mutation records
//     for persistence collaborators.
//
//   - Hasher: the fingerprint function family (xxhash, fnv, sha256),
//     fixed per engine and seeded for determinism.
//
//   - Operator: the merge operator combining values on slot collisions.
//     The strong maplet guarantee needs associativity and commutativity;
//     operators without them document the consequences.
//
//   - Snapshot / Record: the surfaces persistence collaborators consume.
//     Snapshots carry the rebuild parameters plus all (slot, fingerprint,
//     value) triples; records describe single mutations in linearization
//     order and replay through InsertFingerprint/DeleteFingerprint.
//
// The engine is deliberately TTL-agnostic and I/O-free: expiry and
// persistence live in lib/store and lib/aof and observe the engine only
// through this package's API.
package maplet
