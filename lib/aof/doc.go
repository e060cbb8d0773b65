// Package aof implements the persistence codecs for the maplet engine:
// an append-only log of mutation records and a compressed snapshot format.
//
// The log stores the engine's record stream verbatim (op code, truncated
// fingerprint, value, logical timestamp) in the order the engine emitted
// it, which matches the linearization order. Replaying a log against an
// engine built with the same hasher seed, family and initial capacity
// reproduces identical state.
//
// Snapshots capture a full engine view (rebuild parameters plus all slot/
// fingerprint/value triples) behind a zstd-compressed stream; a snapshot
// plus the log suffix written after it restores a persistent store.
package aof
