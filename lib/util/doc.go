// Package util provides shared building blocks for the maplet engine and
// its collaborators: seed generation, string hashing, a keyed priority
// heap (used by the TTL store), a lock-free MPSC queue (used for the
// engine's mutation record stream) and statistics helpers.
package util
