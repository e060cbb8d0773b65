// Package lstore provides the local, in-memory store implementation: a
// byte-valued maplet engine with a last-write-wins merge operator, plus
// snapshot-based Save/Load. It tracks the distribution of stored value
// sizes for GetInfo.
//
// Expiry is not supported here; wrap the store with tstore for TTL
// semantics, or use pstore for durability.
package lstore
