// Package tstore decorates any IStore with time-to-live semantics. The
// wrapped engine stays TTL-agnostic: this package receives the inserts,
// keeps a (key-hash → expiry) index in a keyed priority heap, and calls
// Delete on the inner store when entries fall due.
package tstore
