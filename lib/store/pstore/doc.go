// Package pstore provides the persistent store: a local maplet engine
// whose mutation record stream is drained into an append-only log, with
// snapshot-based compaction.
//
// On open, the store restores the latest snapshot (if any) and replays the
// log suffix past the snapshot's timestamp watermark, which reproduces the
// engine state exactly (same hasher seed, family and capacity come from
// the snapshot). A background goroutine appends new records as the engine
// emits them and flushes them on a configurable interval, so durability is
// bounded by that interval, not by each operation's latency.
package pstore
