// Package testing provides a reusable test and benchmark suite for the
// maplet engine, run once per hasher family from the engine's own tests.
// The suite covers the structural invariants, the probabilistic guarantees
// (presence with probability 1, bounded false-positive rate), deletion
// round-trips, resize preservation, concurrency, snapshot/replay
// determinism and the documented boundary behaviors.
package testing
