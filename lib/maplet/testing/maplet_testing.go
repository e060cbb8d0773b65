package testing

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/mappy/lib/maplet"
)

// ConfigFactory returns a fresh engine configuration. The suite adjusts
// capacity, error rate and feature flags per test; the factory fixes the
// hasher family and seed so every run is deterministic.
type ConfigFactory func() *maplet.Config

// RunMapletTests runs the full engine test suite.
func RunMapletTests(t *testing.T, name string, factory ConfigFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertQuery", func(t *testing.T) {
			testInsertQuery(t, factory)
		})

		t.Run("Presence", func(t *testing.T) {
			testPresence(t, factory)
		})

		t.Run("FalsePositiveRate", func(t *testing.T) {
			testFalsePositiveRate(t, factory)
		})

		t.Run("DeleteRoundTrip", func(t *testing.T) {
			testDeleteRoundTrip(t, factory)
		})

		t.Run("MultisetDelete", func(t *testing.T) {
			testMultisetDelete(t, factory)
		})

		t.Run("ResizePreservation", func(t *testing.T) {
			testResizePreservation(t, factory)
		})

		t.Run("FingerprintCollision", func(t *testing.T) {
			testFingerprintCollision(t, factory)
		})

		t.Run("ConcurrentInserts", func(t *testing.T) {
			testConcurrentInserts(t, factory)
		})

		t.Run("LoadBoundEnforcement", func(t *testing.T) {
			testLoadBoundEnforcement(t, factory)
		})

		t.Run("AutoResize", func(t *testing.T) {
			testAutoResize(t, factory)
		})

		t.Run("MergingDisabled", func(t *testing.T) {
			testMergingDisabled(t, factory)
		})

		t.Run("SnapshotRestore", func(t *testing.T) {
			testSnapshotRestore(t, factory)
		})

		t.Run("ReplayDeterminism", func(t *testing.T) {
			testReplayDeterminism(t, factory)
		})

		t.Run("CapacityOne", func(t *testing.T) {
			testCapacityOne(t, factory)
		})

		t.Run("EpsilonExtremes", func(t *testing.T) {
			testEpsilonExtremes(t, factory)
		})

		t.Run("InvalidConfig", func(t *testing.T) {
			testInvalidConfig(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// newCounter builds a counter-operator engine or fails the test
func newCounter(t testing.TB, cfg *maplet.Config) *maplet.Maplet[uint64] {
	t.Helper()
	m, err := maplet.New[uint64](maplet.NewCounterOperator(), cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return m
}

// mustInsert inserts and fails the test on error
func mustInsert(t testing.TB, m *maplet.Maplet[uint64], key string, v uint64) {
	t.Helper()
	if err := m.Insert(key, v); err != nil {
		t.Fatalf("Insert(%q, %d) failed: %v", key, v, err)
	}
}

// distinctKeys generates n keys with pairwise distinct fingerprints under
// the engine's hasher, so multiplicity bookkeeping in the test matches the
// engine's exactly.
func distinctKeys(t testing.TB, m *maplet.Maplet[uint64], prefix string, n int) []string {
	t.Helper()
	keys := make([]string, 0, n)
	seen := make(map[uint64]bool, n)
	for i := 0; len(keys) < n; i++ {
		k := fmt.Sprintf("%s-%d", prefix, i)
		f := m.Fingerprint(k)
		if seen[f] {
			continue
		}
		seen[f] = true
		keys = append(keys, k)
		if i > n*1000 {
			t.Fatalf("could not find %d distinct-fingerprint keys", n)
		}
	}
	return keys
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

// testInsertQuery is the counting scenario: repeated inserts accumulate
// through the additive operator, and query results are at least the true
// count (collisions can only add).
func testInsertQuery(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 1024
	cfg.FalsePositiveRate = 0.01
	m := newCounter(t, cfg)
	defer m.Close()

	mustInsert(t, m, "a", 1)
	mustInsert(t, m, "b", 1)
	mustInsert(t, m, "a", 1)

	if v, ok := m.Query("a"); !ok || v < 2 {
		t.Errorf("Query(a) = (%d, %t), expected at least 2", v, ok)
	}
	if v, ok := m.Query("b"); !ok || v < 1 {
		t.Errorf("Query(b) = (%d, %t), expected at least 1", v, ok)
	}

	// a never-inserted key must be reported absent for almost all keys;
	// measure over many to keep the test deterministic across seeds
	falsePositives := 0
	const probes = 1000
	for i := 0; i < probes; i++ {
		if m.Contains(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}
	if falsePositives > probes/20 {
		t.Errorf("%d/%d false positives, far above ε=0.01", falsePositives, probes)
	}
}

// testPresence: every inserted key is reported present (probability 1)
func testPresence(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 2048
	m := newCounter(t, cfg)
	defer m.Close()

	for i := 0; i < 500; i++ {
		mustInsert(t, m, fmt.Sprintf("key-%d", i), uint64(i))
	}

	for i := 0; i < 500; i++ {
		if !m.Contains(fmt.Sprintf("key-%d", i)) {
			t.Fatalf("inserted key-%d reported absent", i)
		}
		if _, ok := m.Query(fmt.Sprintf("key-%d", i)); !ok {
			t.Fatalf("inserted key-%d not queryable", i)
		}
	}
}

// testFalsePositiveRate: the measured rate for never-inserted keys stays
// within a generous multiple of ε
func testFalsePositiveRate(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 4096
	cfg.FalsePositiveRate = 0.01
	m := newCounter(t, cfg)
	defer m.Close()

	for i := 0; i < 2000; i++ {
		mustInsert(t, m, fmt.Sprintf("member-%d", i), 1)
	}

	falsePositives := 0
	const probes = 10000
	for i := 0; i < probes; i++ {
		if m.Contains(fmt.Sprintf("outsider-%d", i)) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / probes
	// observed rates up to ~1.5ε are expected; leave headroom for seed
	// variance on a finite sample
	if rate > 0.03 {
		t.Errorf("measured false-positive rate %.4f exceeds bound for ε=0.01", rate)
	}
}

// testDeleteRoundTrip: n inserts and n matching deletes leave the engine
// empty, including the value table
func testDeleteRoundTrip(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 64
	m := newCounter(t, cfg)
	defer m.Close()

	keys := distinctKeys(t, m, "k", 32)
	for _, k := range keys {
		mustInsert(t, m, k, 1)
	}
	if m.Len() != 32 {
		t.Fatalf("expected 32 entries, got %d", m.Len())
	}

	for _, k := range keys {
		if !m.Delete(k, 1) {
			t.Errorf("Delete(%q) did not remove the last occurrence", k)
		}
	}

	if m.Len() != 0 {
		t.Errorf("expected empty engine, len = %d", m.Len())
	}
	if stats := m.Stats(); stats.PopulatedSlots != 0 {
		t.Errorf("expected 0 populated slots, got %d", stats.PopulatedSlots)
	}
	for _, k := range keys {
		if m.Contains(k) {
			t.Errorf("deleted key %q still reported present", k)
		}
	}
}

// testMultisetDelete: duplicates release their slot only on the last delete
func testMultisetDelete(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 64
	m := newCounter(t, cfg)
	defer m.Close()

	mustInsert(t, m, "dup", 1)
	mustInsert(t, m, "dup", 1)
	mustInsert(t, m, "dup", 1)

	if m.Len() != 1 {
		t.Fatalf("expected 1 distinct fingerprint, got %d", m.Len())
	}

	if last := m.Delete("dup", 1); last {
		t.Error("first delete of three must not be the last occurrence")
	}
	if last := m.Delete("dup", 1); last {
		t.Error("second delete of three must not be the last occurrence")
	}
	if !m.Contains("dup") {
		t.Error("key must stay present while occurrences remain")
	}
	if last := m.Delete("dup", 1); !last {
		t.Error("third delete must be the last occurrence")
	}
	if m.Len() != 0 || m.Contains("dup") {
		t.Error("engine must be empty after the last occurrence is deleted")
	}
}

// testResizePreservation: every entry survives a resize, and with an
// associative+commutative operator the values are unchanged
func testResizePreservation(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 32
	cfg.FalsePositiveRate = 0.01
	cfg.AutoResize = false
	cfg.MaxLoadFactor = 1.0

	m, err := maplet.New[map[string]struct{}](maplet.NewSetOperator(), cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer m.Close()

	before := make(map[string]map[string]struct{}, 30)
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("tag-%d", i)
		member := fmt.Sprintf("%d", i)
		if err := m.Insert(key, map[string]struct{}{member: {}}); err != nil {
			t.Fatalf("Insert(%q) failed: %v", key, err)
		}
	}
	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("tag-%d", i)
		v, ok := m.Query(key)
		if !ok {
			t.Fatalf("key %q absent before resize", key)
		}
		before[key] = v
	}

	if err := m.Resize(128); err != nil {
		t.Fatalf("Resize(128) failed: %v", err)
	}

	for i := 0; i < 30; i++ {
		key := fmt.Sprintf("tag-%d", i)
		member := fmt.Sprintf("%d", i)
		v, ok := m.Query(key)
		if !ok {
			t.Fatalf("key %q lost by resize", key)
		}
		if _, found := v[member]; !found {
			t.Errorf("key %q lost its own member %q", key, member)
		}
		if !reflect.DeepEqual(v, before[key]) {
			t.Errorf("key %q changed value across resize: %v != %v", key, v, before[key])
		}
	}
}

// testFingerprintCollision: two keys sharing a fingerprint observably
// merge under the max operator
func testFingerprintCollision(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 64
	cfg.FalsePositiveRate = 0.01

	m, err := maplet.New[uint64](maplet.NewMaxOperator[uint64](0), cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer m.Close()

	// brute-force a colliding pair under the configured seed; the
	// fingerprint space is small enough that one always exists nearby
	seen := make(map[uint64]string)
	var k1, k2 string
	for i := 0; ; i++ {
		k := fmt.Sprintf("probe-%d", i)
		f := m.Fingerprint(k)
		if prev, ok := seen[f]; ok {
			k1, k2 = prev, k
			break
		}
		seen[f] = k
		if i > 1_000_000 {
			t.Fatal("no fingerprint collision found")
		}
	}

	if err := m.Insert(k1, 10); err != nil {
		t.Fatalf("Insert(%q) failed: %v", k1, err)
	}
	if err := m.Insert(k2, 5); err != nil {
		t.Fatalf("Insert(%q) failed: %v", k2, err)
	}

	if v, ok := m.Query(k1); !ok || v != 10 {
		t.Errorf("Query(%q) = (%d, %t), expected 10", k1, v, ok)
	}
	if v, ok := m.Query(k2); !ok || v != 10 {
		t.Errorf("Query(%q) = (%d, %t), expected 10 (merged with collider)", k2, v, ok)
	}

	if stats := m.Stats(); stats.Collisions == 0 {
		t.Error("collision counter did not record the colliding insert")
	}
}

// testConcurrentInserts: 8 writers, 512 distinct-fingerprint keys each
func testConcurrentInserts(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 4096
	cfg.FalsePositiveRate = 0.001
	m := newCounter(t, cfg)
	defer m.Close()

	keys := distinctKeys(t, m, "c", 4096)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(part []string) {
			defer wg.Done()
			for _, k := range part {
				if err := m.Insert(k, 1); err != nil {
					errs <- err
					return
				}
			}
		}(keys[w*512 : (w+1)*512])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent insert failed: %v", err)
	}

	if m.Len() != 4096 {
		t.Errorf("expected 4096 entries, got %d", m.Len())
	}
	for _, k := range keys {
		if _, ok := m.Query(k); !ok {
			t.Fatalf("key %q not queryable after concurrent insert", k)
		}
	}
}

// testLoadBoundEnforcement: with auto-resize off the 13th insert into a
// 16-slot engine at load bound 0.75 fails and changes nothing
func testLoadBoundEnforcement(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 16
	cfg.MaxLoadFactor = 0.75
	cfg.AutoResize = false
	m := newCounter(t, cfg)
	defer m.Close()

	keys := distinctKeys(t, m, "lb", 13)
	for _, k := range keys[:12] {
		mustInsert(t, m, k, 1)
	}

	err := m.Insert(keys[12], 1)
	if maplet.CodeOf(err) != maplet.RetCCapacityExceeded {
		t.Fatalf("13th insert = %v, expected CapacityExceeded", err)
	}

	if m.Len() != 12 {
		t.Errorf("failed insert changed the engine: len = %d", m.Len())
	}
	if stats := m.Stats(); stats.LoadFactor > cfg.MaxLoadFactor {
		t.Errorf("load factor %.3f exceeds bound %.2f", stats.LoadFactor, cfg.MaxLoadFactor)
	}
}

// testAutoResize: the engine grows transparently past its initial capacity
func testAutoResize(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 16
	cfg.FalsePositiveRate = 0.001
	cfg.AutoResize = true
	m := newCounter(t, cfg)
	defer m.Close()

	keys := distinctKeys(t, m, "ar", 100)
	for _, k := range keys {
		mustInsert(t, m, k, 1)
	}

	if m.Capacity() <= 16 {
		t.Errorf("capacity did not grow, still %d", m.Capacity())
	}
	if m.Len() != 100 {
		t.Errorf("expected 100 entries after growth, got %d", m.Len())
	}
	for _, k := range keys {
		if !m.Contains(k) {
			t.Fatalf("key %q lost during auto-resize", k)
		}
	}
	if stats := m.Stats(); stats.LoadFactor > cfg.MaxLoadFactor {
		t.Errorf("load factor %.3f exceeds bound after auto-resize", stats.LoadFactor)
	}
}

// testMergingDisabled: duplicate-slot inserts report AlreadyPresent and
// leave the stored value alone
func testMergingDisabled(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 64
	cfg.EnableMerging = false
	m := newCounter(t, cfg)
	defer m.Close()

	mustInsert(t, m, "once", 7)

	err := m.Insert("once", 3)
	if maplet.CodeOf(err) != maplet.RetCAlreadyPresent {
		t.Fatalf("duplicate insert = %v, expected AlreadyPresent", err)
	}
	if v, _ := m.Query("once"); v != 7 {
		t.Errorf("stored value changed by rejected insert: %d", v)
	}
}

// testSnapshotRestore: snapshot -> restore -> snapshot is byte-identical,
// and repeated snapshots without writers are identical (consistent view)
func testSnapshotRestore(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 256
	m := newCounter(t, cfg)
	defer m.Close()

	for i := 0; i < 100; i++ {
		mustInsert(t, m, fmt.Sprintf("snap-%d", i), uint64(i))
	}

	snap1 := m.Snapshot()
	snap2 := m.Snapshot()
	if !reflect.DeepEqual(snap1, snap2) {
		t.Fatal("repeated snapshots with no interleaved writer differ")
	}

	restored, err := maplet.FromSnapshot[uint64](maplet.NewCounterOperator(), snap1, factory())
	if err != nil {
		t.Fatalf("FromSnapshot failed: %v", err)
	}
	defer restored.Close()

	snap3 := restored.Snapshot()
	if !reflect.DeepEqual(snap1, snap3) {
		t.Fatal("snapshot of the restored engine differs from the original")
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("snap-%d", i)
		want, _ := m.Query(key)
		got, ok := restored.Query(key)
		if !ok || got != want {
			t.Fatalf("restored Query(%q) = (%d, %t), want %d", key, got, ok, want)
		}
	}
}

// testReplayDeterminism: draining the record stream into a second engine
// with the same seed and capacity reproduces identical state
func testReplayDeterminism(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 128
	cfg.EmitRecords = true
	m := newCounter(t, cfg)

	keys := distinctKeys(t, m, "rp", 40)
	for _, k := range keys {
		mustInsert(t, m, k, 2)
	}
	for _, k := range keys[:10] {
		m.Delete(k, 2)
	}
	m.Close()

	replayCfg := factory()
	replayCfg.Capacity = 128
	replay := newCounter(t, replayCfg)
	defer replay.Close()

	for rec := range m.Records() {
		switch rec.Op {
		case maplet.OpInsert:
			if err := replay.InsertFingerprint(rec.Fingerprint, rec.Value); err != nil {
				t.Fatalf("replaying insert failed: %v", err)
			}
		case maplet.OpDelete:
			replay.DeleteFingerprint(rec.Fingerprint, rec.Value)
		}
		replay.SetWriteIdx(rec.Timestamp)
	}

	if !reflect.DeepEqual(m.Snapshot(), replay.Snapshot()) {
		t.Fatal("replayed engine state differs from the original")
	}
}

// testCapacityOne: the smallest engine works until its sole slot is taken
func testCapacityOne(t *testing.T, factory ConfigFactory) {
	cfg := factory()
	cfg.Capacity = 1
	cfg.MaxLoadFactor = 1.0
	cfg.AutoResize = false
	m := newCounter(t, cfg)
	defer m.Close()

	mustInsert(t, m, "solo", 1)
	if !m.Contains("solo") {
		t.Error("sole entry not found")
	}

	// a duplicate of the same key still merges
	mustInsert(t, m, "solo", 1)
	if v, _ := m.Query("solo"); v != 2 {
		t.Errorf("expected merged count 2, got %d", v)
	}

	keys := distinctKeys(t, m, "other", 2)
	other := keys[0]
	if m.Fingerprint(other) == m.Fingerprint("solo") {
		other = keys[1]
	}
	if err := m.Insert(other, 1); maplet.CodeOf(err) != maplet.RetCCapacityExceeded {
		t.Errorf("insert into a full single-slot engine = %v, expected CapacityExceeded", err)
	}
}

// testEpsilonExtremes: the remainder width clamps to sensible bounds
func testEpsilonExtremes(t *testing.T, factory ConfigFactory) {
	for _, eps := range []float64{0.5, 1e-6} {
		cfg := factory()
		cfg.Capacity = 256
		cfg.FalsePositiveRate = eps
		m := newCounter(t, cfg)

		for i := 0; i < 50; i++ {
			mustInsert(t, m, fmt.Sprintf("e-%d", i), 1)
		}
		for i := 0; i < 50; i++ {
			if !m.Contains(fmt.Sprintf("e-%d", i)) {
				t.Errorf("ε=%v: inserted key absent", eps)
			}
		}

		stats := m.Stats()
		if stats.RemainderBits < 1 || stats.RemainderBits > 32 {
			t.Errorf("ε=%v: remainder bits %d out of clamp range", eps, stats.RemainderBits)
		}
		m.Close()
	}
}

// testInvalidConfig: configuration errors are raised at construction
func testInvalidConfig(t *testing.T, factory ConfigFactory) {
	cases := []func(*maplet.Config){
		func(c *maplet.Config) { c.Capacity = 0 },
		func(c *maplet.Config) { c.FalsePositiveRate = 0 },
		func(c *maplet.Config) { c.FalsePositiveRate = 1 },
		func(c *maplet.Config) { c.FalsePositiveRate = -0.5 },
		func(c *maplet.Config) { c.MaxLoadFactor = 0 },
		func(c *maplet.Config) { c.MaxLoadFactor = 1.5 },
	}
	for i, mutate := range cases {
		cfg := factory()
		mutate(cfg)
		if _, err := maplet.New[uint64](maplet.NewCounterOperator(), cfg); maplet.CodeOf(err) != maplet.RetCInvalidConfig {
			t.Errorf("case %d: expected InvalidConfig, got %v", i, err)
		}
	}
}
