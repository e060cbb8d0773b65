package maplet

import "math"

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// SnapshotEntry is one stored element: the slot it occupied, its
// fingerprint and its value.
type SnapshotEntry[V any] struct {
	Slot        uint64
	Fingerprint uint64
	Value       V
}

// Snapshot is a copied-out view of the engine: the parameters needed to
// rebuild an identical engine plus every stored entry in slot order.
// Multiset counts are not part of a snapshot; restored entries start with
// multiplicity one.
type Snapshot[V any] struct {
	Capacity      uint64
	QuotientBits  uint
	RemainderBits uint
	HasherFamily  HasherFamily
	HasherSeed    uint64
	// LastTimestamp is the engine's logical timestamp at snapshot time.
	// Persistence collaborators use it as a replay watermark: records
	// stamped at or before it are already part of the snapshot.
	LastTimestamp uint64
	Entries       []SnapshotEntry[V]
}

// Snapshot captures the engine state under the read locks. Because the
// locks are released on return, the entries are copied out rather than
// streamed; persistence collaborators serialize the returned view at their
// leisure.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Snapshot() *Snapshot[V] {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()

	snap := &Snapshot[V]{
		Capacity:      m.filter.Capacity(),
		QuotientBits:  m.filter.QuotientBits(),
		RemainderBits: m.filter.RemainderBits(),
		HasherFamily:  m.hasher.Family(),
		HasherSeed:    m.hasher.Seed(),
		LastTimestamp: m.writeIdx.Load(),
		Entries:       make([]SnapshotEntry[V], 0, m.filter.Len()),
	}

	for it := m.filter.Iter(); it.Next(); {
		v, _ := m.values.get(it.Slot())
		snap.Entries = append(snap.Entries, SnapshotEntry[V]{
			Slot:        it.Slot(),
			Fingerprint: it.Fingerprint(),
			Value:       v,
		})
	}
	return snap
}

// FromSnapshot rebuilds an engine from a snapshot. The snapshot's
// capacity, fingerprint split, hasher family and seed override the
// corresponding fields of cfg (nil for defaults); the remaining flags
// (deletion, merging, record emission, load bound) come from cfg.
// Re-serializing a snapshot of the restored engine yields byte-identical
// output.
func FromSnapshot[V any](op Operator[V], snap *Snapshot[V], cfg *Config) (*Maplet[V], error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	restored := *cfg
	restored.Capacity = snap.Capacity
	restored.FalsePositiveRate = 1 / math.Pow(2, float64(snap.RemainderBits))
	restored.HasherFamily = snap.HasherFamily
	restored.HasherSeed = snap.HasherSeed

	m, err := New[V](op, &restored)
	if err != nil {
		return nil, err
	}
	m.SetWriteIdx(snap.LastTimestamp)

	for _, e := range snap.Entries {
		if err := m.InsertFingerprint(e.Fingerprint, e.Value); err != nil {
			return nil, err
		}
	}
	return m, nil
}
