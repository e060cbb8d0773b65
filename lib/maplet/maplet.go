package maplet

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ValentinKolb/mappy/lib/maplet/internal"
	"github.com/ValentinKolb/mappy/lib/util"
)

// --------------------------------------------------------------------------
// Core Maplet structure
// --------------------------------------------------------------------------

// Maplet is a space-efficient approximate key-value store: a quotient
// filter over key fingerprints next to a slot-aligned value table,
// combined through a merge operator. Queries return the stored value for
// the key, possibly merged with the values of fingerprint-colliding keys;
// a stored key's contribution is never lost (one-sided error).
//
// Keys are never stored; only fingerprints of width quotient+remainder
// bits, fixed at construction. Resize re-splits the same bits, so entries
// survive resizes exactly while the effective error rate halves its
// resolution per doubling.
//
// Thread-safety: all methods are safe for concurrent use. The filter
// (plus multiset counter) and the value table are each guarded by a
// reader-writer lock; mutating operations hold both for their duration so
// filter slots and value slots populate together.
type Maplet[V any] struct {
	cfg    Config
	hasher Hasher
	op     Operator[V]

	fpBits uint   // fingerprint width, fixed for the engine's lifetime
	fpMask uint64 // 1<<fpBits - 1

	filterMu sync.RWMutex // guards filter and counts
	valueMu  sync.RWMutex // guards values
	filter   *internal.Filter
	values   *valueTable[V]
	counts   map[uint64]uint64 // fingerprint multiplicities, nil if deletion disabled

	inserts    atomic.Uint64 // lifetime insert operations
	collisions atomic.Uint64 // inserts that hit an equal fingerprint
	writeIdx   atomic.Uint64 // logical timestamp for emitted records

	events *util.LockFreeMPSC[Record[V]] // nil unless EmitRecords
	closed atomic.Bool
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// New creates a maplet engine with the given merge operator and
// configuration (nil for defaults).
//
// Thread-safety: this function is not thread-safe and should only be
// called once per engine during initialization.
func New[V any](op Operator[V], cfg *Config) (*Maplet[V], error) {
	if op == nil {
		return nil, NewError(RetCInvalidConfig, "merge operator must not be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	qbits, rbits, err := cfg.validate()
	if err != nil {
		return nil, err
	}

	hasher, err := NewHasher(cfg.HasherFamily, cfg.HasherSeed)
	if err != nil {
		return nil, err
	}

	filter, err := internal.NewFilter(qbits, rbits)
	if err != nil {
		return nil, NewError(RetCInvalidConfig, err.Error())
	}

	m := &Maplet[V]{
		cfg:    *cfg,
		hasher: hasher,
		op:     op,
		fpBits: qbits + rbits,
		fpMask: uint64(1)<<(qbits+rbits) - 1,
		filter: filter,
		values: newValueTable[V](filter.Capacity()),
	}

	if cfg.EnableDeletion {
		m.counts = make(map[uint64]uint64)
	}
	if cfg.EmitRecords {
		m.events = util.NewLockFreeMPSC[Record[V]]()
	}

	return m, nil
}

// Close shuts the engine down. The record stream (if any) is closed after
// delivering already-queued records; mutations after Close still apply to
// the in-memory structures but no longer emit records.
func (m *Maplet[V]) Close() error {
	if m.closed.CompareAndSwap(false, true) && m.events != nil {
		m.events.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Fingerprints
// --------------------------------------------------------------------------

// Fingerprint returns the truncated fingerprint the engine derives for a
// key. Collaborators use it to correlate records with keys; tests use it
// to construct colliding key pairs.
//
// Thread-safety: safe for concurrent use (the hasher is immutable).
func (m *Maplet[V]) Fingerprint(key string) uint64 {
	return m.hasher.Fingerprint(key) & m.fpMask
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert associates a value with a key. If the key's fingerprint already
// has a slot, the new value is merged into it (or the insert fails with
// AlreadyPresent when merging is disabled). When the load bound is hit the
// engine doubles its capacity first, or fails with CapacityExceeded when
// auto-resize is off. A failed insert leaves the engine unchanged.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Insert(key string, v V) error {
	return m.insert(m.Fingerprint(key), v, true)
}

// InsertFingerprint is the replay surface for persistence collaborators:
// it applies an insert for an already-derived fingerprint and does not
// emit a record (replay must not feed back into the log). Given the same
// seed, family and initial capacity, replaying a record stream reproduces
// identical engine state.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) InsertFingerprint(f uint64, v V) error {
	return m.insert(f&m.fpMask, v, false)
}

func (m *Maplet[V]) insert(f uint64, v V, emit bool) error {
	m.filterMu.Lock()
	defer m.filterMu.Unlock()
	m.valueMu.Lock()
	defer m.valueMu.Unlock()

	// admission control: only inserts that populate a new slot may push
	// the load factor past the bound
	if float64(m.filter.Len()+1) > m.cfg.MaxLoadFactor*float64(m.filter.Capacity()) {
		if _, present := m.filter.Lookup(f); !present {
			if !m.cfg.AutoResize {
				return NewError(RetCCapacityExceeded, fmt.Sprintf(
					"load bound %.2f reached at %d/%d slots",
					m.cfg.MaxLoadFactor, m.filter.Len(), m.filter.Capacity()))
			}
			if err := m.resizeLocked(m.filter.Capacity() * 2); err != nil {
				return err
			}
		}
	}

	slot, existed, err := m.filter.Insert(f, m.values)
	if err != nil {
		return NewError(RetCCapacityExceeded, err.Error())
	}

	if existed {
		m.collisions.Add(1)
		if !m.cfg.EnableMerging {
			return NewError(RetCAlreadyPresent, fmt.Sprintf("fingerprint %#x already stored", f))
		}
		existing, ok := m.values.get(slot)
		if !ok {
			return NewError(RetCInternalError, fmt.Sprintf("populated slot %d has no value", slot))
		}
		merged, mergeErr := m.op.Merge(existing, v)
		if mergeErr != nil {
			return NewError(RetCMergeFailed, mergeErr.Error())
		}
		m.values.set(slot, merged)
	} else {
		m.values.set(slot, v)
	}

	if m.counts != nil {
		m.counts[f]++
	}
	m.inserts.Add(1)

	if emit {
		m.emit(OpInsert, f, v, true)
	}
	return nil
}

// Delete removes one occurrence of a key. With deletion enabled the
// multiset counter is decremented first; the slot (and its value) is only
// released when the last occurrence goes. The return value reports whether
// this was the last occurrence. The value parameter is carried into the
// emitted record so replay reproduces the deletion; no inverse merge is
// attempted.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Delete(key string, v V) bool {
	return m.delete(m.Fingerprint(key), v, true)
}

// DeleteFingerprint is the replay counterpart of Delete; see
// InsertFingerprint.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) DeleteFingerprint(f uint64, v V) bool {
	return m.delete(f&m.fpMask, v, false)
}

func (m *Maplet[V]) delete(f uint64, v V, emit bool) bool {
	m.filterMu.Lock()
	defer m.filterMu.Unlock()
	m.valueMu.Lock()
	defer m.valueMu.Unlock()

	if m.counts != nil {
		c, tracked := m.counts[f]
		if !tracked {
			return false
		}
		if c > 1 {
			m.counts[f] = c - 1
			if emit {
				m.emit(OpDelete, f, v, true)
			}
			return false
		}
		delete(m.counts, f)
	}

	if _, ok := m.filter.Delete(f, m.values); !ok {
		return false
	}

	if emit {
		m.emit(OpDelete, f, v, true)
	}
	return true
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Query returns the value associated with a key. Under the strong maplet
// guarantee the result is the true value merged with the values of at most
// a geometrically-bounded number of fingerprint-colliding keys; a stored
// key is found with probability 1, a never-stored key is found with
// probability at most ε.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Query(key string) (V, bool) {
	f := m.Fingerprint(key)

	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()

	slot, ok := m.filter.Lookup(f)
	if !ok {
		var zero V
		return zero, false
	}
	v, ok := m.values.get(slot)
	if !ok {
		// slot and value table out of sync would be a bug; report absent
		var zero V
		return zero, false
	}
	return v, true
}

// Contains reports whether a key (or a fingerprint collision of it) is
// stored.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Contains(key string) bool {
	f := m.Fingerprint(key)

	m.filterMu.RLock()
	defer m.filterMu.RUnlock()

	_, ok := m.filter.Lookup(f)
	return ok
}

// FindSlotForKey returns the slot index currently holding the key's
// fingerprint (after any shifting). Slot indices are invalidated by
// resize; treat them as ephemeral diagnostics, not handles.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) FindSlotForKey(key string) (uint64, bool) {
	f := m.Fingerprint(key)

	m.filterMu.RLock()
	defer m.filterMu.RUnlock()

	return m.filter.Lookup(f)
}

// Len returns the number of distinct live fingerprints.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Len() uint64 {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	return m.filter.Len()
}

// IsEmpty reports whether the engine stores nothing.
func (m *Maplet[V]) IsEmpty() bool { return m.Len() == 0 }

// ErrorRate returns the configured nominal false-positive rate ε.
func (m *Maplet[V]) ErrorRate() float64 { return m.cfg.FalsePositiveRate }

// LoadFactor returns populated slots / capacity.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) LoadFactor() float64 {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	return float64(m.filter.Len()) / float64(m.filter.Capacity())
}

// Capacity returns the current slot-array size.
func (m *Maplet[V]) Capacity() uint64 {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	return m.filter.Capacity()
}

// Stats returns a consistent snapshot of engine statistics.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Stats() Stats {
	m.filterMu.RLock()
	defer m.filterMu.RUnlock()
	m.valueMu.RLock()
	defer m.valueMu.RUnlock()

	inserts := m.inserts.Load()
	collisions := m.collisions.Load()

	var collisionRate float64
	if inserts > 0 {
		collisionRate = float64(collisions) / float64(inserts)
	}

	var slotSize valueSlot[V]
	memory := m.filter.SizeBytes() + len(m.values.slots)*int(unsafe.Sizeof(slotSize))

	return Stats{
		Capacity:            m.filter.Capacity(),
		PopulatedSlots:      m.filter.Len(),
		Len:                 m.filter.Len(),
		LoadFactor:          float64(m.filter.Len()) / float64(m.filter.Capacity()),
		QuotientBits:        m.filter.QuotientBits(),
		RemainderBits:       m.filter.RemainderBits(),
		ConfiguredErrorRate: m.cfg.FalsePositiveRate,
		EffectiveErrorRate:  1 / math.Pow(2, float64(m.filter.RemainderBits())),
		Inserts:             inserts,
		Collisions:          collisions,
		CollisionRate:       collisionRate,
		MemoryBytes:         memory,
		ClusterDistribution: util.NewDistributionStats(m.filter.ClusterLengths()),
	}
}

// --------------------------------------------------------------------------
// Resize
// --------------------------------------------------------------------------

// Resize rebuilds the engine at a new capacity (rounded up to a power of
// two). Every stored fingerprint survives exactly; with an associative and
// commutative operator the stored values are unchanged, otherwise the
// rebuild order may reorder merges (caller responsibility). All slot
// indices handed out earlier are invalidated. On any error the original
// structures remain in place.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) Resize(newCapacity uint64) error {
	m.filterMu.Lock()
	defer m.filterMu.Unlock()
	m.valueMu.Lock()
	defer m.valueMu.Unlock()

	return m.resizeLocked(newCapacity)
}

// resizeLocked performs the rebuild. Caller holds both writer locks.
func (m *Maplet[V]) resizeLocked(newCapacity uint64) error {
	if newCapacity == 0 {
		return NewError(RetCInvalidCapacity, "capacity must be positive")
	}
	newCapacity = roundPow2(newCapacity)

	// the new table must fit the current population under the load bound
	minSlots := uint64(math.Ceil(float64(m.filter.Len()) / m.cfg.MaxLoadFactor))
	if newCapacity < minSlots {
		return NewError(RetCInvalidCapacity, fmt.Sprintf(
			"capacity %d cannot hold %d entries under load bound %.2f",
			newCapacity, m.filter.Len(), m.cfg.MaxLoadFactor))
	}

	// re-split the fixed fingerprint width
	qbits := quotientBitsFor(newCapacity)
	if qbits >= m.fpBits {
		return NewError(RetCInvalidCapacity, fmt.Sprintf(
			"capacity %d leaves no remainder bits (fingerprint width %d)", newCapacity, m.fpBits))
	}
	rbits := m.fpBits - qbits

	newFilter, err := internal.NewFilter(qbits, rbits)
	if err != nil {
		return NewError(RetCInvalidCapacity, err.Error())
	}
	newValues := newValueTable[V](newCapacity)

	// re-insert every entry in slot order under the new split
	for it := m.filter.Iter(); it.Next(); {
		v, ok := m.values.get(it.Slot())
		if !ok {
			return NewError(RetCInternalError, fmt.Sprintf("populated slot %d has no value", it.Slot()))
		}

		slot, existed, err := newFilter.Insert(it.Fingerprint(), newValues)
		if err != nil {
			return NewError(RetCCollisionLimit, fmt.Sprintf(
				"could not place fingerprint %#x: %v", it.Fingerprint(), err))
		}
		if existed {
			// a re-split keeps distinct fingerprints distinct, so this
			// path only merges if the source filter held a duplicate
			old, _ := newValues.get(slot)
			merged, mergeErr := m.op.Merge(old, v)
			if mergeErr != nil {
				return NewError(RetCMergeFailed, mergeErr.Error())
			}
			newValues.set(slot, merged)
		} else {
			newValues.set(slot, v)
		}
	}

	// atomic replace on success
	m.filter = newFilter
	m.values = newValues
	return nil
}

// roundPow2 rounds up to the next power of two
func roundPow2(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// --------------------------------------------------------------------------
// Record Stream
// --------------------------------------------------------------------------

// SetWriteIdx advances the engine's logical timestamp to idx if idx is
// greater than the current value. Replay uses it so that an engine rebuilt
// from records continues stamping where the original left off.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (m *Maplet[V]) SetWriteIdx(idx uint64) {
	for {
		curr := m.writeIdx.Load()
		if idx <= curr {
			return
		}
		if m.writeIdx.CompareAndSwap(curr, idx) {
			return
		}
	}
}

// WriteIdx returns the engine's current logical timestamp.
func (m *Maplet[V]) WriteIdx() uint64 {
	return m.writeIdx.Load()
}

// Records returns the engine's mutation record stream, or nil when
// EmitRecords is disabled. The stream is closed by Close after delivering
// queued records. A single consumer should drain it promptly; records are
// queued unboundedly in the meantime.
func (m *Maplet[V]) Records() <-chan *Record[V] {
	if m.events == nil {
		return nil
	}
	return m.events.Recv()
}

// emit pushes a record while the writer locks are held, so the stream
// order matches the linearization order.
func (m *Maplet[V]) emit(op OpCode, f uint64, v V, hasValue bool) {
	if m.events == nil {
		return
	}
	m.events.Push(&Record[V]{
		Op:          op,
		Fingerprint: f,
		Value:       v,
		HasValue:    hasValue,
		Timestamp:   m.writeIdx.Add(1),
	})
}
