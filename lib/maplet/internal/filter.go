package internal

import (
	"errors"
)

// --------------------------------------------------------------------------
// Limits and Errors
// --------------------------------------------------------------------------

const (
	// MinRemainderBits is the lower clamp for the remainder width; a
	// remainder narrower than one bit cannot discriminate anything.
	MinRemainderBits uint = 1
	// MaxRemainderBits caps the remainder width; 32 bits corresponds to a
	// nominal false-positive rate far below anything callers ask for.
	MaxRemainderBits uint = 32
	// MaxQuotientBits caps the slot count at 2^48.
	MaxQuotientBits uint = 48
)

var (
	// ErrFilterFull is returned when every slot is populated. The engine's
	// load bound normally triggers a resize long before this fires.
	ErrFilterFull = errors.New("quotient filter: all slots populated")
	// ErrInvalidBits is returned for out-of-range quotient/remainder widths.
	ErrInvalidBits = errors.New("quotient filter: invalid quotient/remainder bit widths")
)

// --------------------------------------------------------------------------
// ValueStore Interface
// --------------------------------------------------------------------------

// ValueStore is the filter's view of the value table. Structural operations
// (shifting on insert, compaction on delete) report every slot movement so
// the table stays index-aligned with the filter. Both are mutated under the
// same writer lock, held by the engine.
type ValueStore interface {
	// Move copies the value at slot from to slot to. The source keeps its
	// contents; it is either overwritten by a later move or cleared.
	Move(from, to uint64)
	// Clear empties the value at the given slot.
	Clear(slot uint64)
}

// discardValues is used when no value table accompanies the filter (tests,
// rebuild probes).
type discardValues struct{}

func (discardValues) Move(from, to uint64) {}
func (discardValues) Clear(slot uint64)    {}

// DiscardValues is a ValueStore that ignores all movements.
var DiscardValues ValueStore = discardValues{}

// --------------------------------------------------------------------------
// Filter
// --------------------------------------------------------------------------

// Filter is a quotient filter over fingerprints of width qbits+rbits. The
// high qbits select the canonical slot, the low rbits are stored in the
// slot array. Elements sharing a quotient form a run (remainder-sorted);
// consecutive populated slots form a cluster.
//
// The filter is purely structural: it stores no values and keeps no
// multiset counts. It is not safe for concurrent use; the engine
// serializes access.
type Filter struct {
	slots *slotArray
	qbits uint
	rbits uint
	qmask uint64 // capacity - 1
	rmask uint64 // 1<<rbits - 1
	len   uint64 // populated slots == distinct stored fingerprints
}

// NewFilter creates an empty filter with 2^qbits slots and rbits-wide
// remainders.
func NewFilter(qbits, rbits uint) (*Filter, error) {
	if qbits > MaxQuotientBits || rbits < MinRemainderBits || rbits > MaxRemainderBits {
		return nil, ErrInvalidBits
	}
	return &Filter{
		slots: newSlotArray(uint64(1)<<qbits, rbits),
		qbits: qbits,
		rbits: rbits,
		qmask: uint64(1)<<qbits - 1,
		rmask: uint64(1)<<rbits - 1,
	}, nil
}

func (qf *Filter) Len() uint64          { return qf.len }
func (qf *Filter) Capacity() uint64     { return qf.qmask + 1 }
func (qf *Filter) QuotientBits() uint   { return qf.qbits }
func (qf *Filter) RemainderBits() uint  { return qf.rbits }
func (qf *Filter) FingerprintBits() uint { return qf.qbits + qf.rbits }
func (qf *Filter) SizeBytes() int       { return qf.slots.sizeBytes() }

func (qf *Filter) next(i uint64) uint64 { return (i + 1) & qf.qmask }
func (qf *Filter) prev(i uint64) uint64 { return (i - 1) & qf.qmask }

// populated reports whether a slot carries an element. An occupied index
// is always inside its own cluster, so occupied implies populated.
func (qf *Filter) populated(i uint64) bool {
	return qf.slots.get(i)&(bitOccupied|bitShifted) != 0
}

func (qf *Filter) split(f uint64) (q, r uint64) {
	return (f >> qf.rbits) & qf.qmask, f & qf.rmask
}

// --------------------------------------------------------------------------
// Run Location
// --------------------------------------------------------------------------

// runStart locates the first slot of the run for quotient q. The caller
// guarantees occupied(q) (possibly freshly set during an insert).
//
// The walk follows the filter invariants: back up to the cluster start (the
// first unshifted slot), count occupied home slots in [start, q], then skip
// that many runs minus one from the cluster start - runs appear in
// ascending quotient order, one run-end each.
func (qf *Filter) runStart(q uint64) uint64 {
	// cluster start
	c := q
	for qf.slots.shifted(c) {
		c = qf.prev(c)
	}

	// count occupied home slots in [c, q]
	occ := 0
	for j := c; ; j = qf.next(j) {
		if qf.slots.occupied(j) {
			occ++
		}
		if j == q {
			break
		}
	}

	// skip occ-1 run ends from the cluster start
	i := c
	for k := 1; k < occ; k++ {
		for !qf.slots.runEnd(i) {
			i = qf.next(i)
		}
		i = qf.next(i)
	}
	return i
}

// --------------------------------------------------------------------------
// Lookup
// --------------------------------------------------------------------------

// Lookup returns the slot currently holding fingerprint f, if present.
func (qf *Filter) Lookup(f uint64) (uint64, bool) {
	q, r := qf.split(f)

	if !qf.slots.occupied(q) {
		return 0, false
	}

	i := qf.runStart(q)
	for {
		rem := qf.slots.remainder(i)
		if rem == r {
			return i, true
		}
		// remainders are ascending within a run
		if rem > r || qf.slots.runEnd(i) {
			return 0, false
		}
		i = qf.next(i)
	}
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

// Insert places fingerprint f. It returns the slot the fingerprint ended up
// in and whether an equal fingerprint was already present (in which case
// the filter is unchanged). Value movements caused by shifting are reported
// to vs.
func (qf *Filter) Insert(f uint64, vs ValueStore) (slot uint64, existed bool, err error) {
	if qf.len >= qf.Capacity() {
		// a fingerprint that is already stored needs no new slot
		if s, ok := qf.Lookup(f); ok {
			return s, true, nil
		}
		return 0, false, ErrFilterFull
	}

	q, r := qf.split(f)

	// vacant canonical slot: the element starts (and ends) its own run
	if !qf.populated(q) {
		qf.slots.setElement(q, r, true, false)
		qf.slots.setOccupied(q, true)
		qf.len++
		return q, false, nil
	}

	wasOccupied := qf.slots.occupied(q)
	qf.slots.setOccupied(q, true)

	start := qf.runStart(q)
	pos := start
	newRunEnd := !wasOccupied // a brand-new run is a run of one

	if wasOccupied {
		// find the insertion point by ascending remainder order
		for {
			rem := qf.slots.remainder(pos)
			if rem == r {
				return pos, true, nil
			}
			if rem > r {
				break
			}
			if qf.slots.runEnd(pos) {
				// the new element becomes the run's largest
				qf.slots.setRunEnd(pos, false)
				pos = qf.next(pos)
				newRunEnd = true
				break
			}
			pos = qf.next(pos)
		}
	}

	qf.insertAt(pos, r, newRunEnd, pos != q, vs)
	qf.len++
	return pos, false, nil
}

// insertAt writes an element at pos, shifting the populated slots starting
// at pos one position right. Occupied bits stay with their indices; the
// run-end bit travels with each displaced element.
func (qf *Filter) insertAt(pos uint64, rem uint64, runEnd, shifted bool, vs ValueStore) {
	// locate the first vacant slot right of pos
	end := pos
	for qf.populated(end) {
		end = qf.next(end)
	}

	// shift [pos, end) one slot right, back to front
	for i := end; i != pos; {
		p := qf.prev(i)
		qf.slots.setElement(i, qf.slots.remainder(p), qf.slots.runEnd(p), true)
		vs.Move(p, i)
		i = p
	}

	qf.slots.setElement(pos, rem, runEnd, shifted)
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

// element is a decoded cluster entry: canonical quotient, remainder and the
// slot it currently sits in.
type element struct {
	quo  uint64
	rem  uint64
	slot uint64
}

// Delete removes fingerprint f from the filter, compacting the cluster it
// sat in. It returns the slot the element was removed from. Multiplicity
// accounting happens above the filter; a call here always removes the
// stored element.
//
// The implementation decodes the movable prefix of the cluster (up to the
// first vacancy or anchored element), drops the target, and re-places the
// survivors under the invariants: runs in quotient order, remainders
// ascending, each run starting no earlier than its canonical slot.
func (qf *Filter) Delete(f uint64, vs ValueStore) (uint64, bool) {
	target, ok := qf.Lookup(f)
	if !ok {
		return 0, false
	}
	q, _ := qf.split(f)

	// decode from the cluster start
	c := target
	for qf.slots.shifted(c) {
		c = qf.prev(c)
	}

	var elems []element
	quo := c // the cluster's first run belongs to its start index
	i := c
	for {
		elems = append(elems, element{quo, qf.slots.remainder(i), i})
		wasEnd := qf.slots.runEnd(i)
		i = qf.next(i)
		if i == c || !qf.slots.shifted(i) {
			// vacancy or an element anchored at its canonical index:
			// nothing past this point can move left
			break
		}
		if wasEnd {
			// next run belongs to the next occupied home slot
			quo = qf.next(quo)
			for !qf.slots.occupied(quo) {
				quo = qf.next(quo)
			}
		}
	}
	last := qf.prev(i)

	// drop the target, track whether its quotient still has elements
	keep := make([]element, 0, len(elems)-1)
	remaining := 0
	for _, e := range elems {
		if e.slot == target {
			continue
		}
		keep = append(keep, e)
		if e.quo == q {
			remaining++
		}
	}
	if remaining == 0 {
		qf.slots.setOccupied(q, false)
	}
	vs.Clear(target)

	// ring offset relative to the cluster start; placement and clearing
	// walk strictly left-to-right in this order
	off := func(x uint64) uint64 { return (x - c) & qf.qmask }

	cursor := c
	newPos := make([]uint64, 0, len(keep))
	for idx, e := range keep {
		pos := cursor
		newRun := idx == 0 || keep[idx-1].quo != e.quo
		if newRun && off(e.quo) > off(cursor) {
			// the run re-anchors at its canonical slot, leaving a gap
			pos = e.quo
		}

		// clear any gap between cursor and pos
		for gap := cursor; gap != pos; gap = qf.next(gap) {
			qf.slots.clearElement(gap)
			vs.Clear(gap)
		}

		if newRun && idx > 0 {
			qf.slots.setRunEnd(newPos[idx-1], true)
		}
		qf.slots.setElement(pos, e.rem, false, pos != e.quo)
		if e.slot != pos {
			vs.Move(e.slot, pos)
		}
		newPos = append(newPos, pos)
		cursor = qf.next(pos)
	}
	if len(keep) > 0 {
		qf.slots.setRunEnd(newPos[len(keep)-1], true)
	}

	// clear the freed tail of the decoded range
	if off(cursor) <= off(last) {
		for gap := cursor; ; gap = qf.next(gap) {
			qf.slots.clearElement(gap)
			vs.Clear(gap)
			if gap == last {
				break
			}
		}
	}

	qf.len--
	return target, true
}

// --------------------------------------------------------------------------
// Iteration
// --------------------------------------------------------------------------

// Iter walks all stored fingerprints in slot order, reconstructing each
// fingerprint from the tracked run quotient and the stored remainder.
type Iter struct {
	qf       *Filter
	idx      uint64
	quo      uint64
	visited  uint64
	afterEnd bool
	slot     uint64
	fp       uint64
}

// Iter returns an iterator positioned at a cluster start. The filter must
// not be mutated while the iterator is live; the engine guarantees this by
// holding its read lock (resize and snapshot iterate under the write or
// read lock respectively).
func (qf *Filter) Iter() *Iter {
	it := &Iter{qf: qf}
	if qf.len == 0 {
		return it
	}
	i := uint64(0)
	for !(qf.populated(i) && !qf.slots.shifted(i)) {
		i = qf.next(i)
	}
	it.idx = i
	it.quo = i
	return it
}

// Next advances to the next stored fingerprint. It returns false once all
// entries have been visited.
func (it *Iter) Next() bool {
	qf := it.qf
	if it.visited >= qf.len {
		return false
	}
	for {
		i := it.idx
		if !qf.populated(i) {
			it.afterEnd = false
			it.idx = qf.next(i)
			continue
		}
		if !qf.slots.shifted(i) {
			// anchored element: run and cluster start at the canonical index
			it.quo = i
		} else if it.afterEnd {
			// new run within the cluster: next occupied home slot
			nq := qf.next(it.quo)
			for !qf.slots.occupied(nq) {
				nq = qf.next(nq)
			}
			it.quo = nq
		}
		it.slot = i
		it.fp = it.quo<<qf.rbits | qf.slots.remainder(i)
		it.afterEnd = qf.slots.runEnd(i)
		it.visited++
		it.idx = qf.next(i)
		return true
	}
}

// Slot returns the current element's slot index.
func (it *Iter) Slot() uint64 { return it.slot }

// Fingerprint returns the current element's reconstructed fingerprint.
func (it *Iter) Fingerprint() uint64 { return it.fp }

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// ClusterLengths returns the length of every cluster, for distribution
// reporting. O(capacity).
func (qf *Filter) ClusterLengths() []float64 {
	if qf.len == 0 {
		return nil
	}
	capacity := qf.Capacity()
	if qf.len == capacity {
		return []float64{float64(capacity)}
	}

	// start just past a vacancy so a wrapped cluster is not split
	start := uint64(0)
	for qf.populated(start) {
		start = qf.next(start)
	}

	var lengths []float64
	run := 0
	for n := uint64(0); n < capacity; n++ {
		i := (start + 1 + n) & qf.qmask
		if qf.populated(i) {
			run++
		} else if run > 0 {
			lengths = append(lengths, float64(run))
			run = 0
		}
	}
	if run > 0 {
		lengths = append(lengths, float64(run))
	}
	return lengths
}
