package internal

import (
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/pcg"
)

// checkInvariants validates the structural invariants after an operation:
// every stored fingerprint is found by Lookup, occupied bits match the set
// of stored quotients, and remainders ascend within each run.
func checkInvariants(t *testing.T, qf *Filter) {
	t.Helper()

	quotients := make(map[uint64]bool)
	count := uint64(0)
	var prevQ, prevR uint64
	for it := qf.Iter(); it.Next(); {
		fp := it.Fingerprint()
		q, r := qf.split(fp)
		quotients[q] = true
		// the iterator walks slots in order, so a run's elements are adjacent
		if count > 0 && q == prevQ {
			assert.That(t, r > prevR)
		}
		prevQ, prevR = q, r
		count++

		slot, ok := qf.Lookup(fp)
		assert.That(t, ok)
		assert.Equal(t, slot, it.Slot())
	}
	assert.Equal(t, count, qf.Len())

	for q := uint64(0); q < qf.Capacity(); q++ {
		assert.Equal(t, qf.slots.occupied(q), quotients[q])
	}
}

func TestFilter(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		qf, err := NewFilter(10, 5)
		assert.NoError(t, err)

		var rng pcg.T
		var e []uint64
		seen := make(map[uint64]bool)

		for len(e) < 500 {
			x := rng.Uint64() & (1<<15 - 1)
			if seen[x] {
				continue
			}
			seen[x] = true
			e = append(e, x)
			_, existed, err := qf.Insert(x, DiscardValues)
			assert.NoError(t, err)
			assert.That(t, !existed)
		}
		assert.Equal(t, qf.Len(), uint64(500))

		for _, v := range e {
			_, ok := qf.Lookup(v)
			assert.That(t, ok)
		}

		checkInvariants(t, qf)
	})

	t.Run("DuplicateInsert", func(t *testing.T) {
		qf, err := NewFilter(6, 4)
		assert.NoError(t, err)

		slot1, existed, err := qf.Insert(0x123, DiscardValues)
		assert.NoError(t, err)
		assert.That(t, !existed)

		slot2, existed, err := qf.Insert(0x123, DiscardValues)
		assert.NoError(t, err)
		assert.That(t, existed)
		assert.Equal(t, slot1, slot2)
		assert.Equal(t, qf.Len(), uint64(1))
	})

	t.Run("FalsePositiveRate", func(t *testing.T) {
		qf, err := NewFilter(10, 5)
		assert.NoError(t, err)

		var rng pcg.T
		for i := 0; i < 750; i++ {
			_, _, err := qf.Insert(rng.Uint64()&(1<<15-1), DiscardValues)
			assert.NoError(t, err)
		}

		got := 0
		for i := 0; i < 10000; i++ {
			if _, ok := qf.Lookup(rng.Uint64() & (1<<15 - 1)); ok {
				got++
			}
		}

		// 750/1024 load with 5 remainder bits: well under 3000 expected
		assert.That(t, got < 3000)
	})

	t.Run("DeleteRoundTrip", func(t *testing.T) {
		qf, err := NewFilter(8, 6)
		assert.NoError(t, err)

		var rng pcg.T
		var e []uint64
		seen := make(map[uint64]bool)
		for len(e) < 200 {
			x := rng.Uint64() & (1<<14 - 1)
			if seen[x] {
				continue
			}
			seen[x] = true
			e = append(e, x)
			_, _, err := qf.Insert(x, DiscardValues)
			assert.NoError(t, err)
		}

		// delete half, check the rest survives
		for _, v := range e[:100] {
			_, ok := qf.Delete(v, DiscardValues)
			assert.That(t, ok)
		}
		checkInvariants(t, qf)
		assert.Equal(t, qf.Len(), uint64(100))

		for _, v := range e[100:] {
			_, ok := qf.Lookup(v)
			assert.That(t, ok)
		}

		for _, v := range e[100:] {
			_, ok := qf.Delete(v, DiscardValues)
			assert.That(t, ok)
		}
		assert.Equal(t, qf.Len(), uint64(0))
		checkInvariants(t, qf)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		qf, err := NewFilter(6, 4)
		assert.NoError(t, err)

		_, _, err = qf.Insert(0x2a, DiscardValues)
		assert.NoError(t, err)

		_, ok := qf.Delete(0x2b, DiscardValues)
		assert.That(t, !ok)
		assert.Equal(t, qf.Len(), uint64(1))
	})

	t.Run("RandomizedModel", func(t *testing.T) {
		// small filter, heavy clustering: exercise shifting and compaction
		qf, err := NewFilter(5, 3)
		assert.NoError(t, err)

		var rng pcg.T
		model := make(map[uint64]bool)

		for step := 0; step < 4000; step++ {
			f := rng.Uint64() & (1<<8 - 1)
			if rng.Uint32n(3) == 0 {
				_, ok := qf.Delete(f, DiscardValues)
				assert.Equal(t, ok, model[f])
				delete(model, f)
			} else if qf.Len() < 24 { // stay below saturation
				_, existed, err := qf.Insert(f, DiscardValues)
				assert.NoError(t, err)
				assert.Equal(t, existed, model[f])
				model[f] = true
			}

			if step%97 == 0 {
				checkInvariants(t, qf)
			}
		}

		checkInvariants(t, qf)
		assert.Equal(t, qf.Len(), uint64(len(model)))
		for f := range model {
			_, ok := qf.Lookup(f)
			assert.That(t, ok)
		}
	})

	t.Run("Iterator", func(t *testing.T) {
		qf, err := NewFilter(10, 5)
		assert.NoError(t, err)

		var rng pcg.T
		e := make(map[uint64]bool)

		for len(e) < 500 {
			x := rng.Uint64() & (1<<15 - 1)
			if e[x] {
				continue
			}
			e[x] = true
			_, _, err := qf.Insert(x, DiscardValues)
			assert.NoError(t, err)
		}

		for it := qf.Iter(); it.Next(); {
			fp := it.Fingerprint()
			assert.That(t, e[fp])
			delete(e, fp)
		}
		assert.Equal(t, len(e), 0)
	})

	t.Run("SingleSlot", func(t *testing.T) {
		// capacity 1: one entry fits, a duplicate of it is still recognized,
		// and a second distinct fingerprint reports a full filter
		qf, err := NewFilter(0, 4)
		assert.NoError(t, err)

		_, _, err = qf.Insert(0x5, DiscardValues)
		assert.NoError(t, err)

		_, existed, err := qf.Insert(0x5, DiscardValues)
		assert.NoError(t, err)
		assert.That(t, existed)

		_, _, err = qf.Insert(0x6, DiscardValues)
		assert.Equal(t, err, ErrFilterFull)

		_, ok := qf.Delete(0x5, DiscardValues)
		assert.That(t, ok)
		assert.Equal(t, qf.Len(), uint64(0))
	})

	t.Run("InvalidBits", func(t *testing.T) {
		_, err := NewFilter(10, 0)
		assert.Equal(t, err, ErrInvalidBits)
		_, err = NewFilter(10, MaxRemainderBits+1)
		assert.Equal(t, err, ErrInvalidBits)
		_, err = NewFilter(MaxQuotientBits+1, 8)
		assert.Equal(t, err, ErrInvalidBits)
	})
}

// trackingStore records value movements so tests can verify the filter
// reports every shift and compaction.
type trackingStore struct {
	vals map[uint64]uint64
}

func newTrackingStore() *trackingStore { return &trackingStore{vals: make(map[uint64]uint64)} }

func (ts *trackingStore) Move(from, to uint64) {
	if v, ok := ts.vals[from]; ok {
		ts.vals[to] = v
	} else {
		delete(ts.vals, to)
	}
}

func (ts *trackingStore) Clear(slot uint64) { delete(ts.vals, slot) }

func TestFilterValueAlignment(t *testing.T) {
	// values must follow their fingerprints through arbitrary shifting
	qf, err := NewFilter(5, 3)
	assert.NoError(t, err)
	ts := newTrackingStore()

	var rng pcg.T
	model := make(map[uint64]uint64)

	for step := 0; step < 3000; step++ {
		f := rng.Uint64() & (1<<8 - 1)
		if rng.Uint32n(3) == 0 {
			_, ok := qf.Delete(f, ts)
			if ok {
				delete(model, f)
			}
		} else if qf.Len() < 24 {
			slot, existed, err := qf.Insert(f, ts)
			assert.NoError(t, err)
			if !existed {
				ts.vals[slot] = f
				model[f] = f
			}
		}

		if step%211 == 0 {
			for f := range model {
				slot, ok := qf.Lookup(f)
				assert.That(t, ok)
				assert.Equal(t, ts.vals[slot], f)
			}
		}
	}
}

func BenchmarkFilter(b *testing.B) {
	b.Run("Insert", func(b *testing.B) {
		qf, _ := NewFilter(11, 5)
		var rng pcg.T
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			qf.Insert(rng.Uint64(), DiscardValues)

			if (i+1)%1024 == 0 {
				qf, _ = NewFilter(11, 5)
			}
		}
	})

	b.Run("Lookup", func(b *testing.B) {
		qf, _ := NewFilter(10, 5)
		var rng pcg.T
		for i := 0; i < 750; i++ {
			qf.Insert(rng.Uint64(), DiscardValues)
		}
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			qf.Lookup(rng.Uint64())
		}
	})
}
