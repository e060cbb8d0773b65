package internal

import (
	"testing"

	"github.com/zeebo/assert"
	"github.com/zeebo/pcg"
)

func TestSlotArray(t *testing.T) {
	t.Run("PutGet", func(t *testing.T) {
		// odd width forces cross-byte reads and writes
		for _, rbits := range []uint{1, 3, 5, 8, 13, 21, 32} {
			sa := newSlotArray(128, rbits)
			var rng pcg.T

			expected := make([]uint64, 128)
			for i := range expected {
				expected[i] = rng.Uint64() & sa.mask
				sa.put(uint64(i), expected[i])
			}

			for i, want := range expected {
				assert.Equal(t, sa.get(uint64(i)), want)
			}
		}
	})

	t.Run("NeighborsUntouched", func(t *testing.T) {
		sa := newSlotArray(64, 5)

		sa.put(10, sa.mask)
		sa.put(12, sa.mask)
		sa.put(11, 0)

		assert.Equal(t, sa.get(10), sa.mask)
		assert.Equal(t, sa.get(11), uint64(0))
		assert.Equal(t, sa.get(12), sa.mask)
	})

	t.Run("Metadata", func(t *testing.T) {
		sa := newSlotArray(16, 7)

		sa.setElement(3, 0x55, true, false)
		sa.setOccupied(3, true)

		assert.That(t, sa.occupied(3))
		assert.That(t, sa.runEnd(3))
		assert.That(t, !sa.shifted(3))
		assert.Equal(t, sa.remainder(3), uint64(0x55))

		// clearing the element keeps the occupied bit
		sa.clearElement(3)
		assert.That(t, sa.occupied(3))
		assert.That(t, !sa.runEnd(3))
		assert.Equal(t, sa.remainder(3), uint64(0))

		sa.setOccupied(3, false)
		assert.That(t, !sa.occupied(3))
	})

	t.Run("LastSlot", func(t *testing.T) {
		// writes at the tail of the buffer must not run past it
		sa := newSlotArray(33, 9)
		sa.put(32, sa.mask)
		assert.Equal(t, sa.get(32), sa.mask)
		sa.put(31, 0x123&sa.mask)
		assert.Equal(t, sa.get(32), sa.mask)
	})
}
