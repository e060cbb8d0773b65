package maplet

// --------------------------------------------------------------------------
// Value Table
// --------------------------------------------------------------------------

// valueSlot is an optional value.
type valueSlot[V any] struct {
	v  V
	ok bool
}

// valueTable is the slot-aligned array of optional values next to the
// filter. It implements internal.ValueStore so the filter can report slot
// movements during shifting and compaction. Both structures are only
// touched under the engine's writer lock for mutations.
type valueTable[V any] struct {
	slots []valueSlot[V]
}

func newValueTable[V any](capacity uint64) *valueTable[V] {
	return &valueTable[V]{slots: make([]valueSlot[V], capacity)}
}

// get returns the value at a slot and whether one is present
func (vt *valueTable[V]) get(i uint64) (V, bool) {
	s := vt.slots[i]
	return s.v, s.ok
}

// set stores a value at a slot
func (vt *valueTable[V]) set(i uint64, v V) {
	vt.slots[i] = valueSlot[V]{v: v, ok: true}
}

// Move copies the value from slot from to slot to (internal.ValueStore).
func (vt *valueTable[V]) Move(from, to uint64) {
	vt.slots[to] = vt.slots[from]
}

// Clear empties a value slot (internal.ValueStore).
func (vt *valueTable[V]) Clear(i uint64) {
	vt.slots[i] = valueSlot[V]{}
}
