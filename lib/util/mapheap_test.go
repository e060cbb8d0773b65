package util

import (
	"container/heap"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap()
	heap.Init(mh)

	// Schedule a few keys with different expiry times
	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	// Check the order (min heap, so the earliest expiry should be first)
	item, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if item.Key != 3 || item.Priority != 50 {
		t.Errorf("Expected min item to be (3,50), got (%d,%d)", item.Key, item.Priority)
	}
}

// TestUpdateItem tests updating an existing item's priority
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap()
	heap.Init(mh)

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)

	// Re-adding with the same key updates the expiry in place
	mh.AddItem(1, 300)

	item, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("Item with key 1 should exist")
	}
	if item.Priority != 300 {
		t.Errorf("Expected priority 300, got %d", item.Priority)
	}

	// Key 2 is now due first
	min, _ := mh.Peek()
	if min.Key != 2 {
		t.Errorf("Expected key 2 at the top, got %d", min.Key)
	}

	if mh.Len() != 2 {
		t.Errorf("Update must not grow the heap, length is %d", mh.Len())
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap()
	heap.Init(mh)

	mh.AddItem(1, 100)
	mh.AddItem(2, 200)
	mh.AddItem(3, 50)

	prio, ok := mh.RemoveByKey(3)
	if !ok || prio != 50 {
		t.Errorf("RemoveByKey(3) = (%d, %t), expected (50, true)", prio, ok)
	}

	if mh.Contains(3) {
		t.Error("Heap should no longer contain key 3")
	}

	if _, ok := mh.RemoveByKey(42); ok {
		t.Error("RemoveByKey of a missing key should report false")
	}

	// Remaining order is intact
	min, _ := mh.Peek()
	if min.Key != 1 {
		t.Errorf("Expected key 1 at the top, got %d", min.Key)
	}
}

// TestDrainInOrder pops all items and checks ascending priority order
func TestDrainInOrder(t *testing.T) {
	mh := NewMapHeap()
	heap.Init(mh)

	priorities := []uint64{42, 7, 99, 1, 63, 17}
	for i, p := range priorities {
		mh.AddItem(uint64(i), p)
	}

	var last uint64
	for mh.Len() > 0 {
		item := heap.Pop(mh).(*Item)
		if item.Priority < last {
			t.Errorf("Heap drained out of order: %d after %d", item.Priority, last)
		}
		last = item.Priority
	}
}
