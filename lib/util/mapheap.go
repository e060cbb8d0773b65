// Package util
//
// This file provides a specialized priority queue for expiry scheduling.
//
// The implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. The TTL store
// uses it to find the next entry due for deletion while still supporting
// direct removal when an entry is deleted or overwritten early.
//
// Key properties:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Concurrency:
//   - Not thread-safe by default; callers apply external synchronization
//     (the TTL store holds its own mutex around all heap access).
//
// Example usage:
//
//	q := NewMapHeap()
//
//	// Schedule two keys by expiry timestamp
//	q.AddItem(1001, expiry1)
//	q.AddItem(1002, expiry2)
//
//	// Inspect the entry due next
//	next, exists := q.Peek()
//
//	// Remove a specific entry (e.g. when the key was deleted early)
//	q.RemoveByKey(1001)
package util

import (
	"container/heap"
	"strconv"
)

// Item represents a scheduled entry with a uint64 key for identification
// and a uint64 priority (typically a timestamp).
type Item struct {
	Key      uint64 // Unique identifier for the item
	Priority uint64 // Priority used for ordering in the heap
	index    int    // Index in the heap, maintained by heap package
}

func (i *Item) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap implements a priority queue with both heap operations and
// key-based access.
type MapHeap struct {
	items    []*Item          // The actual heap slice
	itemsMap map[uint64]*Item // Map for O(1) access by key
}

// NewMapHeap creates a new keyed priority queue
func NewMapHeap() *MapHeap {
	return &MapHeap{
		items:    make([]*Item, 0),
		itemsMap: make(map[uint64]*Item),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
// Entries due earliest come first (min-heap by timestamp)
func (mh *MapHeap) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap) Push(x interface{}) {
	n := len(mh.items)
	item := x.(*Item)
	item.index = n
	mh.items = append(mh.items, item)
	mh.itemsMap[item.Key] = item
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap) Pop() interface{} {
	old := mh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, item.Key)
	return item
}

// AddItem adds a new item to the queue or updates an existing one
func (mh *MapHeap) AddItem(key, priority uint64) {
	// Check if item already exists
	if item, exists := mh.itemsMap[key]; exists {
		// Update priority and fix heap
		item.Priority = priority
		heap.Fix(mh, item.index)
		return
	}

	// Create and add new item
	item := &Item{
		Key:      key,
		Priority: priority,
	}
	heap.Push(mh, item)
}

// RemoveByKey removes an item by its key
func (mh *MapHeap) RemoveByKey(key uint64) (uint64, bool) {
	item, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(mh, item.index)
	return item.Priority, true
}

// Peek returns the minimum priority item without removing it
func (mh *MapHeap) Peek() (*Item, bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap) GetByKey(key uint64) (*Item, bool) {
	item, exists := mh.itemsMap[key]
	return item, exists
}
