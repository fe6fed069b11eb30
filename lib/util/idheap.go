// Package util
//
// This file provides a min-heap of integer identifiers combined with a hash map.
// The registry keeps freed socket identifiers in it so that the smallest freed
// identifier is handed out again first.
//
//   - O(log n) for Push, Pop and RemoveByKey
//   - O(1) for Contains
//
// The heap is not thread-safe, callers synchronize externally.
//
// Example usage:
//
//	free := NewIDHeap()
//	free.Add(7)
//	free.Add(3)
//	id, ok := free.TakeMin() // 3, true
package util

import (
	"container/heap"
	"strconv"
)

// idItem is one identifier in the heap together with its heap index
type idItem struct {
	ID    int
	index int // Index in the heap, maintained by the heap package
}

func (i *idItem) String() string {
	return "{ID: " + strconv.Itoa(i.ID) + "}"
}

// IDHeap is a min-heap of distinct identifiers with key-based access
type IDHeap struct {
	items    []*idItem
	itemsMap map[int]*idItem
}

// NewIDHeap creates a new, empty identifier heap
func NewIDHeap() *IDHeap {
	return &IDHeap{
		items:    make([]*idItem, 0),
		itemsMap: make(map[int]*idItem),
	}
}

// Len returns the number of identifiers in the heap (part of heap.Interface)
func (h *IDHeap) Len() int { return len(h.items) }

// Less orders identifiers ascending (part of heap.Interface)
func (h *IDHeap) Less(i, j int) bool {
	return h.items[i].ID < h.items[j].ID
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (h *IDHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface, use Add instead)
func (h *IDHeap) Push(x interface{}) {
	it := x.(*idItem)
	it.index = len(h.items)
	h.items = append(h.items, it)
	h.itemsMap[it.ID] = it
}

// Pop removes and returns the last item (part of heap.Interface, use TakeMin instead)
func (h *IDHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	h.items = old[:n-1]
	delete(h.itemsMap, it.ID)
	return it
}

// Add inserts an identifier. Adding an identifier twice is a no-op.
func (h *IDHeap) Add(id int) {
	if _, exists := h.itemsMap[id]; exists {
		return
	}
	heap.Push(h, &idItem{ID: id})
}

// TakeMin removes and returns the smallest identifier
func (h *IDHeap) TakeMin() (int, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return heap.Pop(h).(*idItem).ID, true
}

// PeekMin returns the smallest identifier without removing it
func (h *IDHeap) PeekMin() (int, bool) {
	if len(h.items) == 0 {
		return 0, false
	}
	return h.items[0].ID, true
}

// RemoveByKey removes a specific identifier, reporting whether it was present
func (h *IDHeap) RemoveByKey(id int) bool {
	it, exists := h.itemsMap[id]
	if !exists {
		return false
	}
	heap.Remove(h, it.index)
	return true
}

// Contains checks if an identifier is in the heap
func (h *IDHeap) Contains(id int) bool {
	_, exists := h.itemsMap[id]
	return exists
}
