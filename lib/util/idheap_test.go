package util

import (
	"math/rand"
	"sort"
	"testing"
)

// TestNewIDHeap tests the creation of a new IDHeap
func TestNewIDHeap(t *testing.T) {
	h := NewIDHeap()

	if h.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", h.Len())
	}
	if len(h.itemsMap) != 0 {
		t.Errorf("New heap's map should be empty, but has %d items", len(h.itemsMap))
	}
	if _, ok := h.TakeMin(); ok {
		t.Error("TakeMin on an empty heap should report false")
	}
	if _, ok := h.PeekMin(); ok {
		t.Error("PeekMin on an empty heap should report false")
	}
}

// TestAddAndTakeMin tests that identifiers come out smallest first
func TestAddAndTakeMin(t *testing.T) {
	h := NewIDHeap()
	h.Add(5)
	h.Add(1)
	h.Add(9)
	h.Add(3)

	if min, _ := h.PeekMin(); min != 1 {
		t.Errorf("Expected PeekMin to be 1, got %d", min)
	}

	expected := []int{1, 3, 5, 9}
	for _, want := range expected {
		got, ok := h.TakeMin()
		if !ok || got != want {
			t.Fatalf("Expected %d, got %d (ok=%v)", want, got, ok)
		}
	}
	if h.Len() != 0 {
		t.Errorf("Heap should be empty, has %d items", h.Len())
	}
}

// TestAddDuplicate tests that adding the same identifier twice keeps a single entry
func TestAddDuplicate(t *testing.T) {
	h := NewIDHeap()
	h.Add(4)
	h.Add(4)

	if h.Len() != 1 {
		t.Errorf("Expected 1 item, got %d", h.Len())
	}
}

// TestRemoveByKey tests removing identifiers by key
func TestRemoveByKey(t *testing.T) {
	h := NewIDHeap()
	for _, id := range []int{8, 2, 6, 4} {
		h.Add(id)
	}

	if !h.RemoveByKey(2) {
		t.Error("RemoveByKey(2) should report true")
	}
	if h.RemoveByKey(2) {
		t.Error("Second RemoveByKey(2) should report false")
	}
	if h.Contains(2) {
		t.Error("Heap should no longer contain 2")
	}
	if min, _ := h.PeekMin(); min != 4 {
		t.Errorf("Expected new minimum 4, got %d", min)
	}
}

// TestRandomOrder compares the heap against a sorted slice
func TestRandomOrder(t *testing.T) {
	h := NewIDHeap()
	seen := map[int]bool{}
	var ids []int
	for i := 0; i < 500; i++ {
		id := rand.Intn(10000)
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		h.Add(id)
	}
	sort.Ints(ids)

	for i, want := range ids {
		got, ok := h.TakeMin()
		if !ok || got != want {
			t.Fatalf("Position %d: expected %d, got %d", i, want, got)
		}
	}
}
