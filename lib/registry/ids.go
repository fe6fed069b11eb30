package registry

import (
	"sync"

	"github.com/ValentinKolb/netstack/lib/util"
)

// idAllocator hands out identifiers >= 1, reusing the smallest freed one first
type idAllocator struct {
	mu   sync.Mutex
	next int
	free *util.IDHeap
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1, free: util.NewIDHeap()}
}

// take returns an identifier that is not in use
func (a *idAllocator) take() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.free.TakeMin(); ok {
		return id
	}
	id := a.next
	a.next++
	return id
}

// release returns an identifier for reuse
func (a *idAllocator) release(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id <= 0 || id >= a.next {
		return
	}
	// the highest identifier goes back to the counter so the free list stays short
	if id == a.next-1 {
		a.next--
		for {
			top := a.next - 1
			if top < 1 || !a.free.RemoveByKey(top) {
				break
			}
			a.next--
		}
		return
	}
	a.free.Add(id)
}
