package bus

import (
	"container/list"
	"sync"
)

// DefaultDedupeCapacity matches the inbound consumer's bound on remembered ids.
const DefaultDedupeCapacity = 1000

// DedupeCache is a bounded, insertion-ordered set of ids.
// When a new id pushes the size past capacity the oldest id is evicted (FIFO).
// Safe for concurrent use.
type DedupeCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List               // front = oldest
	index    map[string]*list.Element // id -> element in order
}

// NewDedupeCache creates a cache holding at most capacity ids.
// capacity <= 0 falls back to DefaultDedupeCapacity.
func NewDedupeCache(capacity int) *DedupeCache {
	if capacity <= 0 {
		capacity = DefaultDedupeCapacity
	}
	return &DedupeCache{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

// Seen reports whether id is currently remembered.
func (d *DedupeCache) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.index[id]
	return ok
}

// Record remembers id, evicting the oldest entry on overflow.
// Recording an id that is already present is a no-op.
func (d *DedupeCache) Record(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recordLocked(id)
}

// CheckAndRecord atomically reports whether id was already seen and records it
// if it was not. Returns true for a duplicate.
func (d *DedupeCache) CheckAndRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.index[id]; ok {
		return true
	}
	d.recordLocked(id)
	return false
}

// Len returns the number of remembered ids.
func (d *DedupeCache) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.index)
}

func (d *DedupeCache) recordLocked(id string) {
	if _, ok := d.index[id]; ok {
		return
	}
	d.index[id] = d.order.PushBack(id)
	for len(d.index) > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.index, oldest.Value.(string))
	}
}
