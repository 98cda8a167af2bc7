package cache

import (
	"container/list"
	"sync"
)

type fifoEntry[K comparable, V any] struct {
	key   K
	value V
}

// FIFO is a thread-safe fixed-capacity map with insertion-order eviction.
// When the cache reaches its capacity, the oldest-inserted item is evicted
// first. Unlike an LRU cache, Get does not refresh an entry's position, and
// updating an existing key keeps its original insertion slot.
type FIFO[K comparable, V comparable] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List
	mu       sync.Mutex
}

// NewFIFO creates a FIFO cache with the given capacity.
// The capacity must be positive, otherwise it panics.
func NewFIFO[K comparable, V comparable](capacity int) *FIFO[K, V] {
	if capacity <= 0 {
		panic("FIFO cache capacity must be positive")
	}
	return &FIFO[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value from the cache without affecting eviction order.
func (c *FIFO[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		return elem.Value.(*fifoEntry[K, V]).value, true
	}

	var zero V
	return zero, false
}

// Put adds a value to the cache. An existing key is updated in place and
// keeps its insertion position. When the insert pushes the cache over
// capacity, the oldest entry is evicted.
func (c *FIFO[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*fifoEntry[K, V]).value = value
		return
	}

	elem := c.order.PushBack(&fifoEntry[K, V]{key: key, value: value})
	c.items[key] = elem

	if c.order.Len() > c.capacity {
		if oldest := c.order.Front(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Remove removes an item by key. Returns true if it existed.
func (c *FIFO[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	return true
}

// RemoveValue removes every entry whose value equals v, scanning in
// insertion order. Returns the number of entries removed.
func (c *FIFO[K, V]) RemoveValue(v V) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*fifoEntry[K, V]).value == v {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

func (c *FIFO[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Must be called with lock held.
func (c *FIFO[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*fifoEntry[K, V]).key)
}
