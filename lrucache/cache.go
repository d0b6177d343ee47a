/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"container/list"
	"fmt"
	"sync"
)

type cacheEntry[K comparable, V any] struct {
	key   K
	value V
}

// EvictFunc is called when an entry is pushed out of the cache because the cache is full.
// It's called while the cache lock is held, so it must not call the cache methods.
type EvictFunc[K comparable, V any] func(key K, value V)

// Options represents options for the cache.
type Options[K comparable, V any] struct {
	// OnEvict is called for every entry evicted because of exceeding the max entries number.
	// Entries removed explicitly (Remove, RemoveIf, RemoveFunc, Purge) are not reported.
	OnEvict EvictFunc[K, V]
}

// LRUCache represents an LRU cache with eviction mechanism and Prometheus metrics.
type LRUCache[K comparable, V any] struct {
	maxEntries int
	onEvict    EvictFunc[K, V]

	mu      sync.Mutex
	lruList *list.List
	cache   map[K]*list.Element

	metricsCollector MetricsCollector
}

// New creates a new LRUCache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*LRUCache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options[K, V]{})
}

// NewWithOpts creates a new LRUCache with the provided maximum number of entries, metrics collector, and options.
// Metrics collector may be nil, in this case, metrics will be disabled.
func NewWithOpts[K comparable, V any](maxEntries int, metricsCollector MetricsCollector, opts Options[K, V]) (*LRUCache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	return &LRUCache[K, V]{
		maxEntries:       maxEntries,
		onEvict:          opts.OnEvict,
		lruList:          list.New(),
		cache:            make(map[K]*list.Element),
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns a value from the cache by the provided key.
func (c *LRUCache[K, V]) Get(key K) (value V, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, hit := c.cache[key]
	if !hit {
		c.metricsCollector.IncMisses()
		return value, false
	}
	c.lruList.MoveToFront(elem)
	c.metricsCollector.IncHits()
	return elem.Value.(*cacheEntry[K, V]).value, true
}

// Add adds a value to the cache with the provided key.
// If the cache is full, the least recently used entry will be removed.
func (c *LRUCache[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lruList.MoveToFront(elem)
		elem.Value.(*cacheEntry[K, V]).value = value
		return
	}
	c.addNew(key, value)
}

// GetOrAdd returns a value from the cache by the provided key.
// If the key does not exist, the value returned by valueProvider is added to the cache.
// valueProvider is called under the cache lock.
func (c *LRUCache[K, V]) GetOrAdd(key K, valueProvider func() V) (value V, exists bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, hit := c.cache[key]; hit {
		c.lruList.MoveToFront(elem)
		c.metricsCollector.IncHits()
		return elem.Value.(*cacheEntry[K, V]).value, true
	}
	c.metricsCollector.IncMisses()
	value = valueProvider()
	c.addNew(key, value)
	return value, false
}

// Remove removes a value from the cache by the provided key.
func (c *LRUCache[K, V]) Remove(key K) bool {
	return c.RemoveIf(key, nil)
}

// RemoveIf removes the entry with the provided key if pred returns true for its value (or pred is nil).
// pred is called under the cache lock.
func (c *LRUCache[K, V]) RemoveIf(key K, pred func(value V) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.cache[key]
	if !ok {
		return false
	}
	if pred != nil && !pred(elem.Value.(*cacheEntry[K, V]).value) {
		return false
	}
	c.removeElement(elem)
	c.metricsCollector.SetAmount(len(c.cache))
	return true
}

// RemoveFunc removes all entries for which pred returns true and returns the number of removed entries.
// pred is called under the cache lock.
func (c *LRUCache[K, V]) RemoveFunc(pred func(key K, value V) bool) (removed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lruList.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*cacheEntry[K, V])
		if pred(entry.key, entry.value) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	if removed > 0 {
		c.metricsCollector.SetAmount(len(c.cache))
	}
	return removed
}

// Purge clears the cache.
// All removed entries are not counted as evictions.
func (c *LRUCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metricsCollector.SetAmount(0)
	c.cache = make(map[K]*list.Element)
	c.lruList.Init()
}

// Len returns the number of items in the cache.
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *LRUCache[K, V]) addNew(key K, value V) {
	c.cache[key] = c.lruList.PushFront(&cacheEntry[K, V]{key: key, value: value})
	if len(c.cache) <= c.maxEntries {
		c.metricsCollector.SetAmount(len(c.cache))
		return
	}
	elem := c.lruList.Back()
	entry := elem.Value.(*cacheEntry[K, V])
	c.removeElement(elem)
	c.metricsCollector.AddEvictions(1)
	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}

func (c *LRUCache[K, V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.cache, elem.Value.(*cacheEntry[K, V]).key)
}
