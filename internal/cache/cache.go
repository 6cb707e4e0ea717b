// Package cache wraps an LRU with a clearable, concurrency safe handle.
package cache

import (
	"sync/atomic"

	cacheimpl "github.com/Code-Hex/go-generics-cache"
	"github.com/Code-Hex/go-generics-cache/policy/lru"
)

// DefaultCapacity is used when a caller passes a non-positive capacity.
const DefaultCapacity = 128

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, val V)
	Delete(key K)
	Capacity() int
	Clear()
}

type cache[K comparable, V any] struct {
	cache    atomic.Pointer[cacheimpl.Cache[K, V]]
	capacity int
}

func New[K comparable, V any](capacity int) Cache[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &cache[K, V]{capacity: capacity}
	// the underlying cache has no clear, so Clear swaps in a fresh one
	c.Clear()
	return c
}

func (c *cache[K, V]) Get(key K) (V, bool) {
	return c.cache.Load().Get(key)
}

func (c *cache[K, V]) Set(key K, val V) {
	c.cache.Load().Set(key, val)
}

func (c *cache[K, V]) Delete(key K) {
	c.cache.Load().Delete(key)
}

func (c *cache[K, V]) Clear() {
	c.cache.Store(cacheimpl.New[K, V](cacheimpl.AsLRU[K, V](
		lru.WithCapacity(c.capacity),
	)))
}

func (c *cache[K, V]) Capacity() int {
	return c.capacity
}
