// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides a fetch-through LRU cache for immutable data.
package cache

import (
	"sync"

	"github.com/luxfi/geth/common/lru"
)

// LRUCache is a thread-safe fetch-through LRU cache. Values are
// immutable once fetched: a cache hit never re-runs the fetch.
type LRUCache[K comparable, V any] struct {
	cache *lru.Cache[K, V]
	lock  sync.RWMutex
}

func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	return &LRUCache[K, V]{
		cache: lru.NewCache[K, V](size),
	}
}

// Get returns the cached value for the key, fetching and caching it on
// a miss. Fetch failures are not cached, so a later Get retries.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error)) (V, error) {
	c.lock.RLock()
	if value, found := c.cache.Get(key); found {
		c.lock.RUnlock()
		return value, nil
	}
	c.lock.RUnlock()

	newValue, err := fetchFunc(key)
	if err != nil {
		var zero V
		return zero, err
	}

	c.lock.Lock()
	c.cache.Add(key, newValue)
	c.lock.Unlock()

	return newValue, nil
}
