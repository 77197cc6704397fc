/*
Copyright 2024 MarketLens Inc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

This work is derived from github.com/golang/groupcache/lru
*/

package quotegate

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mailgun/holster/v4/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// TTLCache is an in-memory cache with per-entry expiry and an optional LRU
// size bound. Expired entries are evicted lazily when a read discovers them.
type TTLCache[T any] struct {
	mu        sync.Mutex
	cache     map[string]*list.Element
	ll        *list.List
	cacheSize int
	cacheLen  int64
}

// Prometheus metrics collector for TTLCache instances.
type CacheCollector struct {
	caches []interface{ Size() int64 }
}

var _ Cache[any] = &TTLCache[any]{}
var _ prometheus.Collector = &CacheCollector{}

var cacheSizeMetric = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "quotegate_cache_size",
	Help: "The number of entries held by TTL caches.",
})
var cacheAccessMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "quotegate_cache_access_count",
	Help: "Cache access counts.  Label \"type\" = hit|miss.",
}, []string{"type"})

// NewTTLCache creates a new TTLCache. A maxSize of zero means unbounded;
// otherwise the least recently used entry is evicted once the cache grows
// past maxSize.
func NewTTLCache[T any](maxSize int) *TTLCache[T] {
	return &TTLCache[T]{
		cache:     make(map[string]*list.Element),
		ll:        list.New(),
		cacheSize: maxSize,
	}
}

// Return unix epoch in milliseconds
func MillisecondNow() int64 {
	return clock.Now().UnixNano() / 1000000
}

// Set creates or overwrites the entry under `key`. The entry expires `ttl`
// from now; the expiry is fixed at write time and later reads cannot
// change it.
func (c *TTLCache[T]) Set(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := MillisecondNow()
	item := CacheItem[T]{
		Key:      key,
		Value:    value,
		StoredAt: now,
		ExpireAt: now + ttl.Milliseconds(),
	}

	// If the key already exists, set the new value
	if ee, ok := c.cache[key]; ok {
		c.ll.MoveToFront(ee)
		ee.Value = item
		return
	}

	ele := c.ll.PushFront(item)
	c.cache[key] = ele
	if c.cacheSize != 0 && c.ll.Len() > c.cacheSize {
		c.removeOldest()
	}
	atomic.StoreInt64(&c.cacheLen, int64(c.ll.Len()))
}

// Get returns the value stored under `key` and true on a hit. If the entry
// has expired it is removed from the cache and Get reports a miss.
func (c *TTLCache[T]) Get(key string) (value T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.cache[key]; hit {
		entry := ele.Value.(CacheItem[T])

		// If the entry has expired, remove it from the cache
		if entry.ExpireAt <= MillisecondNow() {
			c.removeElement(ele)
			cacheAccessMetric.WithLabelValues("miss").Add(1)
			return
		}

		cacheAccessMetric.WithLabelValues("hit").Add(1)
		c.ll.MoveToFront(ele)
		return entry.Value, true
	}

	cacheAccessMetric.WithLabelValues("miss").Add(1)
	return
}

// Invalidate removes the entry under `key` from the cache; it is a no-op
// when the key is absent.
func (c *TTLCache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.cache[key]; hit {
		c.removeElement(ele)
	}
}

// Clear removes all entries from the cache.
func (c *TTLCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*list.Element)
	c.ll = list.New()
	atomic.StoreInt64(&c.cacheLen, 0)
}

// removeOldest removes the least recently used entry from the cache.
func (c *TTLCache[T]) removeOldest() {
	ele := c.ll.Back()
	if ele != nil {
		c.removeElement(ele)
	}
}

func (c *TTLCache[T]) removeElement(e *list.Element) {
	c.ll.Remove(e)
	kv := e.Value.(CacheItem[T])
	delete(c.cache, kv.Key)
	atomic.StoreInt64(&c.cacheLen, int64(c.ll.Len()))
}

// Size returns the number of entries in the cache, including entries that
// have expired but have not yet been read.
func (c *TTLCache[T]) Size() int64 {
	return atomic.LoadInt64(&c.cacheLen)
}

func NewCacheCollector() *CacheCollector {
	return &CacheCollector{}
}

// AddCache adds a cache to be tracked by the collector.
func (collector *CacheCollector) AddCache(cache interface{ Size() int64 }) {
	collector.caches = append(collector.caches, cache)
}

// Describe fetches prometheus metrics to be registered
func (collector *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	cacheSizeMetric.Describe(ch)
	cacheAccessMetric.Describe(ch)
}

// Collect fetches metric counts and gauges from the cache
func (collector *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	cacheSizeMetric.Set(collector.getSize())
	cacheSizeMetric.Collect(ch)
	cacheAccessMetric.Collect(ch)
}

func (collector *CacheCollector) getSize() float64 {
	var size float64

	for _, cache := range collector.caches {
		size += float64(cache.Size())
	}

	return size
}
