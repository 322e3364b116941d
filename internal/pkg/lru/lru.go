// Package lru is a small generic LRU map with an optional idle TTL. It is not
// safe for concurrent use; callers hold their own lock.
package lru

import (
	"container/list"
	"time"
)

type entry[K comparable, V any] struct {
	key      K
	value    V
	lastSeen time.Time
}

type Cache[K comparable, V any] struct {
	max     int
	ttl     time.Duration
	now     func() time.Time
	ll      *list.List
	items   map[K]*list.Element
	onEvict func(K, V)
}

type Option[K comparable, V any] func(*Cache[K, V])

// WithTTL expires entries that have not been touched for ttl. Zero disables.
func WithTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *Cache[K, V]) { c.ttl = ttl }
}

// WithClock overrides time.Now; used by tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		if now != nil {
			c.now = now
		}
	}
}

// WithEvict registers a callback run for every capacity or TTL eviction.
// Explicit Remove does not call it.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// New returns a cache holding at most max entries. max <= 0 means unbounded.
func New[K comparable, V any](max int, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		max:   max,
		now:   time.Now,
		ll:    list.New(),
		items: make(map[K]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	now := c.now()
	if c.expired(e, now) {
		c.evict(el)
		return zero, false
	}
	e.lastSeen = now
	c.ll.MoveToFront(el)
	return e.value, true
}

// Add inserts or replaces key and evicts the least recently used entries
// beyond capacity.
func (c *Cache[K, V]) Add(key K, value V) {
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.lastSeen = now
		c.ll.MoveToFront(el)
		return
	}
	c.items[key] = c.ll.PushFront(&entry[K, V]{key: key, value: value, lastSeen: now})
	c.prune(now)
}

func (c *Cache[K, V]) Remove(key K) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.ll.Remove(el)
	delete(c.items, key)
	return true
}

func (c *Cache[K, V]) Len() int { return c.ll.Len() }

func (c *Cache[K, V]) prune(now time.Time) {
	for c.max > 0 && c.ll.Len() > c.max {
		c.evict(c.ll.Back())
	}
	if c.ttl <= 0 {
		return
	}
	for el := c.ll.Back(); el != nil; {
		e := el.Value.(*entry[K, V])
		if !c.expired(e, now) {
			break
		}
		prev := el.Prev()
		c.evict(el)
		el = prev
	}
}

func (c *Cache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.lastSeen) > c.ttl
}

func (c *Cache[K, V]) evict(el *list.Element) {
	e := el.Value.(*entry[K, V])
	c.ll.Remove(el)
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
