// Package hourcache memoizes fetched results until the next top-of-hour
// boundary. It is a load shedding layer for the upstream service, never a
// source of correctness: concurrent writers may race on a slot and the
// last one wins, which is fine because every writer computes equivalent
// data for the same key.
package hourcache

import (
	"sync"
	"time"

	"fcrank-backend/lib/timezone"
)

type entry[T any] struct {
	value     T
	createdAt time.Time
}

type Cache[T any] struct {
	entries sync.Map
	// test seam, defaults to timezone.Now
	now func() time.Time
}

func New[T any]() *Cache[T] {
	return &Cache[T]{now: timezone.Now}
}

// NewAt constructs a cache with a custom clock.
func NewAt[T any](now func() time.Time) *Cache[T] {
	return &Cache[T]{now: now}
}

// Get returns the value stored under key if it was written within the
// current hour. Entries from a previous hour are evicted on read rather
// than swept eagerly; an entry written at :59 therefore dies at the next
// boundary while one written at :01 lives almost the full hour.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	raw, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}
	e := raw.(entry[T])
	if !c.now().Before(timezone.NextHour(e.createdAt)) {
		c.entries.Delete(key)
		return zero, false
	}
	return e.value, true
}

func (c *Cache[T]) Put(key string, value T) {
	c.entries.Store(key, entry[T]{value: value, createdAt: c.now()})
}

// Clear drops every entry regardless of age. The orchestrator fires this
// at each top-of-hour so the map cannot grow without bound.
func (c *Cache[T]) Clear() {
	c.entries.Range(func(key, _ any) bool {
		c.entries.Delete(key)
		return true
	})
}

// Len reports the number of stored entries, expired ones included.
func (c *Cache[T]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
