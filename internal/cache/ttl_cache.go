package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded in-memory key/value store whose entries expire after a fixed ttl.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
	Len() int
}

type lruCache[K comparable, V any] struct {
	entries *expirable.LRU[K, V]
}

// NewTTLCache holds at most size entries, evicting the least recently used first.
// A non-positive ttl keeps entries until evicted.
func NewTTLCache[K comparable, V any](size int, ttl time.Duration) Cache[K, V] {
	if ttl < 0 {
		ttl = 0
	}
	return &lruCache[K, V]{entries: expirable.NewLRU[K, V](size, nil, ttl)}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) { return c.entries.Get(key) }

func (c *lruCache[K, V]) Set(key K, value V) { c.entries.Add(key, value) }

func (c *lruCache[K, V]) Delete(key K) { c.entries.Remove(key) }

func (c *lruCache[K, V]) Len() int { return c.entries.Len() }
