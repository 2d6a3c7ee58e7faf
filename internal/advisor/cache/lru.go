package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type lruEntry[V any] struct {
	key     string
	value   V
	expires time.Time
	element *list.Element
}

// LRU is a size-bounded map with per-entry expiry. All methods are safe for
// concurrent use; the lock is held only for map and list updates.
type LRU[V any] struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	items      map[string]*lruEntry[V]
	order      *list.List
	now        func() time.Time
}

// NewLRU creates an LRU with the given capacity. defaultTTL applies when Set
// is called with ttl <= 0; zero means entries never expire.
func NewLRU[V any](capacity int, defaultTTL time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 512
	}
	return &LRU[V]{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		items:      make(map[string]*lruEntry[V], capacity),
		order:      list.New(),
		now:        time.Now,
	}
}

func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !ent.expires.IsZero() && !c.now().Before(ent.expires) {
		c.removeEntry(ent)
		return zero, false
	}
	c.order.MoveToFront(ent.element)
	return ent.value, true
}

func (c *LRU[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.expiry(ttl)
	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(ent.element)
		return
	}

	for len(c.items) >= c.capacity {
		c.evictOldest()
	}

	ent := &lruEntry[V]{key: key, value: value, expires: expires}
	ent.element = c.order.PushFront(ent)
	c.items[key] = ent
}

func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if ok {
		c.removeEntry(ent)
	}
	return ok
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (c *LRU[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, ent := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(ent)
			n++
		}
	}
	return n
}

func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[V]) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *LRU[V]) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	c.removeEntry(elem.Value.(*lruEntry[V]))
}

func (c *LRU[V]) removeEntry(ent *lruEntry[V]) {
	c.order.Remove(ent.element)
	delete(c.items, ent.key)
}
