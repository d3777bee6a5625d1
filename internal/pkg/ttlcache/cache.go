package ttlcache

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a size bounded LRU whose entries also expire after a fixed TTL.
// Safe for concurrent use.
type Cache[V any] struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func New[V any](maxEntries int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	return &Cache[V]{
		lru: lru.New(maxEntries),
		ttl: ttl,
		now: o.now,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	v, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}

	e := v.(*entry[V])
	if !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return zero, false
	}

	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Clear()
}
