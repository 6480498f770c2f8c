package bf

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultCacheSize is the max number of sources a Cache remembers.
const DefaultCacheSize = 256

type cacheEntry struct {
	code string
	err  error
}

// Cache memoizes another Transpiler by source text. Failures are cached too,
// since the pipeline is a pure function of its input.
type Cache struct {
	next Transpiler

	mu  sync.Mutex
	lru *lru.Cache
}

var _ Transpiler = (*Cache)(nil)

func NewCache(next Transpiler, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		next: next,
		lru:  lru.New(size),
	}
}

func (c *Cache) lookup(source string) (cacheEntry, bool) {
	c.mu.Lock()
	v, ok := c.lru.Get(source)
	c.mu.Unlock()
	if !ok {
		return cacheEntry{}, false
	}
	return v.(cacheEntry), true
}

func (c *Cache) Transpile(source string) (string, error) {
	if e, ok := c.lookup(source); ok {
		return e.code, e.err
	}
	code, err := c.next.Transpile(source)
	c.mu.Lock()
	c.lru.Add(source, cacheEntry{code: code, err: err})
	c.mu.Unlock()
	return code, err
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
