// internal/symbol/cache.go
package symbol

import "github.com/golang/groupcache/lru"

// DefaultCacheSize bounds the number of demangled symbols kept by a Cache.
const DefaultCacheSize = 4096

// Cache memoises demangled symbols for the lifetime of one alignment run.
// It is not safe for concurrent use.
type Cache struct {
	d   Demangler
	lru *lru.Cache
}

// NewCache returns a Cache decoding with d and holding at most size
// entries. A non-positive size selects DefaultCacheSize.
func NewCache(d Demangler, size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{d: d, lru: lru.New(size)}
}

// Demangle returns the cached display form of s, decoding it on a miss.
// Failed decodes are not cached.
func (c *Cache) Demangle(s string) (string, error) {
	if v, ok := c.lru.Get(s); ok {
		return v.(string), nil
	}
	out, err := c.d.Demangle(s)
	if err != nil {
		return "", err
	}
	c.lru.Add(s, out)
	return out, nil
}

// Len reports the number of cached symbols.
func (c *Cache) Len() int {
	return c.lru.Len()
}
