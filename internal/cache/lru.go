// internal/cache/lru.go
//
// Tiny LRU cache backing the in-memory local store driver.  Keys are strings
// so callers can enumerate by prefix.  Not safe for concurrent use; wrap it
// in a mutex.
package cache

import (
	"container/list"
	"sort"
	"strings"
)

// LRU is a least-recently-used cache with string keys.
type LRU struct {
	cap  int
	ll   *list.List
	dict map[string]*list.Element

	// OnEvict, when set, is called for entries dropped to honour capacity.
	// Explicit Remove and Purge do not trigger it.
	OnEvict func(key string, val any)
}

type pair struct {
	key string
	val any
}

// New returns an LRU with the given capacity.  Panics on cap < 1.
func New(capacity int) *LRU {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[string]*list.Element, capacity),
	}
}

// Get retrieves a value and marks it MRU.
func (c *LRU) Get(key string) (val any, ok bool) {
	if ele, hit := c.dict[key]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(pair).val, true
	}
	return nil, false
}

// Peek retrieves a value without touching recency.
func (c *LRU) Peek(key string) (val any, ok bool) {
	if ele, hit := c.dict[key]; hit {
		return ele.Value.(pair).val, true
	}
	return nil, false
}

// Add inserts or updates a value.
func (c *LRU) Add(key string, val any) {
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair{key, val}
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(pair{key, val})
	c.dict[key] = ele
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		p := last.Value.(pair)
		delete(c.dict, p.key)
		if c.OnEvict != nil {
			c.OnEvict(p.key, p.val)
		}
	}
}

// Remove drops key.  It reports whether the key was present.
func (c *LRU) Remove(key string) bool {
	ele, hit := c.dict[key]
	if !hit {
		return false
	}
	c.ll.Remove(ele)
	delete(c.dict, key)
	return true
}

// Keys returns the keys starting with prefix, sorted.
func (c *LRU) Keys(prefix string) []string {
	var out []string
	for k := range c.dict {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Purge empties the cache.
func (c *LRU) Purge() {
	c.ll.Init()
	c.dict = make(map[string]*list.Element, c.cap)
}

// Len reports current size.
func (c *LRU) Len() int { return c.ll.Len() }
