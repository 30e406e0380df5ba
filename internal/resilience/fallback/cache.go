// Package fallback implements the cache-first, handler-second, rule-chain-
// third resolution order consulted when the breaker refuses admission.
package fallback

import (
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"
)

// CacheEntry is one cached fallback value.
type CacheEntry struct {
	Value     interface{}
	CreatedTs time.Time
	TTL       time.Duration
}

func (e *CacheEntry) IsExpired() bool {
	return time.Since(e.CreatedTs) > e.TTL
}

// Key returns a stable key for (method, payload), using a structural hash
// rather than the source's hash(str(request)), which is not portable across
// runs or languages.
func Key(method string, payload interface{}) (string, error) {
	h, err := hashstructure.Hash(payload, hashstructure.FormatV2, nil)
	if err != nil {
		return "", err
	}
	return methodPrefix(method) + uintToString(h), nil
}

func methodPrefix(method string) string { return method + ":" }

func uintToString(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// entryNode is one node of the creation-time LRU list.
type entryNode struct {
	key   string
	entry *CacheEntry
}

// Cache is a TTL cache evicted by creation-time LRU at max_size; expiration
// is lazy on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entryNode
	order   []*entryNode
	maxSize int
}

func NewCache(maxSize int) *Cache {
	return &Cache{
		entries: make(map[string]*entryNode),
		maxSize: maxSize,
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if node.entry.IsExpired() {
		return nil, false
	}
	return node.entry.Value, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.entries[key]; ok {
		node.entry = &CacheEntry{Value: value, CreatedTs: time.Now(), TTL: ttl}
		return
	}

	node := &entryNode{key: key, entry: &CacheEntry{Value: value, CreatedTs: time.Now(), TTL: ttl}}
	c.entries[key] = node
	c.order = append(c.order, node)

	if c.maxSize > 0 && len(c.order) > c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest.key)
	}
}
