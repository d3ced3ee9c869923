package data

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// ResponseCache is a TTL cache for upstream responses. Each provider owns its
// own instance; there is no shared global cache.
// A zero TTL means entries never expire.
type ResponseCache[T any] struct {
	mu    sync.RWMutex
	store map[string]cacheEntry[T]
	ttl   time.Duration
	now   func() time.Time
}

func NewResponseCache[T any](ttl time.Duration) *ResponseCache[T] {
	return &ResponseCache[T]{
		store: make(map[string]cacheEntry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a cached value if available and not expired.
func (c *ResponseCache[T]) Get(key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[key]
	if !ok {
		return zero, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		return zero, false
	}
	return entry.value, true
}

func (c *ResponseCache[T]) Set(key string, value T) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.store[key] = cacheEntry[T]{value: value, expiresAt: exp}
}

// Prune drops expired entries and returns how many were removed.
func (c *ResponseCache[T]) Prune() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.store {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.store, k)
			n++
		}
	}
	return n
}

func (c *ResponseCache[T]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// CacheKey builds a deterministic key from request parameters.
// Times are formatted as RFC 3339 in UTC.
func CacheKey(parts ...any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		switch v := p.(type) {
		case time.Time:
			strs[i] = v.UTC().Format(time.RFC3339)
		default:
			strs[i] = fmt.Sprintf("%v", v)
		}
	}
	// Hash the key to keep it reasonably sized
	hash := sha256.Sum256([]byte(strings.Join(strs, ":")))
	return hex.EncodeToString(hash[:])
}
