package auth

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTokenCacheTTL is how long a validated token is trusted before the
// identity service is consulted again (§4.7: "cache lookups for up to 60
// seconds by token").
const DefaultTokenCacheTTL = 60 * time.Second

// DefaultTokenCacheMaxEntries bounds memory usage in a multi-tenant
// deployment with many distinct callers.
const DefaultTokenCacheMaxEntries = 1000

type tokenCacheEntry struct {
	key       string
	user      *User
	expiresAt time.Time
}

// tokenCache is a thread-safe, size-bounded, TTL-expiring cache of
// validated tokens, adapted from the teacher's client_cache (container/list
// LRU + map + sync.Mutex, SHA-256-hashed keys so raw tokens are never
// held as map keys) — narrowed here to cache *User instead of a cluster
// client.
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lruList *list.List
	ttl     time.Duration
	maxSize int
}

func newTokenCache(ttl time.Duration, maxSize int) *tokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultTokenCacheMaxEntries
	}
	return &tokenCache{
		entries: make(map[string]*list.Element),
		lruList: list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// Get returns the cached User for token, or nil if absent/expired.
func (c *tokenCache) Get(token string) *User {
	key := hashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil
	}

	entry := elem.Value.(*tokenCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.removeElementLocked(elem)
		return nil
	}

	c.lruList.MoveToFront(elem)
	return entry.user
}

// Set caches user under token's hash, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *tokenCache) Set(token string, user *User) {
	key := hashToken(token)
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*tokenCacheEntry)
		entry.user = user
		entry.expiresAt = now.Add(c.ttl)
		c.lruList.MoveToFront(elem)
		return
	}

	for c.maxSize > 0 && c.lruList.Len() >= c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeElementLocked(oldest)
	}

	entry := &tokenCacheEntry{key: key, user: user, expiresAt: now.Add(c.ttl)}
	elem := c.lruList.PushFront(entry)
	c.entries[key] = elem
}

func (c *tokenCache) removeElementLocked(elem *list.Element) {
	entry := elem.Value.(*tokenCacheEntry)
	delete(c.entries, entry.key)
	c.lruList.Remove(elem)
}

// Size returns the current number of cached tokens.
func (c *tokenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
