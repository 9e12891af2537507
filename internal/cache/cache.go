// Package cache provides a read-through TTL cache with request
// de-duplication, used for session summaries and settings/preferences.
package cache

import (
	"context"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/converse-ai/converse/internal/logging"
)

// Fetcher loads the value for a key on cache miss.
type Fetcher func(ctx context.Context) (any, error)

type entry struct {
	data      any
	timestamp time.Time
	ttl       time.Duration
}

func (e entry) fresh(now time.Time) bool {
	return now.Sub(e.timestamp) < e.ttl
}

// Cache is a read-through cache keyed by logical resource keys.
// Concurrent fetches for the same key are collapsed into one request via
// singleflight; the in-flight marker is cleared on settle either way.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	userID  string
	group   singleflight.Group
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]entry)}
}

// Get returns the cached value for key if its age is within ttl, otherwise
// invokes fetch (de-duplicated across concurrent callers) and stores the
// result with a fresh timestamp. Fetch failures are not cached.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, fetch Fetcher) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	owner := c.userID
	c.mu.RUnlock()

	if ok && e.fresh(time.Now()) {
		return e.data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// The owning user may have changed while the fetch was in
		// flight; discard the result rather than leak it across users.
		if c.userID == owner {
			c.entries[key] = entry{data: data, timestamp: time.Now(), ttl: ttl}
		}
		c.mu.Unlock()

		return data, nil
	})
	return v, err
}

// Peek returns the cached value without triggering a fetch.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !e.fresh(time.Now()) {
		return nil, false
	}
	return e.data, true
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePattern removes every key matching the regular expression.
func (c *Cache) InvalidatePattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
		}
	}
	return nil
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// SetUser records the owning user identity. A change of identity clears
// the cache entirely to prevent cross-user leakage of cached reads.
func (c *Cache) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID == userID {
		return
	}
	log := logging.Component("cache")
	log.Debug().
		Str("user", userID).
		Int("evicted", len(c.entries)).
		Msg("owner changed, clearing cache")
	c.userID = userID
	c.entries = make(map[string]entry)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Get is the typed read-through accessor. It wraps Cache.Get and asserts
// the stored value to T.
func Get[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Get(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return t, nil
}
