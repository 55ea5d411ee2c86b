package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemorySize = 100_000
	defaultMaxTTL     = 24 * time.Hour
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// memoryCache is a bounded LRU. Each entry carries its own deadline; the LRU
// TTL only sweeps entries nobody reads anymore.
type memoryCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

func NewMemoryCache(size int, maxTTL time.Duration) KeyValueCache {
	return newMemoryCache(size, maxTTL, time.Now)
}

func newMemoryCache(size int, maxTTL time.Duration, now func() time.Time) *memoryCache {
	if size <= 0 {
		size = defaultMemorySize
	}
	if maxTTL <= 0 {
		maxTTL = defaultMaxTTL
	}
	return &memoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.load(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	c.lru.Add(key, memoryEntry{value: stored, expiresAt: c.deadline(ttl)})
	return nil
}

func (c *memoryCache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var count int64
	if entry, ok := c.load(key); ok {
		parsed, err := strconv.ParseInt(string(entry.value), 10, 64)
		if err == nil {
			count = parsed
		}
	}
	count++

	c.lru.Add(key, memoryEntry{value: []byte(strconv.FormatInt(count, 10)), expiresAt: c.deadline(ttl)})
	return count, nil
}

func (c *memoryCache) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.load(key); ok {
		return false, nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	c.lru.Add(key, memoryEntry{value: stored, expiresAt: c.deadline(ttl)})
	return true, nil
}

func (c *memoryCache) Ping(context.Context) error { return nil }

func (c *memoryCache) Close() error {
	c.lru.Purge()
	return nil
}

func (c *memoryCache) load(key string) (memoryEntry, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *memoryCache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}
