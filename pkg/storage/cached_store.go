package storage

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore fronts a KV with a bounded in-memory LRU of recently read or written values.
// Absent keys are not cached.
type CachedStore struct {
	next  KV
	cache *lru.Cache[string, string]

	// mu orders writes against the LRU. writes counts them so a read-miss fill that
	// raced a write is dropped instead of caching the older value.
	mu     sync.Mutex
	writes uint64
}

// NewCachedStore wraps next with an LRU of the given size.
func NewCachedStore(next KV, size int) (*CachedStore, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &CachedStore{next: next, cache: c}, nil
}

func (c *CachedStore) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return v, true, nil
	}
	seen := c.writes
	c.mu.Unlock()

	v, ok, err := c.next.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}

	c.mu.Lock()
	if c.writes == seen {
		c.cache.Add(key, v)
	}
	c.mu.Unlock()
	return v, true, nil
}

func (c *CachedStore) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if err := c.next.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, value)
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.cache.Remove(key)
	return c.next.Delete(ctx, key)
}

func (c *CachedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.next.Keys(ctx, prefix)
}

// Len reports how many values are held in memory.
func (c *CachedStore) Len() int { return c.cache.Len() }

func (c *CachedStore) Close() error {
	c.cache.Purge()
	return c.next.Close()
}
