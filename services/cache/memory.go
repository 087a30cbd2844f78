package cache

import (
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrCacheMiss is returned when a key is absent or its entry has expired
var ErrCacheMiss = errors.New("cache miss")

// memoryEntry carries the per-key deadline; the LRU's own TTL only bounds
// how long dead entries can linger before eviction.
type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryService implements CacheService with a size-bounded in-memory LRU.
// It is the default backend when no memcache address is configured.
type MemoryService struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryService creates a new in-memory cache holding at most size entries
func NewMemoryService(size int) *MemoryService {
	if size <= 0 {
		size = 4096
	}
	return &MemoryService{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, 24*time.Hour),
	}
}

// Get retrieves a value, honoring the per-key expiration
func (m *MemoryService) Get(key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value with an expiration time; zero means no per-key deadline
func (m *MemoryService) Set(key string, value []byte, expiration time.Duration) error {
	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expires = time.Now().Add(expiration)
	}
	m.lru.Add(key, entry)
	return nil
}

// Delete removes a value from the cache
func (m *MemoryService) Delete(key string) error {
	m.lru.Remove(key)
	return nil
}
