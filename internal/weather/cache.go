package weather

import (
	"sync"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// CacheStore is the durable cache tier contract. Implementations persist
// one entry per location key; writes overwrite. Failures are the caller's
// to log and swallow since caching is best-effort.
type CacheStore interface {
	Read(key string) (*CachedEntry, bool, error)
	Write(key string, entry *CachedEntry) error
	Clear(key string) error
	ClearAll() error
}

// MemoryCache is the in-process session cache tier: short TTL, discarded
// at process exit, independent of the durable tier. It is owned by the
// Repository rather than living in package scope so there is no hidden
// cross-test state.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CachedEntry
	ttl     time.Duration
	logger  *logger.Logger
}

// NewMemoryCache creates a new in-memory cache with the given TTL.
func NewMemoryCache(ttl time.Duration, log *logger.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*CachedEntry),
		ttl:     ttl,
		logger:  log.Named("memory-cache"),
	}
}

// Get returns the entry for key regardless of validity, plus whether it is
// still within the TTL at now. Callers decide whether staleness matters.
func (c *MemoryCache) Get(key string, now time.Time) (*CachedEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return entry, entry.IsValid(now, c.ttl)
}

// Set overwrites the entry for key.
func (c *MemoryCache) Set(key string, entry *CachedEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry
	c.logger.Debug("Session cache updated",
		logger.String("key", key),
		logger.Time("captured_at", time.UnixMilli(entry.Timestamp)))
}

// Clear removes the entry for key.
func (c *MemoryCache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// ClearAll removes every entry.
func (c *MemoryCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CachedEntry)
	c.logger.Info("Session cache cleared")
}

// Len returns the number of entries, valid or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
