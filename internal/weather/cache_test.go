package weather

import (
	"testing"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

func TestCachedEntryValidityBoundary(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute
	entry := &CachedEntry{Data: &WeatherData{}, Timestamp: t0.UnixMilli()}

	if !entry.IsValid(t0.Add(ttl-time.Millisecond), ttl) {
		t.Error("entry one millisecond before expiry should be valid")
	}
	if entry.IsValid(t0.Add(ttl), ttl) {
		t.Error("entry exactly at TTL should be invalid, validity is age < ttl")
	}
	if entry.IsValid(t0.Add(ttl+time.Millisecond), ttl) {
		t.Error("entry past expiry should be invalid")
	}
}

func TestCachedEntryAge(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := &CachedEntry{Timestamp: t0.UnixMilli()}

	if got := entry.Age(t0.Add(5 * time.Minute)); got != 5*time.Minute {
		t.Errorf("age = %v, want 5m", got)
	}
}

func TestMemoryCacheExpiredEntryStillReturned(t *testing.T) {
	cache := NewMemoryCache(10*time.Minute, logger.NewNop())
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cache.Set("k", &CachedEntry{Data: &WeatherData{}, Timestamp: t0.UnixMilli()})

	entry, valid := cache.Get("k", t0.Add(time.Minute))
	if entry == nil || !valid {
		t.Fatal("fresh entry should be returned and valid")
	}

	// Expired entries stay readable for the stale fallback path
	entry, valid = cache.Get("k", t0.Add(time.Hour))
	if entry == nil {
		t.Fatal("expired entry should still be returned")
	}
	if valid {
		t.Error("expired entry must not be reported valid")
	}
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryCache(10*time.Minute, logger.NewNop())
	now := time.Now()

	cache.Set("a", &CachedEntry{Timestamp: now.UnixMilli()})
	cache.Set("b", &CachedEntry{Timestamp: now.UnixMilli()})

	cache.Clear("a")
	if entry, _ := cache.Get("a", now); entry != nil {
		t.Error("cleared entry should be gone")
	}
	if entry, _ := cache.Get("b", now); entry == nil {
		t.Error("other entry should survive a single-key clear")
	}

	cache.ClearAll()
	if cache.Len() != 0 {
		t.Errorf("cache should be empty after ClearAll, has %d", cache.Len())
	}
}
