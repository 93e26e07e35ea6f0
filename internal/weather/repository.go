package weather

import (
	"context"
	"sync"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// Fetcher abstracts the provider client so tests can stub the network.
type Fetcher interface {
	FetchForecast(ctx context.Context, loc Location) (*WeatherData, error)
}

type inflightCall struct {
	done chan struct{}
	data *WeatherData
	err  error
}

// Repository produces the freshest available WeatherData for a location,
// minimizing redundant provider calls and tolerating transient failure.
// It owns two independent cache tiers: a short-TTL session cache and a
// durable store with its own TTL. The tiers are never assumed consistent
// with each other.
type Repository struct {
	config  Config
	fetcher Fetcher
	memory  *MemoryCache
	store   CacheStore
	logger  *logger.Logger

	mu       sync.Mutex
	inflight map[string]*inflightCall

	now func() time.Time
}

// NewRepository creates a repository. store may be nil, in which case only
// the session tier is used.
func NewRepository(config Config, fetcher Fetcher, store CacheStore, log *logger.Logger) *Repository {
	return &Repository{
		config:   config,
		fetcher:  fetcher,
		memory:   NewMemoryCache(time.Duration(config.MemoryCacheTTLMinutes)*time.Minute, log),
		store:    store,
		inflight: make(map[string]*inflightCall),
		logger:   log.Named("weather-repository"),
		now:      time.Now,
	}
}

// GetWeatherData returns weather for the location, preferring valid cache
// entries, then a fresh fetch with retry, then any stale entry. Only when
// every tier is empty and the fetch failed does it return an error.
// forceRefresh bypasses the validity check but not the stale fallback.
func (r *Repository) GetWeatherData(ctx context.Context, loc Location, isMetric, forceRefresh bool) (*WeatherData, error) {
	key := loc.Key()
	now := r.now()
	diskTTL := time.Duration(r.config.DiskCacheTTLMinutes) * time.Minute

	if !forceRefresh {
		if entry, valid := r.memory.Get(key, now); valid {
			r.logger.Debug("Session cache hit", logger.String("key", key))
			return entry.Data.ConvertUnits(!isMetric), nil
		}
		if entry, ok := r.readStore(key); ok && entry.IsValid(now, diskTTL) {
			r.logger.Debug("Durable cache hit", logger.String("key", key))
			r.memory.Set(key, entry)
			return entry.Data.ConvertUnits(!isMetric), nil
		}
	}

	data, err := r.fetchShared(ctx, loc)
	if err == nil {
		return data.ConvertUnits(!isMetric), nil
	}

	// Retries exhausted: better stale than nothing. This is a success from
	// the caller's perspective.
	if entry := r.freshestEntry(key); entry != nil {
		r.logger.Warn("Fetch failed, returning stale cache entry",
			logger.String("key", key),
			logger.Duration("age", entry.Age(r.now())),
			logger.Error(err))
		return entry.Data.ConvertUnits(!isMetric), nil
	}

	r.logger.Error("Fetch failed and no cache entry exists",
		logger.String("key", key),
		logger.Error(err))
	return nil, NoDataError(err)
}

// fetchShared de-duplicates concurrent fetches for the same key: callers
// arriving while a fetch is in flight wait for its result instead of
// issuing another provider request.
func (r *Repository) fetchShared(ctx context.Context, loc Location) (*WeatherData, error) {
	key := loc.Key()

	r.mu.Lock()
	if call, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.data, call.err
		case <-ctx.Done():
			return nil, NetworkError(ctx.Err())
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	r.inflight[key] = call
	r.mu.Unlock()

	call.data, call.err = r.fetchAndCache(ctx, loc)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
	close(call.done)

	return call.data, call.err
}

func (r *Repository) fetchAndCache(ctx context.Context, loc Location) (*WeatherData, error) {
	data, err := r.fetcher.FetchForecast(ctx, loc)
	if err != nil {
		return nil, err
	}

	entry := &CachedEntry{Data: data, Timestamp: r.now().UnixMilli()}
	key := loc.Key()
	r.memory.Set(key, entry)
	if r.store != nil {
		// Cache writes are best-effort; the caller proceeds either way.
		if werr := r.store.Write(key, entry); werr != nil {
			r.logger.Warn("Durable cache write failed",
				logger.String("key", key),
				logger.Error(werr))
		}
	}
	return data, nil
}

// freshestEntry returns the newest entry across both tiers, valid or not.
func (r *Repository) freshestEntry(key string) *CachedEntry {
	memEntry, _ := r.memory.Get(key, r.now())
	diskEntry, _ := r.readStore(key)

	switch {
	case memEntry == nil:
		return diskEntry
	case diskEntry == nil:
		return memEntry
	case diskEntry.Timestamp > memEntry.Timestamp:
		return diskEntry
	default:
		return memEntry
	}
}

func (r *Repository) readStore(key string) (*CachedEntry, bool) {
	if r.store == nil {
		return nil, false
	}
	entry, ok, err := r.store.Read(key)
	if err != nil {
		// Storage failure is an optimization failure, never surfaced.
		r.logger.Warn("Durable cache read failed",
			logger.String("key", key),
			logger.Error(err))
		return nil, false
	}
	return entry, ok
}

// ClearCache removes the entry for key from both tiers.
func (r *Repository) ClearCache(key string) {
	r.memory.Clear(key)
	if r.store != nil {
		if err := r.store.Clear(key); err != nil {
			r.logger.Warn("Durable cache clear failed",
				logger.String("key", key),
				logger.Error(err))
		}
	}
}

// ClearAll removes every entry from both tiers.
func (r *Repository) ClearAll() {
	r.memory.ClearAll()
	if r.store != nil {
		if err := r.store.ClearAll(); err != nil {
			r.logger.Warn("Durable cache clear failed", logger.Error(err))
		}
	}
}
