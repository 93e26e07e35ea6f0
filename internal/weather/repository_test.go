package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

type stubFetcher struct {
	mu    sync.Mutex
	data  *WeatherData
	err   error
	calls atomic.Int32
	block chan struct{} // when set, FetchForecast waits until closed
}

func (f *stubFetcher) FetchForecast(ctx context.Context, loc Location) (*WeatherData, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := *f.data
	out.Location = loc
	return &out, nil
}

type mapStore struct {
	mu      sync.Mutex
	entries map[string]*CachedEntry
	readErr error
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string]*CachedEntry)}
}

func (s *mapStore) Read(key string) (*CachedEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, false, s.readErr
	}
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *mapStore) Write(key string, entry *CachedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *mapStore) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *mapStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*CachedEntry)
	return nil
}

func testData(temp float64) *WeatherData {
	return &WeatherData{
		Current: CurrentWeather{Temp: temp, Condition: MapConditionCode(0, true)},
		Daily:   []DailyForecast{{TempMin: 10, TempMax: 20, TempMean: 15}},
		Units:   "metric",
	}
}

func testRepository(fetcher Fetcher, store CacheStore) *Repository {
	return NewRepository(DefaultConfig(), fetcher, store, logger.NewNop())
}

func TestGetWeatherDataSessionCacheHit(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("should not be called")}
	repo := testRepository(fetcher, nil)

	loc := Location{Lat: 40.7128, Lon: -74.0060}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	repo.memory.Set(loc.Key(), &CachedEntry{Data: testData(22), Timestamp: now.Add(-time.Minute).UnixMilli()})

	data, err := repo.GetWeatherData(context.Background(), loc, true, false)
	if err != nil {
		t.Fatalf("cache hit should not error: %v", err)
	}
	if data.Current.Temp != 22 {
		t.Errorf("temp = %v, want 22", data.Current.Temp)
	}
	if fetcher.calls.Load() != 0 {
		t.Errorf("fetcher called %d times on a cache hit", fetcher.calls.Load())
	}
}

func TestGetWeatherDataDurableCachePromotion(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("network down")}
	store := newMapStore()
	repo := testRepository(fetcher, store)

	loc := Location{Lat: 40.7128, Lon: -74.0060}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	// Valid on disk (20 min old, 30 min TTL), absent in memory
	store.Write(loc.Key(), &CachedEntry{Data: testData(18), Timestamp: now.Add(-20 * time.Minute).UnixMilli()})

	data, err := repo.GetWeatherData(context.Background(), loc, true, false)
	if err != nil {
		t.Fatalf("durable hit should not error: %v", err)
	}
	if data.Current.Temp != 18 {
		t.Errorf("temp = %v, want 18", data.Current.Temp)
	}

	// The entry must now be in the session tier too
	if entry, _ := repo.memory.Get(loc.Key(), now); entry == nil {
		t.Error("durable hit should be promoted to the session cache")
	}
}

func TestGetWeatherDataStaleFallback(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("provider down")}
	repo := testRepository(fetcher, nil)

	loc := Location{Lat: 40.7128, Lon: -74.0060}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	// Two hours old is far past both TTLs
	repo.memory.Set(loc.Key(), &CachedEntry{Data: testData(17), Timestamp: now.Add(-2 * time.Hour).UnixMilli()})

	data, err := repo.GetWeatherData(context.Background(), loc, true, false)
	if err != nil {
		t.Fatalf("stale fallback must be a success, got %v", err)
	}
	if data.Current.Temp != 17 {
		t.Errorf("temp = %v, want stale 17", data.Current.Temp)
	}
	if fetcher.calls.Load() == 0 {
		t.Error("fetch should have been attempted before falling back")
	}
}

func TestGetWeatherDataNoDataError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("provider down")}
	repo := testRepository(fetcher, newMapStore())

	_, err := repo.GetWeatherData(context.Background(), Location{Lat: 1, Lon: 2}, true, false)
	if err == nil {
		t.Fatal("empty caches plus failed fetch must error")
	}
	if !errors.Is(err, ErrNoData) {
		t.Errorf("error should wrap ErrNoData: %v", err)
	}
}

func TestGetWeatherDataForceRefresh(t *testing.T) {
	fetcher := &stubFetcher{data: testData(25)}
	repo := testRepository(fetcher, nil)

	loc := Location{Lat: 40.7128, Lon: -74.0060}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	// Perfectly valid cached entry that force must bypass
	repo.memory.Set(loc.Key(), &CachedEntry{Data: testData(10), Timestamp: now.UnixMilli()})

	data, err := repo.GetWeatherData(context.Background(), loc, true, true)
	if err != nil {
		t.Fatalf("force refresh failed: %v", err)
	}
	if data.Current.Temp != 25 {
		t.Errorf("temp = %v, want fresh 25", data.Current.Temp)
	}
	if fetcher.calls.Load() != 1 {
		t.Errorf("fetcher calls = %d, want 1", fetcher.calls.Load())
	}
}

func TestGetWeatherDataImperialConversion(t *testing.T) {
	fetcher := &stubFetcher{data: testData(20)}
	repo := testRepository(fetcher, nil)

	data, err := repo.GetWeatherData(context.Background(), Location{Lat: 1, Lon: 2}, false, false)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if data.Units != "imperial" {
		t.Errorf("units = %q, want imperial", data.Units)
	}
	if data.Current.Temp != 68 {
		t.Errorf("temp = %v, want 68F", data.Current.Temp)
	}

	// The cached canonical copy stays metric
	entry, _ := repo.memory.Get(LocationKey(1, 2), repo.now())
	if entry == nil || entry.Data.Units != "metric" || entry.Data.Current.Temp != 20 {
		t.Error("cache must hold canonical metric data")
	}
}

func TestConcurrentFetchesDeduplicated(t *testing.T) {
	fetcher := &stubFetcher{data: testData(22), block: make(chan struct{})}
	repo := testRepository(fetcher, nil)
	loc := Location{Lat: 40.7128, Lon: -74.0060}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*WeatherData, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = repo.GetWeatherData(context.Background(), loc, true, false)
		}(i)
	}

	// Let the goroutines pile up on the in-flight call, then release it
	time.Sleep(50 * time.Millisecond)
	close(fetcher.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].Current.Temp != 22 {
			t.Errorf("caller %d temp = %v", i, results[i].Current.Temp)
		}
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("provider called %d times for concurrent same-key requests, want 1", got)
	}
}

func TestClearCacheBothTiers(t *testing.T) {
	store := newMapStore()
	repo := testRepository(&stubFetcher{data: testData(22)}, store)
	loc := Location{Lat: 1, Lon: 2}

	if _, err := repo.GetWeatherData(context.Background(), loc, true, false); err != nil {
		t.Fatalf("seed fetch failed: %v", err)
	}

	repo.ClearCache(loc.Key())

	if entry, _ := repo.memory.Get(loc.Key(), time.Now()); entry != nil {
		t.Error("session tier should be cleared")
	}
	if _, ok, _ := store.Read(loc.Key()); ok {
		t.Error("durable tier should be cleared")
	}
}
