package weather

import (
	"sync"
	"testing"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

type staticSource struct {
	locations []Location
}

func (s *staticSource) TrackedLocations() []Location { return s.locations }

type recordingBroadcaster struct {
	mu   sync.Mutex
	keys []string
}

func (b *recordingBroadcaster) BroadcastWeatherUpdate(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
}

func (b *recordingBroadcaster) broadcasts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

func testServiceConfig() Config {
	cfg := DefaultConfig()
	cfg.RefreshIntervalMinutes = 0
	return cfg
}

func TestServiceInitialFetchAndBroadcast(t *testing.T) {
	fetcher := &stubFetcher{data: testData(20)}
	source := &staticSource{locations: []Location{
		{Name: "NYC", Lat: 40.7128, Lon: -74.0060},
	}}
	broadcaster := &recordingBroadcaster{}
	repo := NewRepository(testServiceConfig(), fetcher, newMapStore(), logger.NewNop())
	svc := NewService(testServiceConfig(), repo, source, broadcaster, logger.NewNop())

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()

	if !svc.WaitReady(5 * time.Second) {
		t.Fatal("initial fetch never completed")
	}
	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want 1", got)
	}
	keys := broadcaster.broadcasts()
	if len(keys) != 1 || keys[0] != "40.7128,-74.006" {
		t.Errorf("broadcasts = %v, want [40.7128,-74.006]", keys)
	}
}

func TestServiceZeroIntervalSkipsPeriodicLoop(t *testing.T) {
	fetcher := &stubFetcher{data: testData(20)}
	source := &staticSource{locations: []Location{
		{Name: "NYC", Lat: 40.7128, Lon: -74.0060},
	}}
	repo := NewRepository(testServiceConfig(), fetcher, newMapStore(), logger.NewNop())
	svc := NewService(testServiceConfig(), repo, source, nil, logger.NewNop())

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !svc.WaitReady(5 * time.Second) {
		t.Fatal("initial fetch never completed")
	}

	// Stop must return promptly: with interval 0 there is no ticker
	// goroutine to drain.
	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked, periodic loop running despite zero interval")
	}

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("provider calls = %d, want only the initial fetch", got)
	}
}

func TestServiceRefreshNowForces(t *testing.T) {
	fetcher := &stubFetcher{data: testData(20)}
	source := &staticSource{locations: []Location{
		{Name: "NYC", Lat: 40.7128, Lon: -74.0060},
	}}
	broadcaster := &recordingBroadcaster{}
	repo := NewRepository(testServiceConfig(), fetcher, newMapStore(), logger.NewNop())
	svc := NewService(testServiceConfig(), repo, source, broadcaster, logger.NewNop())

	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer svc.Stop()
	if !svc.WaitReady(5 * time.Second) {
		t.Fatal("initial fetch never completed")
	}

	// The cache entry is fresh; only a forced refresh reaches the provider
	svc.RefreshNow()
	deadline := time.Now().Add(5 * time.Second)
	for fetcher.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("provider calls = %d, want 2 after forced refresh", got)
	}
}

func TestValidateConfigRejectsNegativeInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RefreshIntervalMinutes = -1
	if err := ValidateConfig(cfg); err == nil {
		t.Error("negative refresh interval must be rejected")
	}

	cfg.RefreshIntervalMinutes = 0
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("zero interval must be allowed: %v", err)
	}
}
