package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// Broadcaster pushes update notifications to connected clients.
type Broadcaster interface {
	BroadcastWeatherUpdate(key string)
}

// LocationSource yields the locations the service keeps fresh: the
// configured default plus anything the user has favorited.
type LocationSource interface {
	TrackedLocations() []Location
}

// Service manages weather data fetching and caching across the tracked
// locations, refreshing them in the background.
type Service struct {
	config      Config
	repository  *Repository
	locations   LocationSource
	broadcaster Broadcaster
	logger      *logger.Logger

	// Service lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.RWMutex

	// Initial data readiness
	initialDataReady chan struct{}
	initialDataOnce  sync.Once
}

// NewService creates a new weather service. broadcaster may be nil.
func NewService(config Config, repository *Repository, locations LocationSource, broadcaster Broadcaster, log *logger.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		config:           config,
		repository:       repository,
		locations:        locations,
		broadcaster:      broadcaster,
		logger:           log.Named("weather-service"),
		ctx:              ctx,
		cancel:           cancel,
		initialDataReady: make(chan struct{}),
	}
}

// Repository exposes the underlying repository for request-path callers.
func (s *Service) Repository() *Repository {
	return s.repository
}

// Start begins background operations.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting weather service",
		logger.Int("refresh_interval_minutes", s.config.RefreshIntervalMinutes))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.performInitialFetch()
	}()

	// Interval 0 means another component owns the periodic loop; only
	// the initial fetch and on-demand refreshes run here.
	if s.config.RefreshIntervalMinutes > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.backgroundRefresh()
		}()
	}

	s.started = true
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping weather service")
	s.cancel()
	s.wg.Wait()
	s.started = false
	s.logger.Info("Weather service stopped")
	return nil
}

// IsStarted returns whether the service is currently running.
func (s *Service) IsStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// WaitReady blocks until the initial fetch has completed or the timeout
// elapses. Returns false on timeout.
func (s *Service) WaitReady(timeout time.Duration) bool {
	select {
	case <-s.initialDataReady:
		return true
	case <-time.After(timeout):
		return false
	}
}

// RefreshNow triggers an immediate asynchronous refresh of all tracked
// locations. Safe to call while a previous refresh is still in flight.
func (s *Service) RefreshNow() {
	s.logger.Info("Manual weather refresh triggered")
	go s.refreshTracked(true)
}

func (s *Service) performInitialFetch() {
	s.logger.Info("Performing initial weather data fetch")
	s.refreshTracked(false)
	s.initialDataOnce.Do(func() {
		close(s.initialDataReady)
		s.logger.Info("Initial weather data fetch completed")
	})
}

func (s *Service) backgroundRefresh() {
	refreshInterval := time.Duration(s.config.RefreshIntervalMinutes) * time.Minute

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	s.logger.Info("Background weather refresh started",
		logger.Duration("interval", refreshInterval))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("Background weather refresh stopped")
			return
		case <-ticker.C:
			s.logger.Debug("Periodic weather refresh triggered")
			s.refreshTracked(true)
		}
	}
}

// refreshTracked refreshes every tracked location. Failures for one
// location never block the rest; last writer to a cache key wins.
func (s *Service) refreshTracked(force bool) {
	if s.locations == nil {
		return
	}
	locs := s.locations.TrackedLocations()
	if len(locs) == 0 {
		s.logger.Debug("No tracked locations, nothing to refresh")
		return
	}

	startTime := time.Now()
	var wg sync.WaitGroup
	for _, loc := range locs {
		loc := loc
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
			defer cancel()

			if _, err := s.repository.GetWeatherData(ctx, loc, true, force); err != nil {
				s.logger.Warn("Refresh failed for location",
					logger.String("key", loc.Key()),
					logger.Error(err))
				return
			}
			if s.broadcaster != nil {
				s.broadcaster.BroadcastWeatherUpdate(loc.Key())
			}
		}()
	}
	wg.Wait()

	s.logger.Info("Weather refresh completed",
		logger.Int("locations", len(locs)),
		logger.Duration("duration", time.Since(startTime)))
}

// ValidateConfig validates the weather pipeline configuration. A zero
// refresh interval is allowed and disables the service's own ticker.
func ValidateConfig(config Config) error {
	if config.RefreshIntervalMinutes < 0 {
		return fmt.Errorf("refresh_interval_minutes cannot be negative")
	}
	if config.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request_timeout_seconds must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be greater than 0")
	}
	if config.InitialBackoffMs < 0 {
		return fmt.Errorf("initial_backoff_ms must be 0 or greater")
	}
	if config.MemoryCacheTTLMinutes <= 0 || config.DiskCacheTTLMinutes <= 0 {
		return fmt.Errorf("cache TTLs must be greater than 0")
	}
	if config.ForecastBaseURL == "" {
		return fmt.Errorf("forecast_base_url cannot be empty")
	}
	if config.ForecastDays < 1 || config.ForecastDays > 16 {
		return fmt.Errorf("forecast_days must be between 1 and 16")
	}
	return nil
}
