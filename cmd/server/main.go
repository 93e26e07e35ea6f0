package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/LuminLynx/misty/internal/airquality"
	"github.com/LuminLynx/misty/internal/api"
	"github.com/LuminLynx/misty/internal/config"
	"github.com/LuminLynx/misty/internal/gateway"
	"github.com/LuminLynx/misty/internal/geocoding"
	"github.com/LuminLynx/misty/internal/scheduler"
	"github.com/LuminLynx/misty/internal/storage/sqlite"
	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/internal/websocket"
	"github.com/LuminLynx/misty/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

// trackedLocations feeds the refresh loop from the saved locations table.
// When nothing is saved yet it falls back to the configured default.
type trackedLocations struct {
	store     *sqlite.LocationsStore
	defaultID string
	log       *logger.Logger
}

func (t *trackedLocations) TrackedLocations() []weather.Location {
	list, err := t.store.List(false)
	if err != nil {
		t.log.Error("Failed to list tracked locations", logger.Error(err))
		return nil
	}
	if len(list) > 0 {
		return list
	}
	if t.defaultID == "" {
		return nil
	}
	loc, found, err := t.store.Get(t.defaultID)
	if err != nil || !found {
		return nil
	}
	return []weather.Location{loc}
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Misty server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Create SQLite storage
	store, err := sqlite.New(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	weatherCacheStore := sqlite.NewWeatherCacheStore(store.DB(), log)
	locationsStore := sqlite.NewLocationsStore(store.DB(), log)
	preferencesStore := sqlite.NewPreferencesStore(store.DB(), log)

	// Create WebSocket server
	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Create weather pipeline
	weatherConfig := weather.Config{
		ForecastBaseURL:        cfg.Weather.ForecastBaseURL,
		ForecastDays:           cfg.Weather.ForecastDays,
		RequestTimeoutSeconds:  cfg.Weather.RequestTimeoutSeconds,
		MaxRetries:             cfg.Weather.MaxRetries,
		InitialBackoffMs:       cfg.Weather.InitialBackoffMs,
		RateLimitPerSecond:     cfg.Weather.RateLimitPerSecond,
		MemoryCacheTTLMinutes:  cfg.Weather.MemoryCacheTTLMinutes,
		DiskCacheTTLMinutes:    cfg.Weather.DiskCacheTTLMinutes,
		RefreshIntervalMinutes: cfg.Weather.RefreshIntervalMinutes,
	}
	// When the scheduler is enabled it owns the periodic refresh; the
	// service's internal ticker would double every provider call.
	if cfg.Scheduler.Enabled {
		weatherConfig.RefreshIntervalMinutes = 0
	}

	weatherClient := weather.NewClient(weatherConfig, log)
	repository := weather.NewRepository(weatherConfig, weatherClient, weatherCacheStore, log)

	tracked := &trackedLocations{
		store:     locationsStore,
		defaultID: cfg.Weather.DefaultLocationID,
		log:       log.Named("tracked-locations"),
	}
	weatherService := weather.NewService(weatherConfig, repository, tracked, wsServer, log)

	if err := weatherService.Start(); err != nil {
		log.Error("Failed to start weather service", logger.Error(err))
		os.Exit(1)
	}

	// Create auxiliary API clients
	geocodingClient := geocoding.NewClient(geocoding.Config{
		BaseURL:               cfg.Geocoding.BaseURL,
		RequestTimeoutSeconds: cfg.Geocoding.RequestTimeoutSeconds,
		DefaultLanguage:       cfg.Geocoding.DefaultLanguage,
	}, log)
	airQualityClient := airquality.NewClient(airquality.Config{
		BaseURL:               cfg.AirQuality.BaseURL,
		RequestTimeoutSeconds: cfg.AirQuality.RequestTimeoutSeconds,
	}, log)

	// Create the caching gateway in front of the static assets
	staticHandler := api.NewStaticFileHandler(cfg.Server.StaticFilesDir, log)
	gatewayStorage := gateway.NewCacheStorage(store.DB(), log)
	gw := gateway.New(cfg.Gateway, gatewayStorage, staticHandler, wsServer, log)
	gw.Install()
	gw.Activate()

	// Create background refresh scheduler
	powerGuard := scheduler.StaticGuard(cfg.Scheduler.PowerSave)
	refreshScheduler := scheduler.New(cfg.Scheduler, weatherService, powerGuard, log)
	if err := refreshScheduler.Start(); err != nil {
		log.Error("Failed to start scheduler", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	handler := api.NewHandler(
		weatherService,
		repository,
		geocodingClient,
		airQualityClient,
		locationsStore,
		preferencesStore,
		gw,
		wsServer,
		cfg,
		log,
	)
	wsServer.SetMessageHandler(handler)
	router := api.NewRouter(handler, gw, wsServer, cfg, log)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping scheduler...")
	refreshScheduler.Stop()

	log.Info("Stopping weather service...")
	if err := weatherService.Stop(); err != nil {
		log.Error("Error stopping weather service", logger.Error(err))
	}

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("Server fully stopped")
}
