package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/LuminLynx/misty/internal/gateway"
	"github.com/LuminLynx/misty/internal/scheduler"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`      // HTTP server settings
	Logging    LoggingConfig    `toml:"logging"`     // Application logging settings
	Storage    StorageConfig    `toml:"storage"`     // Data persistence settings
	Weather    WeatherConfig    `toml:"weather"`     // Weather data fetching and caching settings
	Geocoding  GeocodingConfig  `toml:"geocoding"`   // Location search settings
	AirQuality AirQualityConfig `toml:"air_quality"` // Air quality data settings
	Gateway    gateway.Config   `toml:"gateway"`     // Caching gateway settings
	Scheduler  scheduler.Config `toml:"scheduler"`   // Background refresh settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www")
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file
}

// WeatherConfig contains weather data fetching and caching configuration
type WeatherConfig struct {
	ForecastBaseURL        string  `toml:"forecast_base_url"`        // Base URL for the forecast API
	ForecastDays           int     `toml:"forecast_days"`            // Number of daily forecast entries to request
	RequestTimeoutSeconds  int     `toml:"request_timeout_seconds"`  // HTTP request timeout in seconds
	MaxRetries             int     `toml:"max_retries"`              // Maximum number of attempts for failed requests
	InitialBackoffMs       int     `toml:"initial_backoff_ms"`       // Initial retry backoff in milliseconds, doubled each attempt
	RateLimitPerSecond     float64 `toml:"rate_limit_per_second"`    // Upstream request rate limit (0 = unlimited)
	MemoryCacheTTLMinutes  int     `toml:"memory_cache_ttl_minutes"` // Session cache validity window
	DiskCacheTTLMinutes    int     `toml:"disk_cache_ttl_minutes"`   // Durable cache validity window
	RefreshIntervalMinutes int     `toml:"refresh_interval_minutes"` // Weather data refresh interval in minutes
	DefaultLocationID      string  `toml:"default_location_id"`      // Location refreshed when nothing is tracked yet
}

// GeocodingConfig contains location search configuration
type GeocodingConfig struct {
	BaseURL               string `toml:"base_url"`                // Base URL for the geocoding search API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
	DefaultLanguage       string `toml:"default_language"`        // Language for place names (e.g., "en")
}

// AirQualityConfig contains air quality data configuration
type AirQualityConfig struct {
	BaseURL               string `toml:"base_url"`                // Base URL for the air quality API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // HTTP request timeout in seconds
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyEnvOverrides()

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // Location in configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyEnvOverrides layers .env and process environment values over the
// file configuration. Missing .env files are fine.
func (c *Config) applyEnvOverrides() {
	_ = godotenv.Load()

	if v := os.Getenv("MISTY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MISTY_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MISTY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MISTY_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := make(map[int]bool)
	portsSeen[c.Server.Port] = true
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	if c.Server.StaticFilesDir == "" {
		c.Server.StaticFilesDir = "www"
	}

	// Validate logging config
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	// Validate storage config
	if c.Storage.Type == "" {
		c.Storage.Type = "sqlite"
	}
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "misty.db"
	}

	if err := c.ValidateWeather(); err != nil {
		return err
	}
	if err := c.ValidateGeocoding(); err != nil {
		return err
	}
	if err := c.ValidateAirQuality(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}

	return nil
}

// ValidateWeather validates the weather section and fills defaults.
func (c *Config) ValidateWeather() error {
	if c.Weather.ForecastBaseURL == "" {
		c.Weather.ForecastBaseURL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.Weather.ForecastDays <= 0 {
		c.Weather.ForecastDays = 7
	}
	if c.Weather.ForecastDays > 16 {
		return fmt.Errorf("weather forecast_days cannot exceed 16: %d", c.Weather.ForecastDays)
	}
	if c.Weather.RequestTimeoutSeconds <= 0 {
		c.Weather.RequestTimeoutSeconds = 10
	}
	if c.Weather.MaxRetries < 0 {
		return fmt.Errorf("weather max_retries must be 0 or greater: %d", c.Weather.MaxRetries)
	}
	if c.Weather.MaxRetries == 0 {
		c.Weather.MaxRetries = 3
	}
	if c.Weather.InitialBackoffMs <= 0 {
		c.Weather.InitialBackoffMs = 1000
	}
	if c.Weather.MemoryCacheTTLMinutes <= 0 {
		c.Weather.MemoryCacheTTLMinutes = 10
	}
	if c.Weather.DiskCacheTTLMinutes <= 0 {
		c.Weather.DiskCacheTTLMinutes = 30
	}
	if c.Weather.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("weather refresh_interval_minutes must be greater than 0: %d", c.Weather.RefreshIntervalMinutes)
	}
	return nil
}

// ValidateGeocoding validates the geocoding section and fills defaults.
func (c *Config) ValidateGeocoding() error {
	if c.Geocoding.BaseURL == "" {
		c.Geocoding.BaseURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	if c.Geocoding.RequestTimeoutSeconds <= 0 {
		c.Geocoding.RequestTimeoutSeconds = 10
	}
	if c.Geocoding.DefaultLanguage == "" {
		c.Geocoding.DefaultLanguage = "en"
	}
	return nil
}

// ValidateAirQuality validates the air quality section and fills defaults.
func (c *Config) ValidateAirQuality() error {
	if c.AirQuality.BaseURL == "" {
		c.AirQuality.BaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	}
	if c.AirQuality.RequestTimeoutSeconds <= 0 {
		c.AirQuality.RequestTimeoutSeconds = 10
	}
	return nil
}
