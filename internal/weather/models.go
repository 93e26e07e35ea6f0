package weather

import (
	"math"
	"strconv"
	"time"
)

// Location identifies a coordinate pair selected by search or reverse
// geocoding. Instances are immutable; re-selecting a location replaces the
// stored record wholesale.
type Location struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Country      string  `json:"country,omitempty"`
	State        string  `json:"state,omitempty"`
	IsFavorite   bool    `json:"is_favorite,omitempty"`
	LastAccessed int64   `json:"last_accessed,omitempty"` // epoch millis
}

// LocationKey derives the canonical cache key for a coordinate pair.
// Coordinates are rounded to 4 decimal places and formatted with trailing
// zeros trimmed, so (40.7128, -74.0060) keys as "40.7128,-74.006".
func LocationKey(lat, lon float64) string {
	round := func(v float64) float64 {
		return math.Round(v*10000) / 10000
	}
	return strconv.FormatFloat(round(lat), 'f', -1, 64) + "," +
		strconv.FormatFloat(round(lon), 'f', -1, 64)
}

// Key returns the canonical cache key for this location.
func (l Location) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return LocationKey(l.Lat, l.Lon)
}

// WeatherCondition is the human-readable interpretation of a provider
// weather code.
type WeatherCondition struct {
	Code        int    `json:"code"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentWeather holds current conditions in canonical metric units
// (degC, km/h, meters). Display-unit conversion happens at the API
// boundary and is never stored.
type CurrentWeather struct {
	Temp       float64          `json:"temp"`
	FeelsLike  float64          `json:"feels_like"`
	Humidity   float64          `json:"humidity"`
	Pressure   float64          `json:"pressure"`
	Visibility float64          `json:"visibility"`
	WindSpeed  float64          `json:"wind_speed"`
	WindDeg    float64          `json:"wind_deg"`
	Clouds     float64          `json:"clouds"`
	UVIndex    float64          `json:"uvi"`
	Sunrise    int64            `json:"sunrise"` // epoch seconds
	Sunset     int64            `json:"sunset"`  // epoch seconds
	Condition  WeatherCondition `json:"condition"`
	ObservedAt int64            `json:"dt"` // epoch seconds
}

// DailyForecast is one calendar day of the forecast window.
type DailyForecast struct {
	Date         int64            `json:"dt"` // epoch seconds at local midnight
	TempMin      float64          `json:"temp_min"`
	TempMax      float64          `json:"temp_max"`
	TempMean     float64          `json:"temp_mean"`
	Condition    WeatherCondition `json:"condition"`
	PrecipChance float64          `json:"pop"` // 0..1
	UVIndex      float64          `json:"uvi"`
}

// WeatherAlert is an advisory attached to a location's weather.
type WeatherAlert struct {
	Sender      string `json:"sender_name"`
	Event       string `json:"event"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Description string `json:"description"`
}

// WeatherData aggregates everything known about one location's weather.
// Daily is chronological with day 0 = today.
type WeatherData struct {
	Location Location        `json:"location"`
	Current  CurrentWeather  `json:"current"`
	Daily    []DailyForecast `json:"daily"`
	Alerts   []WeatherAlert  `json:"alerts,omitempty"`
	Units    string          `json:"units"` // "metric" or "imperial"
}

// CachedEntry wraps WeatherData with its capture timestamp. Entries are
// overwritten on every successful fetch for the same key; they are never
// garbage-collected except by an explicit clear.
type CachedEntry struct {
	Data      *WeatherData `json:"data"`
	Timestamp int64        `json:"timestamp"` // epoch millis at capture
}

// Age returns how old the entry is relative to now.
func (e *CachedEntry) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.Timestamp))
}

// IsValid reports whether the entry is within the TTL. The boundary is
// strict: age < ttl.
func (e *CachedEntry) IsValid(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Config contains weather pipeline configuration, converted from the
// config package section to avoid a circular import.
type Config struct {
	ForecastBaseURL        string
	ForecastDays           int
	RequestTimeoutSeconds  int
	MaxRetries             int
	InitialBackoffMs       int
	RateLimitPerSecond     float64
	MemoryCacheTTLMinutes  int
	DiskCacheTTLMinutes    int
	RefreshIntervalMinutes int
}

// DefaultConfig returns the default weather pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ForecastBaseURL:        "https://api.open-meteo.com/v1/forecast",
		ForecastDays:           7,
		RequestTimeoutSeconds:  10,
		MaxRetries:             3,
		InitialBackoffMs:       1000,
		RateLimitPerSecond:     2,
		MemoryCacheTTLMinutes:  10,
		DiskCacheTTLMinutes:    30,
		RefreshIntervalMinutes: 30,
	}
}
