package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/pkg/logger"
)

// WeatherCacheStore is the durable cache tier for weather entries: one row
// per location key, overwritten on every successful fetch. It implements
// weather.CacheStore.
type WeatherCacheStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewWeatherCacheStore creates a durable cache store on the shared database.
func NewWeatherCacheStore(db *sql.DB, log *logger.Logger) *WeatherCacheStore {
	return &WeatherCacheStore{
		db:     db,
		logger: log.Named("weather-cache-store"),
	}
}

// Read returns the cached entry for key, or ok=false when absent.
func (s *WeatherCacheStore) Read(key string) (*weather.CachedEntry, bool, error) {
	var payload string
	var capturedAt int64
	err := s.db.QueryRow(
		`SELECT payload, captured_at FROM weather_cache WHERE namespace = 'weather' AND key = ?`,
		key,
	).Scan(&payload, &capturedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry: %w", err)
	}

	var data weather.WeatherData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		// A corrupt row is treated as absent; the next write replaces it.
		s.logger.Warn("Discarding corrupt cache entry",
			logger.String("key", key),
			logger.Error(err))
		return nil, false, nil
	}

	return &weather.CachedEntry{Data: &data, Timestamp: capturedAt}, true, nil
}

// Write overwrites the entry for key.
func (s *WeatherCacheStore) Write(key string, entry *weather.CachedEntry) error {
	payload, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO weather_cache (namespace, key, payload, captured_at) VALUES ('weather', ?, ?, ?)
		 ON CONFLICT (namespace, key) DO UPDATE SET payload = excluded.payload, captured_at = excluded.captured_at`,
		key, string(payload), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}

	s.logger.Debug("Durable cache updated", logger.String("key", key))
	return nil
}

// Clear removes the entry for key.
func (s *WeatherCacheStore) Clear(key string) error {
	_, err := s.db.Exec(`DELETE FROM weather_cache WHERE namespace = 'weather' AND key = ?`, key)
	if err != nil {
		return fmt.Errorf("clearing cache entry: %w", err)
	}
	return nil
}

// ClearAll removes every weather cache entry.
func (s *WeatherCacheStore) ClearAll() error {
	_, err := s.db.Exec(`DELETE FROM weather_cache WHERE namespace = 'weather'`)
	if err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}
	s.logger.Info("Durable weather cache cleared")
	return nil
}
