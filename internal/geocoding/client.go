package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/LuminLynx/misty/internal/weather"
	"github.com/LuminLynx/misty/pkg/logger"
)

// Config contains geocoding client configuration.
type Config struct {
	BaseURL               string
	RequestTimeoutSeconds int
	DefaultLanguage       string
}

// DefaultConfig returns the default geocoding configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:               "https://geocoding-api.open-meteo.com/v1/search",
		RequestTimeoutSeconds: 10,
		DefaultLanguage:       "en",
	}
}

type searchResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// Client resolves free-text place names and coordinates to Locations.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new geocoding client.
func NewClient(config Config, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("geocoding-client"),
	}
}

// Search returns up to count locations matching the free-text query.
// An empty result list is not an error.
func (c *Client) Search(ctx context.Context, query string, count int, lang string) ([]weather.Location, error) {
	if count <= 0 {
		count = 5
	}
	if lang == "" {
		lang = c.config.DefaultLanguage
	}

	q := url.Values{}
	q.Set("name", query)
	q.Set("count", strconv.Itoa(count))
	q.Set("language", lang)
	q.Set("format", "json")

	resp, err := c.get(ctx, q)
	if err != nil {
		return nil, err
	}

	locations := make([]weather.Location, 0, len(resp.Results))
	for _, r := range resp.Results {
		locations = append(locations, weather.Location{
			ID:      weather.LocationKey(r.Latitude, r.Longitude),
			Name:    r.Name,
			Lat:     r.Latitude,
			Lon:     r.Longitude,
			Country: r.Country,
			State:   r.Admin1,
		})
	}
	return locations, nil
}

// Reverse resolves coordinates to the nearest named location. When the
// provider has no result it falls back to a synthetic coordinate-named
// location rather than failing.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (weather.Location, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("count", "1")
	q.Set("language", c.config.DefaultLanguage)
	q.Set("format", "json")

	fallback := weather.Location{
		ID:   weather.LocationKey(lat, lon),
		Name: fmt.Sprintf("%.2f°, %.2f°", lat, lon),
		Lat:  lat,
		Lon:  lon,
	}

	resp, err := c.get(ctx, q)
	if err != nil {
		c.logger.Warn("Reverse geocoding failed, using coordinate name",
			logger.Float64("lat", lat),
			logger.Float64("lon", lon),
			logger.Error(err))
		return fallback, nil
	}
	if len(resp.Results) == 0 {
		return fallback, nil
	}

	r := resp.Results[0]
	return weather.Location{
		ID:      weather.LocationKey(r.Latitude, r.Longitude),
		Name:    r.Name,
		Lat:     r.Latitude,
		Lon:     r.Longitude,
		Country: r.Country,
		State:   r.Admin1,
	}, nil
}

func (c *Client) get(ctx context.Context, q url.Values) (*searchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding provider returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	return &parsed, nil
}
